package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

type pageBehavior struct {
	status        *int
	gotoErr       error
	gotoDelay     time.Duration
	waitErr       error
	selectorErr   error
	screenshot    []byte
	screenshotErr error
	closeErr      error
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	delay    time.Duration
	err      error
	browser  *fakeBrowser
}

func (l *fakeLauncher) Launch(ctx context.Context) (Browser, error) {
	time.Sleep(l.delay)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func (l *fakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

type fakeBrowser struct {
	mu            sync.Mutex
	disconnected  bool
	closed        int
	newContextErr error
	contextClose  error
	behavior      pageBehavior
	lastOptions   ContextOptions
	pages         []*fakePage
}

func (b *fakeBrowser) NewContext(options ContextOptions) (BrowsingContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newContextErr != nil {
		return nil, b.newContextErr
	}
	b.lastOptions = options
	return &fakeContext{browser: b}, nil
}

func (b *fakeBrowser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disconnected
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeContext struct {
	browser *fakeBrowser
}

func (c *fakeContext) NewPage() (Page, error) {
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()
	p := &fakePage{behavior: c.browser.behavior}
	c.browser.pages = append(c.browser.pages, p)
	return p, nil
}

func (c *fakeContext) Close() error {
	return c.browser.contextClose
}

type fakePage struct {
	behavior pageBehavior

	mu         sync.Mutex
	loadStates []LoadState
	selectors  []string
	fullPage   bool
	closed     bool
}

func (p *fakePage) Goto(url string, timeout time.Duration) (*int, error) {
	time.Sleep(p.behavior.gotoDelay)
	return p.behavior.status, p.behavior.gotoErr
}

func (p *fakePage) WaitForLoadState(state LoadState, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadStates = append(p.loadStates, state)
	return p.behavior.waitErr
}

func (p *fakePage) WaitForSelector(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors = append(p.selectors, selector)
	return p.behavior.selectorErr
}

func (p *fakePage) Screenshot(fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullPage = fullPage
	return p.behavior.screenshot, p.behavior.screenshotErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.behavior.closeErr
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	url := "memory://" + key
	m.objects[url] = data
	return url, nil
}

func (m *memoryStorage) Get(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryStorage) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

func intPtr(i int) *int {
	return &i
}
