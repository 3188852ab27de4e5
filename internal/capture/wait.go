package capture

import (
	"fmt"
	"time"
)

// waitFor applies the post-navigation readiness condition. Navigation already
// returned at commit, so WaitCommit has nothing left to wait for.
func waitFor(page Page, strategy WaitStrategy, selector string, timeout time.Duration) error {
	switch strategy {
	case WaitNetworkIdle:
		return page.WaitForLoadState(LoadStateNetworkIdle, timeout)
	case WaitDOMContentLoaded:
		return page.WaitForLoadState(LoadStateDOMContentLoaded, timeout)
	case WaitLoad:
		return page.WaitForLoadState(LoadStateLoad, timeout)
	case WaitCommit:
		return nil
	case WaitSelector:
		return page.WaitForSelector(selector, timeout)
	default:
		return fmt.Errorf("%w: unknown wait_strategy %q", ErrInvalidOptions, strategy)
	}
}
