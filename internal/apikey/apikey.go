package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/xerrors"
)

var ErrInvalidKey = errors.New("invalid or inactive API key")

const (
	DefaultPrefix = "sk_live_"
	DefaultCost   = 12

	randomBytes   = 32
	displayLength = 8
)

// Repository is the part of store.Store that keys are kept in.
type Repository interface {
	CreateAPIKey(ctx context.Context, key *store.APIKey) (*store.APIKey, error)
	GetAPIKey(ctx context.Context, id int64) (*store.APIKey, error)
	ListAPIKeys(ctx context.Context, includeInactive bool) ([]store.APIKey, error)
	ListActiveAPIKeys(ctx context.Context) ([]store.APIKey, error)
	SetAPIKeyActive(ctx context.Context, id int64, active bool) error
	TouchAPIKey(ctx context.Context, id int64, t time.Time) error
	DeleteAPIKey(ctx context.Context, id int64) error
}

type Config struct {
	Prefix string
	Cost   int
}

type Service struct {
	repository Repository
	prefix     string
	cost       int
	log        logr.Logger
	now        func() time.Time
}

func NewService(repository Repository, config Config, logger logr.Logger) *Service {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Cost == 0 {
		config.Cost = DefaultCost
	}
	return &Service{
		repository: repository,
		prefix:     config.Prefix,
		cost:       config.Cost,
		log:        logger.WithName("apikey"),
		now:        time.Now,
	}
}

// Generate creates a key and returns its plaintext, which is never stored.
func (s *Service) Generate(ctx context.Context, name string, description string, expiresAt *time.Time) (string, *store.APIKey, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", nil, xerrors.Errorf("failed to read random bytes: %w", err)
	}
	plaintext := s.prefix + base64.RawURLEncoding.EncodeToString(b)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", nil, xerrors.Errorf("failed to hash api key: %w", err)
	}

	key := &store.APIKey{
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: plaintext[:len(s.prefix)+displayLength],
		ExpiresAt: expiresAt,
	}
	if description != "" {
		key.Description = &description
	}

	created, err := s.repository.CreateAPIKey(ctx, key)
	if err != nil {
		return "", nil, xerrors.Errorf("failed to create api key: %w", err)
	}
	s.log.Info("created api key", "id", created.ID, "name", created.Name, "prefix", created.KeyPrefix)
	return plaintext, created, nil
}

// Validate returns the active key matching presented and records its use.
// An expired match is rejected.
func (s *Service) Validate(ctx context.Context, presented string) (*store.APIKey, error) {
	if presented == "" {
		return nil, ErrInvalidKey
	}

	keys, err := s.repository.ListActiveAPIKeys(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to list api keys: %w", err)
	}

	for i := range keys {
		key := &keys[i]
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(presented)) != nil {
			continue
		}
		now := s.now()
		if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
			return nil, ErrInvalidKey
		}
		if err := s.repository.TouchAPIKey(ctx, key.ID, now); err != nil {
			s.log.Error(err, "failed to record api key usage", "id", key.ID)
		}
		return key, nil
	}
	return nil, ErrInvalidKey
}

func (s *Service) Revoke(ctx context.Context, id int64) error {
	if err := s.repository.SetAPIKeyActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("revoked api key", "id", id)
	return nil
}

func (s *Service) Reactivate(ctx context.Context, id int64) error {
	if err := s.repository.SetAPIKeyActive(ctx, id, true); err != nil {
		return err
	}
	s.log.Info("reactivated api key", "id", id)
	return nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]store.APIKey, error) {
	return s.repository.ListAPIKeys(ctx, includeInactive)
}

func (s *Service) Get(ctx context.Context, id int64) (*store.APIKey, error) {
	return s.repository.GetAPIKey(ctx, id)
}

// Delete removes the key permanently. Revoke keeps it for auditing.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repository.DeleteAPIKey(ctx, id); err != nil {
		return err
	}
	s.log.Info("deleted api key", "id", id)
	return nil
}
