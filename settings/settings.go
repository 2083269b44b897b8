package settings

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

/* Webhook configuration store
 * A single flat record persisted under one well-known key; the Service keeps
 * the current value in memory and degrades to memory-only when the backing
 * store is unavailable
 */

// Settings is the persisted webhook configuration. It always exists: missing
// or unreadable storage falls back to Defaults.
type Settings struct {
	VerifyToken   string `json:"verifyToken"`
	PhoneNumberID string `json:"phoneNumberId"`
	TunnelURL     string `json:"tunnelUrl,omitempty"`
	TunnelEnabled bool   `json:"tunnelEnabled"`
}

// Defaults returns the built-in configuration used on first run.
func Defaults() Settings {
	return Settings{
		VerifyToken:   "yummy_webhook_verify_token",
		PhoneNumberID: "123456789012345",
	}
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	VerifyToken   *string `json:"verifyToken,omitempty"`
	PhoneNumberID *string `json:"phoneNumberId,omitempty"`
	TunnelURL     *string `json:"tunnelUrl,omitempty"`
	TunnelEnabled *bool   `json:"tunnelEnabled,omitempty"`
}

// Apply merges the supplied fields of p into s and returns the result.
func (s Settings) Apply(p Patch) Settings {
	if p.VerifyToken != nil {
		s.VerifyToken = *p.VerifyToken
	}
	if p.PhoneNumberID != nil {
		s.PhoneNumberID = *p.PhoneNumberID
	}
	if p.TunnelURL != nil {
		s.TunnelURL = *p.TunnelURL
	}
	if p.TunnelEnabled != nil {
		s.TunnelEnabled = *p.TunnelEnabled
	}
	return s
}

// TunnelHost extracts the host part of the configured tunnel URL. It returns
// the raw value when the URL does not parse, so a bare hostname still works.
func (s Settings) TunnelHost() string {
	raw := strings.TrimSpace(s.TunnelURL)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}

// Repository persists the configuration record.
type Repository interface {
	// Load returns the stored settings and whether a record was found.
	Load(ctx context.Context) (Settings, bool, error)
	// Save stores the settings, replacing any previous record.
	Save(ctx context.Context, s Settings) error
}

// Service owns the current configuration. Storage failures are logged and
// absorbed; callers always get a usable value.
type Service struct {
	repo   Repository
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
	loaded  bool
}

// NewService creates a settings service backed by repo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "settings"),
	}
}

// Get returns the current configuration, loading it from storage once.
// Missing fields fall back to defaults.
func (s *Service) Get(ctx context.Context) Settings {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.current
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.current
	}

	s.current = Defaults()
	stored, found, err := s.repo.Load(ctx)
	switch {
	case err != nil:
		s.logger.Error("loading webhook settings, continuing with defaults", "err", err)
	case found:
		s.current = fillDefaults(stored)
	}
	s.loaded = true
	return s.current
}

// Update merges the supplied fields, persists the result, and returns the
// new configuration. Persistence errors are logged, not returned: the
// in-memory value is updated regardless.
func (s *Service) Update(ctx context.Context, p Patch) Settings {
	current := s.Get(ctx)

	s.mu.Lock()
	s.current = current.Apply(p)
	updated := s.current
	s.mu.Unlock()

	if err := s.repo.Save(ctx, updated); err != nil {
		s.logger.Error("persisting webhook settings", "err", err)
	}
	return updated
}

// RegenerateVerifyToken replaces the verify token with a fresh random value
// and persists the result.
func (s *Service) RegenerateVerifyToken(ctx context.Context) Settings {
	token := "verify_" + uuid.NewString()
	return s.Update(ctx, Patch{VerifyToken: &token})
}

func fillDefaults(s Settings) Settings {
	def := Defaults()
	if s.VerifyToken == "" {
		s.VerifyToken = def.VerifyToken
	}
	if s.PhoneNumberID == "" {
		s.PhoneNumberID = def.PhoneNumberID
	}
	return s
}
