package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/settings/memory"
)

// brokenRepository simulates an unavailable store.
type brokenRepository struct{}

func (brokenRepository) Load(ctx context.Context) (settings.Settings, bool, error) {
	return settings.Settings{}, false, errors.New("storage unavailable")
}

func (brokenRepository) Save(ctx context.Context, s settings.Settings) error {
	return errors.New("storage unavailable")
}

func TestApply(t *testing.T) {
	base := settings.Defaults()

	t.Run("only supplied fields change", func(t *testing.T) {
		url := "https://abc123.ngrok.io"
		merged := base.Apply(settings.Patch{TunnelURL: &url})

		assert.Equal(t, base.VerifyToken, merged.VerifyToken)
		assert.Equal(t, base.PhoneNumberID, merged.PhoneNumberID)
		assert.Equal(t, url, merged.TunnelURL)
		assert.False(t, merged.TunnelEnabled)
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		assert.Equal(t, base, base.Apply(settings.Patch{}))
	})
}

func TestTunnelHost(t *testing.T) {
	t.Run("full URL", func(t *testing.T) {
		s := settings.Settings{TunnelURL: "https://abc123.ngrok.io:443/path"}
		assert.Equal(t, "abc123.ngrok.io", s.TunnelHost())
	})

	t.Run("bare hostname", func(t *testing.T) {
		s := settings.Settings{TunnelURL: "abc123.ngrok.io"}
		assert.Equal(t, "abc123.ngrok.io", s.TunnelHost())
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", settings.Settings{}.TunnelHost())
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults on first use", func(t *testing.T) {
		svc := settings.NewService(memory.NewRepository(), nil)
		assert.Equal(t, settings.Defaults(), svc.Get(ctx))
	})

	t.Run("loads stored record once", func(t *testing.T) {
		repo := memory.NewRepository()
		stored := settings.Settings{VerifyToken: "secret", PhoneNumberID: "999"}
		require.NoError(t, repo.Save(ctx, stored))

		svc := settings.NewService(repo, nil)
		assert.Equal(t, stored, svc.Get(ctx))
	})

	t.Run("missing fields fall back to defaults", func(t *testing.T) {
		repo := memory.NewRepository()
		require.NoError(t, repo.Save(ctx, settings.Settings{TunnelEnabled: true}))

		svc := settings.NewService(repo, nil)
		got := svc.Get(ctx)
		assert.Equal(t, settings.Defaults().VerifyToken, got.VerifyToken)
		assert.Equal(t, settings.Defaults().PhoneNumberID, got.PhoneNumberID)
		assert.True(t, got.TunnelEnabled)
	})

	t.Run("storage failure degrades to defaults", func(t *testing.T) {
		svc := settings.NewService(brokenRepository{}, nil)
		assert.Equal(t, settings.Defaults(), svc.Get(ctx))
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and persists", func(t *testing.T) {
		repo := memory.NewRepository()
		svc := settings.NewService(repo, nil)

		enabled := true
		url := "https://abc123.ngrok.io"
		got := svc.Update(ctx, settings.Patch{TunnelEnabled: &enabled, TunnelURL: &url})

		assert.True(t, got.TunnelEnabled)
		assert.Equal(t, url, got.TunnelURL)
		assert.Equal(t, settings.Defaults().VerifyToken, got.VerifyToken)

		stored, found, err := repo.Load(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, got, stored)
	})

	t.Run("persistence failure keeps in-memory value", func(t *testing.T) {
		svc := settings.NewService(brokenRepository{}, nil)

		id := "42"
		got := svc.Update(ctx, settings.Patch{PhoneNumberID: &id})
		assert.Equal(t, "42", got.PhoneNumberID)
		assert.Equal(t, "42", svc.Get(ctx).PhoneNumberID)
	})
}

func TestRegenerateVerifyToken(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(memory.NewRepository(), nil)

	before := svc.Get(ctx).VerifyToken
	after := svc.RegenerateVerifyToken(ctx).VerifyToken

	assert.NotEqual(t, before, after)
	assert.NotEmpty(t, after)
	assert.Equal(t, after, svc.Get(ctx).VerifyToken)
}
