package profile_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yummyorder/whatsapp-sandbox/profile"
	"github.com/yummyorder/whatsapp-sandbox/settings"
)

func writeTempProfile(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "profile-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	t.Run("success - full profile file", func(t *testing.T) {
		path := writeTempProfile(t, `
account:
  verified_name: "Pizzaria do Zé"
  status: "connected"
  quality_rating: "YELLOW"
webhook:
  verify_token: "ze_verify_token"
  phone_number_id: "559900000001"
  tunnel_url: "https://ze.ngrok.io"
  tunnel_enabled: true
`)

		p, err := profile.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "Pizzaria do Zé", p.Account.VerifiedName)
		assert.Equal(t, "YELLOW", p.Account.QualityRating)
		assert.Equal(t, "ze_verify_token", p.Settings.VerifyToken)
		assert.Equal(t, "559900000001", p.Settings.PhoneNumberID)
		assert.Equal(t, "https://ze.ngrok.io", p.Settings.TunnelURL)
		assert.True(t, p.Settings.TunnelEnabled)
	})

	t.Run("success - missing fields fall back to defaults", func(t *testing.T) {
		path := writeTempProfile(t, `
account:
  verified_name: "Cantina da Nona"
`)

		p, err := profile.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "Cantina da Nona", p.Account.VerifiedName)
		assert.Equal(t, "connected", p.Account.Status)
		assert.Equal(t, "GREEN", p.Account.QualityRating)
		assert.Equal(t, settings.Defaults().VerifyToken, p.Settings.VerifyToken)
	})

	t.Run("error - file not found", func(t *testing.T) {
		_, err := profile.Load("nonexistent.yaml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading profile file")
	})

	t.Run("error - invalid YAML", func(t *testing.T) {
		path := writeTempProfile(t, `invalid yaml content: [[[`)

		_, err := profile.Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing profile YAML")
	})

	t.Run("error - unknown account status", func(t *testing.T) {
		path := writeTempProfile(t, `
account:
  status: "offline"
`)

		_, err := profile.Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid account status")
	})

	t.Run("error - unknown quality rating", func(t *testing.T) {
		path := writeTempProfile(t, `
account:
  quality_rating: "BLUE"
`)

		_, err := profile.Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid quality rating")
	})
}

func TestDefault(t *testing.T) {
	p := profile.Default()

	assert.Equal(t, "connected", p.Account.Status)
	assert.Equal(t, "GREEN", p.Account.QualityRating)
	assert.NotEmpty(t, p.Account.VerifiedName)
	assert.Equal(t, settings.Defaults(), p.Settings)
}
