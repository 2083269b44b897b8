package profile

import (
	"fmt"
	"os"

	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/whatsapp"
	"gopkg.in/yaml.v3"
)

/* Profile manages the sandbox persona from profile.yaml
 * Defines the emulated business account card and the starting webhook settings
 */

// File represents the structure of profile.yaml
type File struct {
	Account AccountConfig `yaml:"account"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// AccountConfig represents the emulated business account in the YAML file
type AccountConfig struct {
	VerifiedName  string `yaml:"verified_name"`
	Status        string `yaml:"status"`         // Default: connected
	QualityRating string `yaml:"quality_rating"` // Default: GREEN
}

// WebhookConfig represents the starting webhook settings in the YAML file
type WebhookConfig struct {
	VerifyToken   string `yaml:"verify_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	TunnelURL     string `yaml:"tunnel_url"`
	TunnelEnabled bool   `yaml:"tunnel_enabled"`
}

// Profile is the validated, ready-to-wire persona.
type Profile struct {
	Account  whatsapp.AccountInfo
	Settings settings.Settings
}

var validStatuses = map[string]bool{
	"connected":    true,
	"disconnected": true,
	"flagged":      true,
	"restricted":   true,
}

var validRatings = map[string]bool{
	"GREEN":   true,
	"YELLOW":  true,
	"RED":     true,
	"UNKNOWN": true,
}

// Default returns the persona used when no profile file is configured.
func Default() Profile {
	return Profile{
		Account: whatsapp.AccountInfo{
			VerifiedName:  "YummyOrder Restaurant",
			Status:        "connected",
			QualityRating: "GREEN",
		},
		Settings: settings.Defaults(),
	}
}

// Load reads and parses a profile.yaml file. Missing fields fall back to the
// defaults; present fields are validated.
func Load(filePath string) (Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Profile{}, fmt.Errorf("parsing profile YAML: %w", err)
	}

	p := Default()
	if file.Account.VerifiedName != "" {
		p.Account.VerifiedName = file.Account.VerifiedName
	}
	if file.Account.Status != "" {
		if !validStatuses[file.Account.Status] {
			return Profile{}, fmt.Errorf("invalid account status: %s", file.Account.Status)
		}
		p.Account.Status = file.Account.Status
	}
	if file.Account.QualityRating != "" {
		if !validRatings[file.Account.QualityRating] {
			return Profile{}, fmt.Errorf("invalid quality rating: %s", file.Account.QualityRating)
		}
		p.Account.QualityRating = file.Account.QualityRating
	}

	if file.Webhook.VerifyToken != "" {
		p.Settings.VerifyToken = file.Webhook.VerifyToken
	}
	if file.Webhook.PhoneNumberID != "" {
		p.Settings.PhoneNumberID = file.Webhook.PhoneNumberID
	}
	if file.Webhook.TunnelURL != "" {
		p.Settings.TunnelURL = file.Webhook.TunnelURL
	}
	p.Settings.TunnelEnabled = file.Webhook.TunnelEnabled

	return p, nil
}
