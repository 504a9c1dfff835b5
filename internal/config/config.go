package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/petervdpas/mailshell/internal/util"

	"github.com/samber/lo"
)

type Config struct {
	Window     Window     `json:"window"`
	Accounts   []Account  `json:"accounts"`
	Navigation Navigation `json:"navigation"`
	Timing     Timing     `json:"timing"`
	Control    Control    `json:"control"`
	Log        Log        `json:"log"`
}

type Window struct {
	Title        string `json:"title"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SidebarWidth int    `json:"sidebar_width"`
	Background   string `json:"background"` // "#rrggbb", shown while surfaces paint
}

type Account struct {
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	SessionKey string `json:"session_key"` // storage partition, must be unique
	URL        string `json:"url"`

	// Host the account is allowed to navigate within. Empty means the host
	// of URL.
	ServiceDomain string `json:"service_domain"`
}

type Navigation struct {
	AuthDomain   string `json:"auth_domain"`
	SigninMarker string `json:"signin_marker"`
	OAuthMarker  string `json:"oauth_marker"`
}

// Timing knobs. All of these can be changed while the app runs.
type Timing struct {
	RetryDelayMs         int `json:"retry_delay_ms"`
	ProcessGoneDelayMs   int `json:"process_gone_delay_ms"`
	DetachDelayMs        int `json:"detach_delay_ms"`
	InitialSwitchDelayMs int `json:"initial_switch_delay_ms"`

	// Switching to a surface older than ReloadAfterSec reloads it; older
	// than FreshLoadAfterSec navigates it back to the account URL.
	ReloadAfterSec    int `json:"reload_after_sec"`
	FreshLoadAfterSec int `json:"fresh_load_after_sec"`

	SweepIntervalSec int `json:"sweep_interval_sec"`
	SweepStaleSec    int `json:"sweep_stale_sec"`
}

type Control struct {
	// Loopback address for the control bridge, e.g. "127.0.0.1:8790".
	// Empty disables it.
	Addr string `json:"addr"`
}

type Log struct {
	Level      string            `json:"level"`
	Subsystems map[string]string `json:"subsystems"`
}

func Default() Config {
	return Config{
		Window: Window{
			Title:        "Mailshell",
			Width:        1200,
			Height:       800,
			SidebarWidth: 60,
			Background:   "#1f1f1f",
		},
		Accounts: []Account{
			{
				Name:       "Personal",
				Icon:       "icons/gmail-personal.png",
				SessionKey: "gmail-1",
				URL:        "https://mail.google.com/mail/u/0/#inbox",
			},
			{
				Name:       "Work",
				Icon:       "icons/gmail-work.png",
				SessionKey: "gmail-2",
				URL:        "https://mail.google.com/mail/u/1/#inbox",
			},
		},
		Navigation: Navigation{
			AuthDomain:   "accounts.google.com",
			SigninMarker: "signin",
			OAuthMarker:  "oauth",
		},
		Timing: Timing{
			RetryDelayMs:         2000,
			ProcessGoneDelayMs:   1000,
			DetachDelayMs:        50,
			InitialSwitchDelayMs: 500,
			ReloadAfterSec:       10 * 60,
			FreshLoadAfterSec:    30 * 60,
			SweepIntervalSec:     10 * 60,
			SweepStaleSec:        45 * 60,
		},
		Log: Log{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	// Window
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.New("window.width and window.height must be > 0")
	}
	if c.Window.SidebarWidth < 0 || c.Window.SidebarWidth >= c.Window.Width {
		return errors.New("window.sidebar_width must be 0..width-1")
	}
	if _, err := ParseColor(c.Window.Background); err != nil {
		return fmt.Errorf("window.background: %w", err)
	}

	// Accounts
	if len(c.Accounts) == 0 {
		return errors.New("accounts must not be empty")
	}
	for i, a := range c.Accounts {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("accounts[%d].name is required", i)
		}
		if strings.TrimSpace(a.SessionKey) == "" {
			return fmt.Errorf("accounts[%d].session_key is required", i)
		}
		if err := validateAccountURL(a.URL, a.ServiceDomain); err != nil {
			return fmt.Errorf("accounts[%d].url: %w", i, err)
		}
	}
	if dups := lo.FindDuplicatesBy(c.Accounts, func(a Account) string { return a.SessionKey }); len(dups) > 0 {
		return fmt.Errorf("accounts: session_key %q is used more than once", dups[0].SessionKey)
	}

	// Navigation
	if strings.TrimSpace(c.Navigation.AuthDomain) == "" {
		return errors.New("navigation.auth_domain is required")
	}

	return c.Timing.Validate()
}

func (t Timing) Validate() error {
	if t.RetryDelayMs < 0 || t.ProcessGoneDelayMs < 0 || t.DetachDelayMs < 0 || t.InitialSwitchDelayMs < 0 {
		return errors.New("timing delays must be >= 0")
	}
	if t.ReloadAfterSec <= 0 {
		return errors.New("timing.reload_after_sec must be > 0")
	}
	if t.FreshLoadAfterSec <= t.ReloadAfterSec {
		return errors.New("timing.fresh_load_after_sec must be > timing.reload_after_sec")
	}
	if t.SweepIntervalSec <= 0 {
		return errors.New("timing.sweep_interval_sec must be > 0")
	}
	// The sweeper must never compete with a switch-triggered refresh.
	if t.SweepStaleSec <= t.FreshLoadAfterSec {
		return errors.New("timing.sweep_stale_sec must be > timing.fresh_load_after_sec")
	}
	return nil
}

func (t Timing) RetryDelay() time.Duration { return ms(t.RetryDelayMs) }
func (t Timing) ProcessGoneDelay() time.Duration {
	return ms(t.ProcessGoneDelayMs)
}
func (t Timing) DetachDelay() time.Duration        { return ms(t.DetachDelayMs) }
func (t Timing) InitialSwitchDelay() time.Duration { return ms(t.InitialSwitchDelayMs) }
func (t Timing) ReloadAfter() time.Duration        { return sec(t.ReloadAfterSec) }
func (t Timing) FreshLoadAfter() time.Duration     { return sec(t.FreshLoadAfterSec) }
func (t Timing) SweepInterval() time.Duration      { return sec(t.SweepIntervalSec) }
func (t Timing) SweepStale() time.Duration         { return sec(t.SweepStaleSec) }

func ms(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func sec(n int) time.Duration { return time.Duration(n) * time.Second }

// validateAccountURL holds account URLs to the same rules surfaces navigate
// by: https on the default port, no credentials, and on the service domain
// when one is given.
func validateAccountURL(raw, serviceDomain string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "https" {
		return errors.New("scheme must be https")
	}
	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	if u.User != nil {
		return errors.New("must not carry credentials")
	}
	if p := u.Port(); p != "" && p != "443" {
		return fmt.Errorf("port %s is not allowed", p)
	}
	if sd := strings.TrimSpace(serviceDomain); sd != "" && !strings.EqualFold(u.Hostname(), sd) {
		return fmt.Errorf("host %s is not the service domain %s", u.Hostname(), sd)
	}
	return nil
}

// ParseColor parses "#rrggbb" into its components.
func ParseColor(s string) ([3]uint8, error) {
	var rgb [3]uint8
	if len(s) != 7 || s[0] != '#' {
		return rgb, errors.New("color must be #rrggbb")
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &rgb[0], &rgb[1], &rgb[2]); err != nil {
		return rgb, fmt.Errorf("color must be #rrggbb: %v", err)
	}
	return rgb, nil
}

func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadPartial reads a config file without validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	// Accounts are decoded into a fresh slice so a short list in the file
	// does not inherit fields from the default entries.
	cfg := Default()
	defaults := cfg.Accounts
	cfg.Accounts = nil
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Accounts == nil {
		cfg.Accounts = defaults
	}

	return cfg, nil
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
