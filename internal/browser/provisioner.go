// Package browser provisions headless Chrome for audit runs and instruments
// pages with the device emulation and performance observers the probes need.
package browser

import (
	"context"
	"fmt"
	"time"

	"a11ycheck/internal/audit"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Mode selects the browser launch strategy. It is passed in explicitly at
// construction rather than read from the process environment.
type Mode string

const (
	// ModeProduction launches the launcher-managed, architecture-matched
	// headless Chromium with sandboxing disabled and TLS errors ignored.
	ModeProduction Mode = "production"
	// ModeDevelopment uses a locally installed browser, located lazily only
	// when a run actually needs it.
	ModeDevelopment Mode = "development"
)

// ProvisionError reports that no browser could be located or launched in the
// current mode.
type ProvisionError struct {
	Mode Mode
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("browser provisioning failed (%s mode): %v", e.Mode, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Config holds browser launch and navigation settings.
type Config struct {
	Mode Mode `yaml:"mode"`
	// Bin overrides browser binary discovery in development mode.
	Bin                 string `yaml:"bin"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	IdleTimeoutMs       int    `yaml:"idle_timeout_ms"`
	DOMReadyTimeoutMs   int    `yaml:"dom_ready_timeout_ms"`
}

// DefaultConfig returns production settings with the fixed navigation
// timeouts.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeProduction,
		NavigationTimeoutMs: 30000,
		IdleTimeoutMs:       25000,
		DOMReadyTimeoutMs:   15000,
	}
}

// NavigationTimeout is the default page timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// IdleTimeout bounds the network-idle navigation attempt.
func (c Config) IdleTimeout() time.Duration {
	if c.IdleTimeoutMs == 0 {
		return 25 * time.Second
	}
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// DOMReadyTimeout bounds the fallback dom-content-loaded attempt.
func (c Config) DOMReadyTimeout() time.Duration {
	if c.DOMReadyTimeoutMs == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.DOMReadyTimeoutMs) * time.Millisecond
}

// Provisioner launches a fresh browser process per audit run. No state is
// shared between runs; the caller owns each handle from acquisition to close.
type Provisioner struct {
	cfg    Config
	logger *zap.Logger
}

// NewProvisioner creates a Provisioner. A nil logger disables logging.
func NewProvisioner(cfg Config, logger *zap.Logger) *Provisioner {
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{cfg: cfg, logger: logger}
}

// Acquire launches and connects to a browser according to the configured
// mode.
func (p *Provisioner) Acquire(ctx context.Context) (audit.Browser, error) {
	controlURL, err := p.launch()
	if err != nil {
		return nil, &ProvisionError{Mode: p.cfg.Mode, Err: err}
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, &ProvisionError{Mode: p.cfg.Mode, Err: fmt.Errorf("connect: %w", err)}
	}

	p.logger.Debug("browser acquired", zap.String("mode", string(p.cfg.Mode)))
	return &Handle{rod: b, cfg: p.cfg, logger: p.logger}, nil
}

func (p *Provisioner) launch() (string, error) {
	switch p.cfg.Mode {
	case ModeDevelopment:
		bin := p.cfg.Bin
		if bin == "" {
			path, ok := launcher.LookPath()
			if !ok {
				return "", fmt.Errorf("no locally installed browser found; install Chrome or Chromium, or set browser.bin")
			}
			bin = path
		}
		return launcher.New().
			Bin(bin).
			Headless(true).
			NoSandbox(true).
			Launch()
	default:
		// The launcher resolves a bundled Chromium revision matched to the
		// host architecture when no binary is pinned.
		return launcher.New().
			Headless(true).
			NoSandbox(true).
			Set(flags.Flag("ignore-certificate-errors")).
			Launch()
	}
}

// Handle wraps one connected browser process.
type Handle struct {
	rod    *rod.Browser
	cfg    Config
	logger *zap.Logger
}

// NewPage opens a fresh page in the browser.
func (h *Handle) NewPage(ctx context.Context) (audit.Session, error) {
	page, err := h.rod.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &Session{page: page.Context(ctx), cfg: h.cfg, logger: h.logger}, nil
}

// Close shuts the browser down, closing any pages it still owns.
func (h *Handle) Close() error {
	return h.rod.Close()
}
