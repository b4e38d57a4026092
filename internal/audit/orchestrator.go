package audit

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"a11ycheck/internal/device"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Page is the remote-evaluation channel a probe needs: run a JS function
// expression in the page and decode the awaited value into out.
type Page interface {
	Eval(ctx context.Context, js string, out any, args ...any) error
}

// Session is one instrumented page owned by a single audit run.
type Session interface {
	Page
	// Configure applies the device profile emulation and installs the
	// new-document metrics observers.
	Configure(profile device.Profile) error
	// Navigate loads the target URL, falling back from a network-idle wait
	// to a dom-content-loaded wait, and reports the navigation duration.
	Navigate(ctx context.Context, target string) (time.Duration, error)
}

// Browser is a live headless-browser handle owned by one audit run.
type Browser interface {
	NewPage(ctx context.Context) (Session, error)
	Close() error
}

// Provisioner obtains a fresh browser handle for each run.
type Provisioner interface {
	Acquire(ctx context.Context) (Browser, error)
}

// TrialDecision is the result of the anonymous trial pre-flight check.
type TrialDecision struct {
	Allowed bool
	Message string
}

// DeductionMeta is the audit-trail context attached to a credit deduction.
type DeductionMeta struct {
	Tool        string
	URL         string
	Description string
}

// CreditGate is the usage-accounting collaborator consulted before and after
// each run.
type CreditGate interface {
	Balance(ctx context.Context, userID string) (int, error)
	Deduct(ctx context.Context, userID string, amount int, meta DeductionMeta) error
	CheckTrial(ctx context.Context, clientID, toolKey string) (TrialDecision, error)
	RecordTrial(ctx context.Context, clientID, toolKey string) error
}

// Composite score weighting: 60% automated-rule pass rate, 40% touch-target
// pass rate.
const (
	accessibilityWeight = 0.6
	touchTargetWeight   = 0.4
)

// Config holds orchestrator settings.
type Config struct {
	// CreditCost is deducted per successful authenticated, non-trial,
	// non-overridden run.
	CreditCost int
	// ToolKey identifies this tool in trial and usage records.
	ToolKey string
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		CreditCost: 1,
		ToolKey:    "mobile-accessibility-checker",
	}
}

// Request describes one audit invocation.
type Request struct {
	// URL is the audit target; it must be an absolute http(s) URL.
	URL string
	// Device selects the emulated profile; unknown names fall back to the
	// default profile.
	Device string
	// UserID identifies an authenticated caller. Empty means anonymous.
	UserID string
	// ClientID keys the anonymous trial allowance.
	ClientID string
	// UnlimitedAccess skips both the pre-flight authorization and the
	// post-flight accounting.
	UnlimitedAccess bool
}

// Auditor orchestrates a full mobile accessibility audit run.
type Auditor struct {
	cfg         Config
	provisioner Provisioner
	gate        CreditGate
	logger      *zap.Logger
}

// New creates an Auditor. A nil logger disables logging.
func New(cfg Config, provisioner Provisioner, gate CreditGate, logger *zap.Logger) *Auditor {
	if cfg.CreditCost <= 0 {
		cfg.CreditCost = DefaultConfig().CreditCost
	}
	if cfg.ToolKey == "" {
		cfg.ToolKey = DefaultConfig().ToolKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{cfg: cfg, provisioner: provisioner, gate: gate, logger: logger}
}

// Run executes one audit: validate, authorize, acquire a browser, configure
// and navigate the page, run the four probes with per-probe fault isolation,
// blend the composite score, and account for usage. Exactly one Result is
// produced for any run that reaches navigation; probe failures degrade their
// section instead of aborting.
func (a *Auditor) Run(ctx context.Context, req Request) (*Result, error) {
	result, err := a.run(ctx, req)
	if err != nil {
		a.logger.Error("audit failed",
			zap.String("url", req.URL),
			zap.String("device", req.Device),
			zap.Error(err))
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	return result, nil
}

func (a *Auditor) run(ctx context.Context, req Request) (*Result, error) {
	if err := validateTarget(req.URL); err != nil {
		return nil, err
	}

	if !req.UnlimitedAccess {
		if err := a.authorize(ctx, req); err != nil {
			return nil, err
		}
	}

	browser, err := a.provisioner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			a.logger.Error("browser close failed", zap.Error(closeErr))
		}
	}()

	profile := device.Resolve(req.Device)

	session, err := browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := session.Configure(profile); err != nil {
		return nil, fmt.Errorf("configure page for %s: %w", profile.Name, err)
	}

	loadTime, err := session.Navigate(ctx, req.URL)
	if err != nil {
		return nil, &NavigationError{URL: req.URL, Err: err}
	}

	result := a.runProbes(ctx, session, loadTime)
	result.AuditID = uuid.NewString()
	result.URL = req.URL
	result.Timestamp = time.Now().UTC()
	result.Device = profile.Name
	result.Viewport = Viewport{Width: profile.Width, Height: profile.Height}

	if !req.UnlimitedAccess {
		if err := a.account(ctx, req, result); err != nil {
			return nil, err
		}
	}

	a.logger.Info("audit complete",
		zap.String("url", req.URL),
		zap.String("device", profile.Name),
		zap.Int("score", result.Accessibility.Score),
		zap.Duration("load_time", loadTime))
	return result, nil
}

// runProbes executes the four probes in sequence. Each probe is independently
// fault-isolated: a failure substitutes that probe's documented safe default
// and never prevents the remaining probes from running.
func (a *Auditor) runProbes(ctx context.Context, session Session, loadTime time.Duration) *Result {
	accessibility, err := analyzeAccessibility(ctx, session)
	if err != nil {
		a.logger.Error("accessibility probe failed", zap.Error(err))
		accessibility = defaultAccessibility()
	}

	touchTargets, err := analyzeTouchTargets(ctx, session)
	if err != nil {
		a.logger.Error("touch target probe failed", zap.Error(err))
		touchTargets = TouchTargetReport{Issues: []TouchTargetIssue{}}
	}

	performance, err := analyzePerformance(ctx, session, loadTime)
	if err != nil {
		a.logger.Warn("performance probe failed", zap.Error(err))
		performance = defaultPerformance(loadTime)
	}

	mobileFriendly, err := analyzeMobileFriendliness(ctx, session, strictFailureCount(touchTargets.Issues))
	if err != nil {
		a.logger.Error("mobile friendliness probe failed", zap.Error(err))
		mobileFriendly = MobileFriendlyReport{}
	}

	// Callers only ever see the blended score, not the raw axe-only score.
	accessibility.Score = compositeScore(accessibility.Score, touchPassScore(touchTargets))

	return &Result{
		TouchTargets:   touchTargets,
		Performance:    performance,
		Accessibility:  accessibility,
		MobileFriendly: mobileFriendly,
	}
}

func (a *Auditor) authorize(ctx context.Context, req Request) error {
	if req.UserID != "" {
		balance, err := a.gate.Balance(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("credit balance lookup: %w", err)
		}
		if balance < a.cfg.CreditCost {
			return &InsufficientCreditsError{Balance: balance, Required: a.cfg.CreditCost}
		}
		return nil
	}

	decision, err := a.gate.CheckTrial(ctx, req.ClientID, a.cfg.ToolKey)
	if err != nil {
		return fmt.Errorf("trial check: %w", err)
	}
	if !decision.Allowed {
		return &TrialLimitExceededError{Message: decision.Message}
	}
	return nil
}

func (a *Auditor) account(ctx context.Context, req Request, result *Result) error {
	if req.UserID != "" {
		meta := DeductionMeta{
			Tool:        a.cfg.ToolKey,
			URL:         req.URL,
			Description: fmt.Sprintf("Mobile accessibility audit of %s (%s)", req.URL, result.Device),
		}
		if err := a.gate.Deduct(ctx, req.UserID, a.cfg.CreditCost, meta); err != nil {
			return fmt.Errorf("credit deduction: %w", err)
		}
		return nil
	}

	if err := a.gate.RecordTrial(ctx, req.ClientID, a.cfg.ToolKey); err != nil {
		return fmt.Errorf("trial record: %w", err)
	}
	return nil
}

// validateTarget rejects anything that is not an absolute http(s) URL before
// any browser work starts.
func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	return nil
}

// touchPassScore is the touch-target pass rate on a 0-100 scale. No
// interactive elements means nothing to penalize, so the score is 100.
func touchPassScore(report TouchTargetReport) float64 {
	if report.Total == 0 {
		return 100
	}
	return float64(report.Passing) / float64(report.Total) * 100
}

// compositeScore blends the accessibility pass-rate score with the
// touch-target pass rate into the single score presented to callers.
func compositeScore(accessibilityScore int, touchScore float64) int {
	return int(math.Round(float64(accessibilityScore)*accessibilityWeight + touchScore*touchTargetWeight))
}
