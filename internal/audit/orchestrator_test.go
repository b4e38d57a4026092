package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"a11ycheck/internal/device"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	fakePage
	profile   device.Profile
	cfgErr    error
	navErr    error
	loadTime  time.Duration
	navigated []string
}

func (s *fakeSession) Configure(profile device.Profile) error {
	s.profile = profile
	return s.cfgErr
}

func (s *fakeSession) Navigate(_ context.Context, target string) (time.Duration, error) {
	s.navigated = append(s.navigated, target)
	if s.navErr != nil {
		return 0, s.navErr
	}
	return s.loadTime, nil
}

type fakeBrowser struct {
	session    *fakeSession
	newPageErr error
	closeErr   error
	closed     int
}

func (b *fakeBrowser) NewPage(context.Context) (Session, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	return b.session, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return b.closeErr
}

type fakeProvisioner struct {
	browser *fakeBrowser
	err     error
	calls   int
}

func (p *fakeProvisioner) Acquire(context.Context) (Browser, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.browser, nil
}

type deduction struct {
	userID string
	amount int
	meta   DeductionMeta
}

type fakeGate struct {
	balance    int
	balanceErr error
	deductErr  error
	trial      TrialDecision
	trialErr   error

	deductions []deduction
	trials     []string
}

func (g *fakeGate) Balance(_ context.Context, _ string) (int, error) {
	return g.balance, g.balanceErr
}

func (g *fakeGate) Deduct(_ context.Context, userID string, amount int, meta DeductionMeta) error {
	if g.deductErr != nil {
		return g.deductErr
	}
	g.deductions = append(g.deductions, deduction{userID: userID, amount: amount, meta: meta})
	return nil
}

func (g *fakeGate) CheckTrial(_ context.Context, clientID, toolKey string) (TrialDecision, error) {
	return g.trial, g.trialErr
}

func (g *fakeGate) RecordTrial(_ context.Context, clientID, toolKey string) error {
	g.trials = append(g.trials, clientID+"/"+toolKey)
	return nil
}

// healthySession returns a session whose probes all succeed with realistic
// payloads: axe pass rate 90, one passing / one warning / one error touch
// target, full paint metrics, and a clean mobile snapshot.
func healthySession() *fakeSession {
	return &fakeSession{
		loadTime: 1234 * time.Millisecond,
		fakePage: fakePage{responses: map[string]string{
			axeAuditJS: `{"passes":18,"violations":2,"incomplete":0,
				"issues":["Images must have alternate text","Links must have discernible text"],
				"hasLandmarks":true}`,
			touchTargetJS: `[
				{"tag":"button","id":"cta","class":"","text":"","width":48,"height":48,"x":10,"y":10},
				{"tag":"a","id":"","class":"nav","text":"","width":40,"height":40,"x":20,"y":20},
				{"tag":"input","id":"","class":"","text":"","width":20,"height":20,"x":30,"y":30}
			]`,
			readMetricsJS:    `{"cls":0.12,"lcp":1450.5,"fcp":900}`,
			mobileSnapshotJS: `{"hasViewportMeta":true,"scrollWidth":390,"innerWidth":390,"hasSmallText":false}`,
		}},
	}
}

func newTestAuditor(prov Provisioner, gate CreditGate) *Auditor {
	return New(Config{CreditCost: 2, ToolKey: "mobile-audit"}, prov, gate, nil)
}

func TestRun_HappyPath(t *testing.T) {
	session := healthySession()
	browser := &fakeBrowser{session: session}
	prov := &fakeProvisioner{browser: browser}
	auditor := newTestAuditor(prov, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{
		URL:             "https://example.com",
		Device:          "Pixel 7",
		UnlimitedAccess: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	want := &Result{
		URL:      "https://example.com",
		Device:   "Pixel 7",
		Viewport: Viewport{Width: 412, Height: 915},
		TouchTargets: TouchTargetReport{
			Total:   3,
			Passing: 1,
			Failing: 2,
			Issues: []TouchTargetIssue{
				{
					Element:        "a.nav",
					Size:           Size{Width: 40, Height: 40},
					Position:       Point{X: 20, Y: 20},
					Severity:       SeverityWarning,
					Recommendation: recommendationWarning,
				},
				{
					Element:        "input",
					Size:           Size{Width: 20, Height: 20},
					Position:       Point{X: 30, Y: 30},
					Severity:       SeverityError,
					Recommendation: recommendationError,
				},
			},
		},
		Performance: PerformanceReport{
			LoadTime:              1234,
			CumulativeLayoutShift: 0.12,
			FirstContentfulPaint:  1450.5,
		},
		Accessibility: AccessibilityReport{
			// Raw axe score 90 blended with touch pass rate 1/3:
			// round(90*0.6 + 33.33*0.4) = 67.
			Score: 67,
			Issues: []string{
				"Images must have alternate text",
				"Links must have discernible text",
			},
			ScreenReaderCompatibility: true,
		},
		MobileFriendly: MobileFriendlyReport{
			HasViewportMeta:     true,
			TextReadable:        true,
			LinksClickable:      false, // one error-severity touch target
			ContentFitsViewport: true,
		},
	}
	if diff := cmp.Diff(want, result, cmpopts.IgnoreFields(Result{}, "AuditID", "Timestamp")); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	assert.NotEmpty(t, result.AuditID)
	assert.False(t, result.Timestamp.IsZero())
	assert.Equal(t, 1, browser.closed, "browser must be closed exactly once")
	assert.Equal(t, []string{"https://example.com"}, session.navigated)
	assert.Equal(t, "Pixel 7", session.profile.Name)
}

func TestRun_InvalidURL_NoBrowserAcquired(t *testing.T) {
	prov := &fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}
	auditor := newTestAuditor(prov, &fakeGate{})

	_, err := auditor.Run(context.Background(), Request{URL: "not a url", UnlimitedAccess: true})
	require.ErrorIs(t, err, ErrInvalidURL)
	assert.Zero(t, prov.calls, "no browser may be acquired for an invalid URL")
}

func TestRun_UnknownDeviceFallsBack(t *testing.T) {
	session := healthySession()
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: session}}, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{
		URL:             "https://example.com",
		Device:          "Nokia 3310",
		UnlimitedAccess: true,
	})
	require.NoError(t, err)
	assert.Equal(t, device.DefaultName, result.Device)
	assert.Equal(t, Viewport{Width: 390, Height: 844}, result.Viewport)
}

func TestRun_InsufficientCredits(t *testing.T) {
	prov := &fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}
	gate := &fakeGate{balance: 1}
	auditor := newTestAuditor(prov, gate) // cost 2

	_, err := auditor.Run(context.Background(), Request{
		URL:    "https://example.com",
		UserID: "user_1",
	})

	var credErr *InsufficientCreditsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, 1, credErr.Balance)
	assert.Equal(t, 2, credErr.Required)
	assert.Zero(t, prov.calls)
	assert.Empty(t, gate.deductions)
}

func TestRun_UnlimitedBypassesGateEntirely(t *testing.T) {
	gate := &fakeGate{balance: 0, trial: TrialDecision{Allowed: false}}
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}, gate)

	result, err := auditor.Run(context.Background(), Request{
		URL:             "https://example.com",
		UserID:          "user_broke",
		UnlimitedAccess: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, gate.deductions, "no deduction on an overridden run")
	assert.Empty(t, gate.trials)
}

func TestRun_TrialExceeded(t *testing.T) {
	prov := &fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}
	gate := &fakeGate{trial: TrialDecision{Allowed: false, Message: "Free trial limit reached."}}
	auditor := newTestAuditor(prov, gate)

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", ClientID: "anon_1"})

	var trialErr *TrialLimitExceededError
	require.ErrorAs(t, err, &trialErr)
	assert.Equal(t, "Free trial limit reached.", trialErr.Message)
	assert.Zero(t, prov.calls)
}

func TestRun_AnonymousTrialRecordedOnce(t *testing.T) {
	gate := &fakeGate{trial: TrialDecision{Allowed: true}}
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}, gate)

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", ClientID: "anon_1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"anon_1/mobile-audit"}, gate.trials)
	assert.Empty(t, gate.deductions)
}

func TestRun_AuthenticatedDeductsExactlyOnce(t *testing.T) {
	gate := &fakeGate{balance: 10}
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: healthySession()}}, gate)

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UserID: "user_1"})
	require.NoError(t, err)
	require.Len(t, gate.deductions, 1)
	d := gate.deductions[0]
	assert.Equal(t, "user_1", d.userID)
	assert.Equal(t, 2, d.amount)
	assert.Equal(t, "mobile-audit", d.meta.Tool)
	assert.Equal(t, "https://example.com", d.meta.URL)
	assert.Empty(t, gate.trials)
}

func TestRun_ProvisionFailure(t *testing.T) {
	provErr := errors.New("no chromium available")
	auditor := newTestAuditor(&fakeProvisioner{err: provErr}, &fakeGate{})

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})
	require.ErrorIs(t, err, provErr)
}

func TestRun_NavigationFailureClosesBrowser(t *testing.T) {
	session := healthySession()
	session.navErr = errors.New("both navigation attempts timed out")
	browser := &fakeBrowser{session: session}
	auditor := newTestAuditor(&fakeProvisioner{browser: browser}, &fakeGate{})

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})

	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "https://example.com", navErr.URL)
	assert.Equal(t, 1, browser.closed, "teardown must run on navigation failure")
}

func TestRun_AccessibilityProbeFailureDegrades(t *testing.T) {
	session := healthySession()
	session.errs = map[string]error{axeAuditJS: errors.New("axe injection blocked")}
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: session}}, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})
	require.NoError(t, err, "a probe failure must not abort the run")

	// Raw accessibility score degrades to 0; touch pass rate 1/3 still
	// contributes: round(0*0.6 + 33.33*0.4) = 13.
	assert.Equal(t, 13, result.Accessibility.Score)
	assert.Equal(t, []string{"Failed to run accessibility checks"}, result.Accessibility.Issues)
	assert.False(t, result.Accessibility.ScreenReaderCompatibility)
	// Remaining probes still ran.
	assert.Equal(t, 3, result.TouchTargets.Total)
	assert.True(t, result.MobileFriendly.HasViewportMeta)
}

func TestRun_AllProbesFailStillReturnsResult(t *testing.T) {
	session := healthySession()
	session.errs = map[string]error{
		axeAuditJS:       errors.New("boom"),
		touchTargetJS:    errors.New("boom"),
		readMetricsJS:    errors.New("boom"),
		mobileSnapshotJS: errors.New("boom"),
	}
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: session}}, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})
	require.NoError(t, err)

	// Touch section degrades to zeroes; with zero targets the touch score is
	// 100, so the composite is round(0*0.6 + 100*0.4) = 40.
	assert.Equal(t, TouchTargetReport{Issues: []TouchTargetIssue{}}, result.TouchTargets)
	assert.Equal(t, 40, result.Accessibility.Score)
	assert.Equal(t, PerformanceReport{LoadTime: 1234, FirstContentfulPaint: 1234}, result.Performance)
	assert.Equal(t, MobileFriendlyReport{}, result.MobileFriendly)
}

func TestRun_ZeroInteractiveElements(t *testing.T) {
	session := healthySession()
	session.responses[touchTargetJS] = `[]`
	auditor := newTestAuditor(&fakeProvisioner{browser: &fakeBrowser{session: session}}, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})
	require.NoError(t, err)

	assert.Equal(t, TouchTargetReport{Issues: []TouchTargetIssue{}}, result.TouchTargets)
	// Nothing to penalize: touch score 100, axe score 90 → round(54+40) = 94.
	assert.Equal(t, 94, result.Accessibility.Score)
	assert.True(t, result.MobileFriendly.LinksClickable)
}

func TestRun_BrowserCloseErrorIsSwallowed(t *testing.T) {
	browser := &fakeBrowser{session: healthySession(), closeErr: errors.New("already dead")}
	auditor := newTestAuditor(&fakeProvisioner{browser: browser}, &fakeGate{})

	result, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UnlimitedAccess: true})
	require.NoError(t, err, "close errors are logged, never propagated")
	require.NotNil(t, result)
	assert.Equal(t, 1, browser.closed)
}

func TestRun_DeductionFailureIsFatalAfterTeardown(t *testing.T) {
	browser := &fakeBrowser{session: healthySession()}
	gate := &fakeGate{balance: 10, deductErr: errors.New("ledger write failed")}
	auditor := newTestAuditor(&fakeProvisioner{browser: browser}, gate)

	_, err := auditor.Run(context.Background(), Request{URL: "https://example.com", UserID: "user_1"})
	require.Error(t, err)
	assert.Equal(t, 1, browser.closed)
}
