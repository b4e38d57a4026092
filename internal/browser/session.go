package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"a11ycheck/internal/device"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// mobileUserAgent is applied to every instrumented page so audit conditions
// are consistent regardless of the host environment.
const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// deviceScaleFactor is the fixed high-density scale applied to every profile.
const deviceScaleFactor = 2.0

// metricsObserverJS runs on every new document, before any page script. It
// seeds the page-global metrics slot and subscribes the layout-shift and
// largest-contentful-paint observers. CLS must accumulate from the very first
// paint, so this cannot be a post-load injection. Observer subscription
// failures (API unsupported) are swallowed per observer.
const metricsObserverJS = `(() => {
	window.__a11ycheckMetrics = { cls: 0, lcp: 0 };
	try {
		new PerformanceObserver((list) => {
			for (const entry of list.getEntries()) {
				if (!entry.hadRecentInput) {
					window.__a11ycheckMetrics.cls += entry.value;
				}
			}
		}).observe({ type: 'layout-shift', buffered: true });
	} catch (e) {
		console.warn('layout-shift observer unavailable:', e);
	}
	try {
		new PerformanceObserver((list) => {
			const entries = list.getEntries();
			if (entries.length > 0) {
				window.__a11ycheckMetrics.lcp = entries[entries.length - 1].startTime;
			}
		}).observe({ type: 'largest-contentful-paint', buffered: true });
	} catch (e) {
		console.warn('largest-contentful-paint observer unavailable:', e);
	}
})();`

// Session is one instrumented page, exclusively owned by a single audit run.
type Session struct {
	page   *rod.Page
	cfg    Config
	logger *zap.Logger
}

// Configure applies the device profile emulation (viewport, touch, user
// agent) and installs the new-document metrics observers.
func (s *Session) Configure(profile device.Profile) error {
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             profile.Width,
		Height:            profile.Height,
		DeviceScaleFactor: deviceScaleFactor,
		Mobile:            profile.IsMobile,
	}).Call(s.page); err != nil {
		return fmt.Errorf("set device metrics: %w", err)
	}

	touch := proto.EmulationSetTouchEmulationEnabled{Enabled: profile.HasTouch}
	if profile.HasTouch {
		points := 5
		touch.MaxTouchPoints = &points
	}
	if err := touch.Call(s.page); err != nil {
		return fmt.Errorf("set touch emulation: %w", err)
	}

	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent: mobileUserAgent,
	}).Call(s.page); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	if _, err := s.page.EvalOnNewDocument(metricsObserverJS); err != nil {
		return fmt.Errorf("install metrics observers: %w", err)
	}
	return nil
}

// Navigate loads the target URL. The first attempt waits for the network to
// go almost idle; when that times out the page is re-navigated waiting only
// for dom-content-loaded, since a partially loaded page is still auditable.
// The returned duration is the total time until the page settled.
func (s *Session) Navigate(ctx context.Context, target string) (time.Duration, error) {
	start := time.Now()
	page := s.page.Context(ctx)

	err := settleNavigation(s.cfg, func(event proto.PageLifecycleEventName, timeout time.Duration) error {
		return navigateUntil(page, target, event, timeout)
	}, func(err error) {
		s.logger.Warn("network-idle navigation failed, retrying with dom-content-loaded wait",
			zap.String("url", target),
			zap.Error(err))
	})
	if err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// navigateAttempt is one navigation try: load the target and block until the
// given page lifecycle event fires or the timeout elapses.
type navigateAttempt func(event proto.PageLifecycleEventName, timeout time.Duration) error

// settleNavigation runs the two-attempt navigation policy over attempt:
// networkAlmostIdle first, DOMContentLoaded as the fallback.
func settleNavigation(cfg Config, attempt navigateAttempt, onRetry func(error)) error {
	err := attempt(proto.PageLifecycleEventNameNetworkAlmostIdle, cfg.IdleTimeout())
	if err == nil {
		return nil
	}
	onRetry(err)
	return attempt(proto.PageLifecycleEventNameDOMContentLoaded, cfg.DOMReadyTimeout())
}

func navigateUntil(page *rod.Page, target string, event proto.PageLifecycleEventName, timeout time.Duration) error {
	p := page.Timeout(timeout)
	defer p.CancelTimeout()

	// The lifecycle subscription must exist before the navigation starts or
	// the event can be missed.
	wait := p.WaitNavigation(event)
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	// wait returns without error on timeout; expiry is read off the page
	// context instead.
	wait()
	if err := p.GetContext().Err(); err != nil {
		return fmt.Errorf("wait for %s: %w", event, err)
	}
	return nil
}

// Eval runs a JS function expression in the page, awaits its value, and
// decodes it into out. A nil or undefined result leaves out untouched.
// Evaluations are bounded by the default page timeout.
func (s *Session) Eval(ctx context.Context, js string, out any, args ...any) error {
	evalCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout())
	defer cancel()

	res, err := s.page.Context(evalCtx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil || res == nil || res.Value.Nil() {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode evaluation result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode evaluation result: %w", err)
	}
	return nil
}
