package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout())
	assert.Equal(t, 25*time.Second, cfg.IdleTimeout())
	assert.Equal(t, 15*time.Second, cfg.DOMReadyTimeout())
}

func TestConfig_ZeroValuesBackfilled(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout())
	assert.Equal(t, 25*time.Second, cfg.IdleTimeout())
	assert.Equal(t, 15*time.Second, cfg.DOMReadyTimeout())

	cfg = Config{NavigationTimeoutMs: 1000, IdleTimeoutMs: 2000, DOMReadyTimeoutMs: 3000}
	assert.Equal(t, time.Second, cfg.NavigationTimeout())
	assert.Equal(t, 2*time.Second, cfg.IdleTimeout())
	assert.Equal(t, 3*time.Second, cfg.DOMReadyTimeout())
}

func TestNewProvisioner_DefaultsMode(t *testing.T) {
	p := NewProvisioner(Config{}, nil)
	assert.Equal(t, ModeProduction, p.cfg.Mode)
}

func TestProvisionError(t *testing.T) {
	cause := errors.New("no binary")
	err := &ProvisionError{Mode: ModeDevelopment, Err: cause}

	assert.Contains(t, err.Error(), "development")
	assert.Contains(t, err.Error(), "no binary")
	require.ErrorIs(t, err, cause)
}

func TestSettleNavigation_IdleSuccessSkipsFallback(t *testing.T) {
	cfg := Config{IdleTimeoutMs: 2000, DOMReadyTimeoutMs: 1000}

	var attempts []proto.PageLifecycleEventName
	err := settleNavigation(cfg, func(event proto.PageLifecycleEventName, timeout time.Duration) error {
		attempts = append(attempts, event)
		assert.Equal(t, 2*time.Second, timeout)
		return nil
	}, func(error) {
		t.Fatal("retry hook must not fire when the idle wait succeeds")
	})

	require.NoError(t, err)
	assert.Equal(t, []proto.PageLifecycleEventName{proto.PageLifecycleEventNameNetworkAlmostIdle}, attempts)
}

func TestSettleNavigation_FallsBackToDOMContentLoaded(t *testing.T) {
	cfg := Config{IdleTimeoutMs: 2000, DOMReadyTimeoutMs: 1000}
	idleErr := errors.New("wait for networkAlmostIdle: context deadline exceeded")

	var attempts []proto.PageLifecycleEventName
	var timeouts []time.Duration
	retries := 0
	err := settleNavigation(cfg, func(event proto.PageLifecycleEventName, timeout time.Duration) error {
		attempts = append(attempts, event)
		timeouts = append(timeouts, timeout)
		if event == proto.PageLifecycleEventNameNetworkAlmostIdle {
			return idleErr
		}
		return nil
	}, func(err error) {
		retries++
		assert.ErrorIs(t, err, idleErr)
	})

	require.NoError(t, err, "a page that reaches dom-content-loaded is auditable")
	assert.Equal(t, []proto.PageLifecycleEventName{
		proto.PageLifecycleEventNameNetworkAlmostIdle,
		proto.PageLifecycleEventNameDOMContentLoaded,
	}, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, timeouts)
	assert.Equal(t, 1, retries)
}

func TestSettleNavigation_BothAttemptsFail(t *testing.T) {
	cause := errors.New("page never produced a lifecycle event")

	err := settleNavigation(DefaultConfig(), func(proto.PageLifecycleEventName, time.Duration) error {
		return cause
	}, func(error) {})

	require.ErrorIs(t, err, cause)
}

func TestMetricsObserverScript(t *testing.T) {
	// The new-document script owns the metrics slot contract the performance
	// probe reads.
	assert.Contains(t, metricsObserverJS, "window.__a11ycheckMetrics")
	assert.Contains(t, metricsObserverJS, "layout-shift")
	assert.Contains(t, metricsObserverJS, "largest-contentful-paint")
	assert.Contains(t, metricsObserverJS, "hadRecentInput")
}
