package audit

import (
	"context"
	"time"
)

// readMetricsJS reads the page-global metrics slot seeded by the page
// instrumentor on every new document, plus the standard paint-timing buffer
// as an FCP fallback. A missing slot reads as zeroes.
const readMetricsJS = `() => {
	const metrics = window.__a11ycheckMetrics || { cls: 0, lcp: 0 };
	let fcp = 0;
	const entries = performance.getEntriesByName('first-contentful-paint');
	if (entries.length > 0) {
		fcp = entries[0].startTime;
	}
	return { cls: metrics.cls, lcp: metrics.lcp, fcp: fcp };
}`

type pagePaintMetrics struct {
	CLS float64 `json:"cls"`
	LCP float64 `json:"lcp"`
	FCP float64 `json:"fcp"`
}

// analyzePerformance reads the accumulated layout-shift and paint metrics.
// The navigation duration serves as the pessimistic upper bound when no
// paint entry was captured.
func analyzePerformance(ctx context.Context, page Page, loadTime time.Duration) (PerformanceReport, error) {
	loadMs := float64(loadTime.Milliseconds())

	var metrics pagePaintMetrics
	if err := page.Eval(ctx, readMetricsJS, &metrics); err != nil {
		return PerformanceReport{}, err
	}

	return PerformanceReport{
		LoadTime:              loadMs,
		CumulativeLayoutShift: metrics.CLS,
		FirstContentfulPaint:  resolvePaint(metrics.LCP, metrics.FCP, loadMs),
	}, nil
}

// resolvePaint picks LCP when captured, then FCP, then the navigation
// duration.
func resolvePaint(lcp, fcp, loadTime float64) float64 {
	if lcp > 0 {
		return lcp
	}
	if fcp > 0 {
		return fcp
	}
	return loadTime
}

// defaultPerformance is the fallback when the metrics read fails. The
// navigation duration is the only timing still known to be valid.
func defaultPerformance(loadTime time.Duration) PerformanceReport {
	loadMs := float64(loadTime.Milliseconds())
	return PerformanceReport{
		LoadTime:             loadMs,
		FirstContentfulPaint: loadMs,
	}
}
