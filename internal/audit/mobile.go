package audit

import "context"

// contentWidthTolerance absorbs sub-pixel rounding when comparing document
// scroll width against the viewport.
const contentWidthTolerance = 2

// minReadableFontPx is the smallest computed font size considered readable
// on a mobile viewport.
const minReadableFontPx = 12

// mobileSnapshotJS gathers the raw signals for the mobile-friendliness
// heuristics. Text readability is conservative: a single visible text-bearing
// element below the minimum font size fails the whole page.
const mobileSnapshotJS = `(minFontPx) => {
	const textSelector = 'p, span, li, td, th, a, button, label, h1, h2, h3, h4, h5, h6, div';
	let hasSmallText = false;
	for (const el of document.querySelectorAll(textSelector)) {
		if (!el.textContent || el.textContent.trim() === '') continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;
		if (parseFloat(style.fontSize) < minFontPx) {
			hasSmallText = true;
			break;
		}
	}
	return {
		hasViewportMeta: document.querySelector('meta[name="viewport"]') !== null,
		scrollWidth: document.documentElement.scrollWidth,
		innerWidth: window.innerWidth,
		hasSmallText: hasSmallText,
	};
}`

type mobileSnapshot struct {
	HasViewportMeta bool    `json:"hasViewportMeta"`
	ScrollWidth     float64 `json:"scrollWidth"`
	InnerWidth      float64 `json:"innerWidth"`
	HasSmallText    bool    `json:"hasSmallText"`
}

// analyzeMobileFriendliness checks viewport-meta presence, content-width fit,
// minimum readable font size, and link clickability. Clickability is derived
// from the touch-target probe's error-severity failure count alone, making it
// stricter than the raw touch-target pass rate.
func analyzeMobileFriendliness(ctx context.Context, page Page, strictTouchFailures int) (MobileFriendlyReport, error) {
	var snap mobileSnapshot
	if err := page.Eval(ctx, mobileSnapshotJS, &snap, minReadableFontPx); err != nil {
		return MobileFriendlyReport{}, err
	}

	return MobileFriendlyReport{
		HasViewportMeta:     snap.HasViewportMeta,
		TextReadable:        !snap.HasSmallText,
		LinksClickable:      strictTouchFailures == 0,
		ContentFitsViewport: contentFitsViewport(snap.ScrollWidth, snap.InnerWidth),
	}, nil
}

func contentFitsViewport(scrollWidth, innerWidth float64) bool {
	return scrollWidth <= innerWidth+contentWidthTolerance
}
