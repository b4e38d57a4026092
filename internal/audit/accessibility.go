package audit

import (
	"context"
	"math"
)

// axeScriptURL is loaded into the audited page when window.axe is absent.
const axeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.8.4/axe.min.js"

// axeAuditJS injects axe-core on demand, runs the WCAG 2.x A/AA and
// best-practice rulesets, and summarizes the outcome together with a landmark
// presence check. Landmarks are the union of explicit ARIA roles and native
// semantic elements; either form satisfies screen-reader navigability.
const axeAuditJS = `async (scriptURL) => {
	if (!window.axe) {
		await new Promise((resolve, reject) => {
			const script = document.createElement('script');
			script.src = scriptURL;
			script.onload = resolve;
			script.onerror = () => reject(new Error('failed to load axe-core'));
			document.head.appendChild(script);
		});
	}

	const results = await window.axe.run(document, {
		runOnly: {
			type: 'tag',
			values: ['wcag2a', 'wcag2aa', 'wcag21a', 'wcag21aa', 'wcag22aa', 'best-practice'],
		},
	});

	const landmarkSelector = [
		'[role="banner"]', '[role="navigation"]', '[role="main"]',
		'[role="contentinfo"]', '[role="complementary"]', '[role="search"]',
		'main', 'nav', 'header', 'footer', 'aside',
	].join(',');

	return {
		passes: results.passes.length,
		violations: results.violations.length,
		incomplete: results.incomplete.length,
		issues: results.violations.map(v => v.help),
		hasLandmarks: document.querySelector(landmarkSelector) !== null,
	};
}`

type axeSummary struct {
	Passes       int      `json:"passes"`
	Violations   int      `json:"violations"`
	Incomplete   int      `json:"incomplete"`
	Issues       []string `json:"issues"`
	HasLandmarks bool     `json:"hasLandmarks"`
}

// screenReaderScoreThreshold gates the screen-reader compatibility signal.
const screenReaderScoreThreshold = 85

// analyzeAccessibility runs the automated WCAG ruleset scan and derives the
// pass-rate score and the coarse screen-reader compatibility signal.
func analyzeAccessibility(ctx context.Context, page Page) (AccessibilityReport, error) {
	var summary axeSummary
	if err := page.Eval(ctx, axeAuditJS, &summary, axeScriptURL); err != nil {
		return AccessibilityReport{}, err
	}

	score := passRateScore(summary.Passes, summary.Violations, summary.Incomplete)
	issues := summary.Issues
	if issues == nil {
		issues = []string{}
	}
	return AccessibilityReport{
		Score:                     score,
		Issues:                    issues,
		ScreenReaderCompatibility: score > screenReaderScoreThreshold && summary.HasLandmarks,
	}, nil
}

// passRateScore converts scan counts into a 0-100 score. Zero evaluable
// checks means no evidence of failure, so the score is 100.
func passRateScore(passes, violations, incomplete int) int {
	total := passes + violations + incomplete
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(total-violations) / float64(total) * 100))
}

// defaultAccessibility is the worst-case fallback when the scan itself fails:
// accessibility is safety-critical, so failure degrades pessimistically.
func defaultAccessibility() AccessibilityReport {
	return AccessibilityReport{
		Score:                     0,
		Issues:                    []string{"Failed to run accessibility checks"},
		ScreenReaderCompatibility: false,
	}
}
