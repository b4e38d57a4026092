// Package audit implements the mobile accessibility audit pipeline: a set of
// independent page probes, the orchestrator that sequences them against a
// headless browser page, and the credit gating around each run.
package audit

import "time"

// Severity classifies a touch-target issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Size is a rendered element size in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a position in the page coordinate space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Viewport records the emulated viewport used for the run.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TouchTargetIssue describes one interactive element that failed a size
// threshold.
type TouchTargetIssue struct {
	Element        string   `json:"element"`
	Size           Size     `json:"size"`
	Position       Point    `json:"position"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// TouchTargetReport aggregates the touch-target probe output.
type TouchTargetReport struct {
	Total   int                `json:"total"`
	Passing int                `json:"passing"`
	Failing int                `json:"failing"`
	Issues  []TouchTargetIssue `json:"issues"`
}

// PerformanceReport holds the timing metrics captured during navigation.
// All values are milliseconds.
type PerformanceReport struct {
	LoadTime              float64 `json:"loadTime"`
	CumulativeLayoutShift float64 `json:"cumulativeLayoutShift"`
	FirstContentfulPaint  float64 `json:"firstContentfulPaint"`
}

// AccessibilityReport holds the automated WCAG scan output. Score is the
// blended composite score once the orchestrator finishes, not the raw
// rule-scan pass rate.
type AccessibilityReport struct {
	Score                     int      `json:"score"`
	Issues                    []string `json:"issues"`
	ScreenReaderCompatibility bool     `json:"screenReaderCompatibility"`
}

// MobileFriendlyReport holds the mobile-friendliness heuristics.
type MobileFriendlyReport struct {
	HasViewportMeta     bool `json:"hasViewportMeta"`
	TextReadable        bool `json:"textReadable"`
	LinksClickable      bool `json:"linksClickable"`
	ContentFitsViewport bool `json:"contentFitsViewport"`
}

// Result is the complete audit output for one run. The field names and
// nesting are a stable contract consumed by downstream report layers.
type Result struct {
	AuditID        string               `json:"auditId"`
	URL            string               `json:"url"`
	Timestamp      time.Time            `json:"timestamp"`
	Device         string               `json:"device"`
	Viewport       Viewport             `json:"viewport"`
	TouchTargets   TouchTargetReport    `json:"touchTargets"`
	Performance    PerformanceReport    `json:"performance"`
	Accessibility  AccessibilityReport  `json:"accessibility"`
	MobileFriendly MobileFriendlyReport `json:"mobileFriendly"`
}
