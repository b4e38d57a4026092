package audit

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Touch-target size thresholds in CSS pixels.
const (
	minTargetSize         = 24 // WCAG 2.2 AA minimum
	recommendedTargetSize = 44 // AAA / platform guidance
)

const (
	recommendationError   = "Increase the touch target to at least 24x24px to meet WCAG 2.2 AA"
	recommendationWarning = "Increase the touch target to at least 44x44px for comfortable tapping"
)

// touchTargetJS collects every rendered interactive element. Elements with
// zero area or hidden styling are not interactable and are excluded here so
// they never count toward the total.
const touchTargetJS = `() => {
	const selector = 'a, button, input, select, textarea, [role="button"]';
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;
		out.push({
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			class: (el.classList && el.classList.length > 0) ? el.classList[0] : '',
			text: (el.textContent || '').trim(),
			width: rect.width,
			height: rect.height,
			x: rect.x,
			y: rect.y,
		});
	}
	return out;
}`

type interactiveElement struct {
	Tag    string  `json:"tag"`
	ID     string  `json:"id"`
	Class  string  `json:"class"`
	Text   string  `json:"text"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// analyzeTouchTargets walks the page's interactive elements and classifies
// each against the 24px and 44px size thresholds.
func analyzeTouchTargets(ctx context.Context, page Page) (TouchTargetReport, error) {
	var elements []interactiveElement
	if err := page.Eval(ctx, touchTargetJS, &elements); err != nil {
		return TouchTargetReport{}, err
	}
	return classifyTouchTargets(elements), nil
}

// classifyTouchTargets is the pure classification step, separated from the
// page evaluation so the threshold rules are testable without a browser.
func classifyTouchTargets(elements []interactiveElement) TouchTargetReport {
	report := TouchTargetReport{Issues: []TouchTargetIssue{}}
	for _, el := range elements {
		report.Total++
		severity, ok := touchSeverity(el.Width, el.Height)
		if ok {
			report.Passing++
			continue
		}
		report.Failing++
		report.Issues = append(report.Issues, TouchTargetIssue{
			Element: elementIdentifier(el),
			Size: Size{
				Width:  int(math.Round(el.Width)),
				Height: int(math.Round(el.Height)),
			},
			Position: Point{
				X: int(math.Round(el.X)),
				Y: int(math.Round(el.Y)),
			},
			Severity:       severity,
			Recommendation: recommendationFor(severity),
		})
	}
	return report
}

// touchSeverity returns the issue severity for a target size, or ok=true
// when both dimensions meet the recommended size.
func touchSeverity(width, height float64) (severity Severity, ok bool) {
	if width < minTargetSize || height < minTargetSize {
		return SeverityError, false
	}
	if width < recommendedTargetSize || height < recommendedTargetSize {
		return SeverityWarning, false
	}
	return "", true
}

func recommendationFor(severity Severity) string {
	if severity == SeverityError {
		return recommendationError
	}
	return recommendationWarning
}

// elementIdentifier builds a short human-readable identifier: tag plus id,
// else first class, else truncated text content.
func elementIdentifier(el interactiveElement) string {
	if el.ID != "" {
		return fmt.Sprintf("%s#%s", el.Tag, el.ID)
	}
	if el.Class != "" {
		return fmt.Sprintf("%s.%s", el.Tag, el.Class)
	}
	if text := strings.TrimSpace(el.Text); text != "" {
		// Truncate by runes so multi-byte text cannot be cut mid-character.
		if runes := []rune(text); len(runes) > 20 {
			text = string(runes[:20])
		}
		return fmt.Sprintf("%s %q", el.Tag, text)
	}
	return el.Tag
}

// strictFailureCount counts error-severity issues only. Warnings do not
// affect the mobile-friendliness clickability check.
func strictFailureCount(issues []TouchTargetIssue) int {
	count := 0
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}
