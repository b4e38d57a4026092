// This file contains the single-URL audit command.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"a11ycheck/internal/audit"
	"a11ycheck/internal/browser"
	"a11ycheck/internal/credits"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	auditDevice    string
	auditUser      string
	auditClient    string
	auditUnlimited bool
	auditJSON      bool
	auditOut       string
)

var auditCmd = &cobra.Command{
	Use:   "audit [url]",
	Short: "Run a mobile accessibility audit against a URL",
	Long: `Audits a single URL under an emulated mobile device profile and prints the
result. Authenticated runs (--user) cost credits; anonymous runs consume the
free trial allowance keyed by --client. --unlimited skips both.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVarP(&auditDevice, "device", "d", "", "Device profile to emulate (see 'a11ycheck devices')")
	auditCmd.Flags().StringVarP(&auditUser, "user", "u", "", "Authenticated user ID (credits are deducted)")
	auditCmd.Flags().StringVar(&auditClient, "client", "anonymous", "Anonymous client ID for trial accounting")
	auditCmd.Flags().BoolVar(&auditUnlimited, "unlimited", false, "Skip credit and trial accounting")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the full result as JSON")
	auditCmd.Flags().StringVarP(&auditOut, "out", "o", "", "Write the JSON result to a file")
}

// newAuditor wires the provisioner, the credit store, and the orchestrator
// from the loaded config. The returned cleanup closes the store.
func newAuditor() (*audit.Auditor, func(), error) {
	store, err := credits.NewStore(cfg.Credits, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open credit store: %w", err)
	}

	provisioner := browser.NewProvisioner(cfg.Browser, logger)
	auditor := audit.New(audit.Config{
		CreditCost: cfg.Audit.CreditCost,
		ToolKey:    cfg.Audit.ToolKey,
	}, provisioner, store, logger)

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("credit store close failed", zap.Error(err))
		}
	}
	return auditor, cleanup, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	auditor, cleanup, err := newAuditor()
	if err != nil {
		return err
	}
	defer cleanup()

	deviceName := auditDevice
	if deviceName == "" {
		deviceName = cfg.Audit.DefaultDevice
	}

	result, err := auditor.Run(cmd.Context(), audit.Request{
		URL:             args[0],
		Device:          deviceName,
		UserID:          auditUser,
		ClientID:        auditClient,
		UnlimitedAccess: auditUnlimited,
	})
	if err != nil {
		return err
	}

	return emitResult(result)
}

func emitResult(result *audit.Result) error {
	if auditOut != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if err := os.WriteFile(auditOut, data, 0644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		fmt.Printf("Result written to %s\n", auditOut)
		return nil
	}

	if auditJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSummary(result)
	return nil
}

func printSummary(result *audit.Result) {
	fmt.Printf("Audit %s\n", result.AuditID)
	fmt.Printf("  URL:      %s\n", result.URL)
	fmt.Printf("  Device:   %s (%dx%d)\n", result.Device, result.Viewport.Width, result.Viewport.Height)
	fmt.Printf("  Score:    %d/100\n", result.Accessibility.Score)
	fmt.Println()

	fmt.Printf("Touch targets: %d total, %d passing, %d failing\n",
		result.TouchTargets.Total, result.TouchTargets.Passing, result.TouchTargets.Failing)
	for _, issue := range result.TouchTargets.Issues {
		fmt.Printf("  [%s] %s (%dx%d at %d,%d): %s\n",
			issue.Severity, issue.Element,
			issue.Size.Width, issue.Size.Height,
			issue.Position.X, issue.Position.Y,
			issue.Recommendation)
	}

	fmt.Printf("Performance: load %.0fms, FCP %.0fms, CLS %.3f\n",
		result.Performance.LoadTime,
		result.Performance.FirstContentfulPaint,
		result.Performance.CumulativeLayoutShift)

	fmt.Printf("Accessibility issues (%d):\n", len(result.Accessibility.Issues))
	for _, issue := range result.Accessibility.Issues {
		fmt.Printf("  - %s\n", issue)
	}
	fmt.Printf("Screen reader compatible: %v\n", result.Accessibility.ScreenReaderCompatibility)

	mf := result.MobileFriendly
	fmt.Println("Mobile friendliness:")
	fmt.Printf("  viewport meta: %v  text readable: %v  links clickable: %v  content fits: %v\n",
		mf.HasViewportMeta, mf.TextReadable, mf.LinksClickable, mf.ContentFitsViewport)
}
