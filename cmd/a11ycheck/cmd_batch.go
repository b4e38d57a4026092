// This file contains the concurrent multi-URL audit command.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"a11ycheck/internal/audit"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchDevice      string
	batchConcurrency int
	batchOut         string
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Audit several URLs concurrently",
	Long: `Runs one audit per URL with bounded concurrency. Each audit owns its own
browser process; nothing is shared between runs. Batch runs always skip
credit accounting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchDevice, "device", "d", "", "Device profile to emulate")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 3, "Maximum audits in flight")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Write all JSON results to a file")
}

type batchEntry struct {
	URL    string        `json:"url"`
	Result *audit.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	auditor, cleanup, err := newAuditor()
	if err != nil {
		return err
	}
	defer cleanup()

	deviceName := batchDevice
	if deviceName == "" {
		deviceName = cfg.Audit.DefaultDevice
	}

	entries := make([]batchEntry, len(args))
	var mu sync.Mutex

	group, ctx := errgroup.WithContext(cmd.Context())
	group.SetLimit(batchConcurrency)
	for i, target := range args {
		i, target := i, target
		group.Go(func() error {
			logger.Info("batch audit starting", zap.String("url", target))
			result, err := auditor.Run(ctx, audit.Request{
				URL:             target,
				Device:          deviceName,
				UnlimitedAccess: true,
			})

			mu.Lock()
			defer mu.Unlock()
			entries[i] = batchEntry{URL: target, Result: result}
			if err != nil {
				// One URL failing should not stop the rest of the batch.
				entries[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if batchOut != "" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encode batch results: %w", err)
		}
		if err := os.WriteFile(batchOut, data, 0644); err != nil {
			return fmt.Errorf("write batch results: %w", err)
		}
		fmt.Printf("%d results written to %s\n", len(entries), batchOut)
		return nil
	}

	for _, entry := range entries {
		if entry.Error != "" {
			fmt.Printf("%-50s FAILED: %s\n", entry.URL, entry.Error)
			continue
		}
		fmt.Printf("%-50s score %3d/100, %d touch issues\n",
			entry.URL, entry.Result.Accessibility.Score, len(entry.Result.TouchTargets.Issues))
	}
	return nil
}
