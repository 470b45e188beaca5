package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/soundbank"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the bank with its source",
	Long:  "Load the local bank, then fetch the manifest (or the git mirror) and download, replace or delete clips until the bank matches it.",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) (err error) {
	e, err := openBank()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := e.cfg.CheckSource(); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := e.bank.Refresh(ctx); err != nil && !errors.Is(err, soundbank.ErrNotFound) {
		return fmt.Errorf("load bank: %w", err)
	}

	report, err := e.bank.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("source=%s added=%d changed=%d removed=%d downloaded=%d copied=%d failed=%d total=%d\n",
		report.Source, report.Added, report.Changed, report.Removed,
		report.Downloaded, report.Copied, report.Failed, report.Total)
	return nil
}
