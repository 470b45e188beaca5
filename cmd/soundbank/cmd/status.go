package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/soundbank"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the bank with the last fetched manifest",
	Long:  "Show which clips of the last persisted manifest are missing or out of date locally, and which local clips it does not list.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) (err error) {
	e, err := openBank(soundbank.WithDisplay(soundbank.DisplayFunc(func(string) {})))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := e.bank.Refresh(context.Background()); err != nil && !errors.Is(err, soundbank.ErrNotFound) {
		return err
	}

	fmt.Printf("bank:  %s (%d clips)\n", e.bank.Dir(), e.bank.Len())

	m, err := e.bank.LastManifest()
	if errors.Is(err, soundbank.ErrNotFound) {
		fmt.Println("manifest: none fetched yet")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("manifest: %d records, fetched %s\n", len(m.Records), m.FetchedAt.Local().Format("2006-01-02 15:04:05"))

	listed := make(map[string]bool, len(m.Records))
	for _, rec := range m.Records {
		listed[rec.Name] = true
		a, ok := e.bank.Get(rec.Name)
		switch {
		case !ok:
			fmt.Printf("  missing  %s\n", rec.Filename())
		case a.Hash != rec.Hash:
			fmt.Printf("  changed  %s\n", rec.Filename())
		}
	}
	for _, name := range e.bank.Names() {
		if !listed[name] {
			fmt.Printf("  extra    %s\n", name)
		}
	}
	return nil
}
