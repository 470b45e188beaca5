package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/soundbank"
)

var evictCmd = &cobra.Command{
	Use:   "evict <name>",
	Short: "Remove a clip from the bank",
	Long:  "Drop a clip from the bank and delete its file unless --keep-file is set.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvict,
}

func init() {
	evictCmd.Flags().Bool("keep-file", false, "keep the file on disk")
	rootCmd.AddCommand(evictCmd)
}

func runEvict(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	keep, _ := cmd.Flags().GetBool("keep-file")

	e, err := openBank(soundbank.WithDisplay(soundbank.DisplayFunc(func(string) {})))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := e.bank.Refresh(context.Background()); err != nil {
		return err
	}
	if err := e.bank.Evict(name, !keep); err != nil {
		return err
	}

	fmt.Printf("Evicted %s\n", name)
	return nil
}
