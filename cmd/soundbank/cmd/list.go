package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/soundbank"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List clips in the bank",
	Long:  "Decode the bank directory and list every clip in selection order.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) (err error) {
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

	names := e.bank.Names()
	for _, name := range names {
		a, ok := e.bank.Get(name)
		if !ok {
			continue
		}
		fmt.Printf("%s\t%s\t%s\t%d\n", a.DisplayName(), a.Filename(), a.Hash, a.Buffer.Len())
	}

	if len(names) == 0 {
		fmt.Println("(no clips)")
	}
	return nil
}
