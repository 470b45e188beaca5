package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/soundbank"
	"github.com/aweris/soundbank/internal/remote"
)

var publishCmd = &cobra.Command{
	Use:   "publish <image> <dir>",
	Short: "Publish a directory of clips as an OCI image",
	Long:  "Push every clip in a directory to an OCI registry as an image that the oci source can synchronize from.",
	Args:  cobra.ExactArgs(2),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().String("owner", "", "owner recorded in the manifest")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ref, dir := args[0], args[1]
	owner, _ := cmd.Flags().GetString("owner")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	fmt.Fprintf(os.Stderr, "Publishing %s to %s...\n", dir, ref)

	records, err := soundbank.Publish(context.Background(), ref, dir, owner,
		soundbank.WithConcurrency(cfg.Concurrency),
		soundbank.WithAuth(remote.StaticAuthenticator{
			Username: cfg.Registry.Username,
			Password: cfg.Registry.Password,
		}))
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	for _, rec := range records {
		fmt.Printf("%s\t%s\n", rec.Filename(), rec.Hash)
	}
	fmt.Fprintf(os.Stderr, "Done. %d clips\n", len(records))
	return nil
}
