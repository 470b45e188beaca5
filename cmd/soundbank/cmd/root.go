package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/soundbank/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "soundbank",
	Short: "Audio clip cache synchronizer",
	Long:  "CLI for keeping a local bank of audio clips in sync with an audio API, an OCI image or a git mirror.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/soundbank/config.yaml)")
	flags.String("cache-dir", "", "bank directory (default: ~/.local/share/soundbank/sounds)")
	flags.String("state-dir", "", "state directory (default: ~/.local/state/soundbank)")
	flags.String("source", "", "manifest source: http, oci or none")
	flags.String("base-url", "", "audio API base URL")
	flags.String("image", "", "OCI image holding the bank")
	flags.String("git-url", "", "git mirror used when the manifest is unavailable")
	flags.Int("concurrency", 0, "parallel downloads and decodes")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	viper.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	viper.BindPFlag("state_dir", flags.Lookup("state-dir"))
	viper.BindPFlag("source", flags.Lookup("source"))
	viper.BindPFlag("base_url", flags.Lookup("base-url"))
	viper.BindPFlag("image", flags.Lookup("image"))
	viper.BindPFlag("git.url", flags.Lookup("git-url"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SOUNDBANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	viper.ReadInConfig()
}
