package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aweris/soundbank"
	"github.com/aweris/soundbank/internal/config"
	"github.com/aweris/soundbank/internal/logging"
	"github.com/aweris/soundbank/internal/remote"
)

// env bundles what every command needs.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	bank *soundbank.Bank
}

func (e *env) Close() error {
	err := e.bank.Close()
	e.log.Sync()
	return err
}

// stderrDisplay prints status text the way the in-game overlay would show it.
var stderrDisplay = soundbank.DisplayFunc(func(msg string) {
	fmt.Fprintln(os.Stderr, msg)
})

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

func openBank(opts ...soundbank.OpenOption) (*env, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	options := []soundbank.OpenOption{
		soundbank.WithLogger(log),
		soundbank.WithDisplay(stderrDisplay),
		soundbank.WithConcurrency(cfg.Concurrency),
		soundbank.WithStateDir(cfg.StateDir),
	}
	switch cfg.Source {
	case config.SourceHTTP:
		if cfg.BaseURL != "" {
			options = append(options, soundbank.WithManifestURL(cfg.BaseURL))
		}
	case config.SourceOCI:
		options = append(options,
			soundbank.WithImage(cfg.Image),
			soundbank.WithAuth(remote.StaticAuthenticator{
				Username: cfg.Registry.Username,
				Password: cfg.Registry.Password,
			}))
	}
	if cfg.Git.URL != "" {
		options = append(options,
			soundbank.WithGitMirror(cfg.Git.URL),
			soundbank.WithCommitter(soundbank.Committer{Name: cfg.Git.Name, Email: cfg.Git.Email}))
	}
	options = append(options, opts...)

	bank, err := soundbank.Open(cfg.CacheDir, options...)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, bank: bank}, nil
}
