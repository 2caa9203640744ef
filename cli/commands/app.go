// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/raven/cli/config"
	"github.com/corvid-labs/raven/cli/keystore"
	"github.com/corvid-labs/raven/core"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// ClientFactory creates an API client using CLI config context plus any
// per-invocation options.
type ClientFactory func(apiKey string, cfg *config.Config, opts ...core.Option) *core.Client

// KeystoreFactory creates a keystore instance.
type KeystoreFactory func() (keystore.Keystore, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig  ConfigLoader
	newClient   ClientFactory
	newKeystore KeystoreFactory
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer

	cfgFile    string
	model      string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config

	chatPrompt      string
	chatSystem      string
	chatTemperature float32
	chatMaxTokens   int
	chatStream      bool
	chatLenient     bool

	imagePrompt string
	imageSize   string
	imageCount  int
	imageOut    string
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithClientFactory injects a client factory dependency.
func WithClientFactory(factory ClientFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newClient = factory
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newKeystore = factory
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:  config.LoadConfig,
		newClient:   defaultClientFactory,
		newKeystore: keystore.NewKeystore,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "raven",
		Short: "Raven - CLI for the Raven generative-AI service",
		Long: `Raven is a command-line interface for the Raven generative-AI service.

Use Raven to manage API keys, chat with models, and generate images.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage: true,
	}

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.raven/config.yaml)")
	root.PersistentFlags().StringVar(&a.model, "model", "", "model ID (e.g. raven-large)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "print request diagnostics")

	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newImageCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.root.Execute()
}

func (a *App) initConfig() error {
	// Pick up a local .env if present; absence is fine.
	_ = godotenv.Load()

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Apply config defaults if flags not set.
	if a.model == "" && cfg.DefaultModel != "" {
		a.model = cfg.DefaultModel
	}

	return nil
}

// resolveAPIKey finds the API key: environment first, then the keystore
// under the configured reference (or "default").
func (a *App) resolveAPIKey() (string, error) {
	if key := os.Getenv(core.DefaultAPIKeyEnvVar); key != "" {
		return key, nil
	}

	ks, err := a.newKeystore()
	if err != nil {
		return "", err
	}

	ref := "default"
	if a.cfg != nil && a.cfg.APIKeyRef != "" {
		ref = a.cfg.APIKeyRef
	}
	return ks.Get(ref)
}

// defaultClientFactory builds a core.Client from CLI config.
func defaultClientFactory(apiKey string, cfg *config.Config, extra ...core.Option) *core.Client {
	var opts []core.Option
	if cfg != nil {
		if cfg.BaseURL != "" {
			opts = append(opts, core.WithBaseURL(cfg.BaseURL))
		}
		if cfg.TimeoutSeconds > 0 {
			opts = append(opts, core.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
		}
		if cfg.MaxRetries != nil {
			opts = append(opts, core.WithMaxRetries(*cfg.MaxRetries))
		}
	}
	opts = append(opts, extra...)
	return core.New(apiKey, opts...)
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}
