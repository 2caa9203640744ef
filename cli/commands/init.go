package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/raven/cli/config"
	"github.com/corvid-labs/raven/core"
)

func (a *App) newInitCommand() *cobra.Command {
	var (
		initModel string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a starter configuration file at ~/.raven/config.yaml.

Example:
  raven init --default-model raven-large`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			cfg := &config.Config{
				DefaultModel: initModel,
				BaseURL:      core.DefaultBaseURL,
				APIKeyRef:    "default",
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(a.stdout, "Created %s\n\n", path)
			fmt.Fprintln(a.stdout, "Next steps:")
			fmt.Fprintln(a.stdout, "  raven keys set default")
			fmt.Fprintf(a.stdout, "  raven chat --prompt \"Hello\"\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&initModel, "default-model", "raven-large", "Default model for requests")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
