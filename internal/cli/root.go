package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/buildinfo"
	"ledger/internal/config"
	"ledger/internal/log"
)

// app is what every command needs after bootstrap.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Personal income and expense ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LoadEnvFile()
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			// stdout may carry command output, so logs go to stderr
			a.logger = SetupLogger(cfg, cmd.ErrOrStderr()).WithComponent(log.ComponentCLI)
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newImportCommand(a),
		newExportCommand(a),
	)

	return rootCmd
}
