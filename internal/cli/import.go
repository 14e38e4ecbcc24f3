package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ledger/internal/log"
)

func newImportCommand(a *app) *cobra.Command {
	var userID, file, mappingFile string
	var details bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a bank CSV export for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var mapping map[string]string
			if mappingFile != "" {
				if mapping, err = loadMapping(mappingFile); err != nil {
					return err
				}
			}

			ledger, err := a.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			res, err := ledger.ImportCSV(cmd.Context(), userID, data, mapping)
			if err != nil {
				return err
			}
			a.logger.Info("Import committed",
				log.FieldUserID, userID,
				log.FieldCreated, res.Created,
				log.FieldSkipped, len(res.Skipped))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d, skipped %d\n", res.Created, len(res.Skipped))
			if details {
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "row %d: %s\n", s.Row, s.Reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id owning the imported transactions (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&mappingFile, "mapping", "", "YAML file mapping CSV headers to fields; suggested from headers when empty")
	cmd.Flags().BoolVar(&details, "details", false, "list skipped rows")

	return cmd
}

// loadMapping reads a YAML document of header: field pairs.
func loadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping %s: %w", path, err)
	}
	var mapping map[string]string
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parsing mapping %s: %w", path, err)
	}
	if mapping == nil {
		mapping = map[string]string{}
	}
	return mapping, nil
}
