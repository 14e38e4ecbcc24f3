package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/log"
)

type filterFlags struct {
	from, to   string
	categoryID int64
	tagID      int64
	kind       string
	min, max   string
	query      string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().Int64Var(&f.categoryID, "category", 0, "category id")
	cmd.Flags().Int64Var(&f.tagID, "tag", 0, "tag id")
	cmd.Flags().StringVar(&f.kind, "type", "", "INCOME or EXPENSE")
	cmd.Flags().StringVar(&f.min, "min", "", "minimum amount")
	cmd.Flags().StringVar(&f.max, "max", "", "maximum amount")
	cmd.Flags().StringVar(&f.query, "q", "", "text to find in notes")
}

// filter converts the flags, reporting every malformed one.
func (f *filterFlags) filter() (core.Filter, error) {
	v := &core.ValidationError{}
	out := core.Filter{Query: strings.TrimSpace(f.query)}

	for _, d := range []struct {
		name string
		raw  string
		dst  **core.Date
	}{{"from", f.from, &out.DateFrom}, {"to", f.to, &out.DateTo}} {
		if d.raw == "" {
			continue
		}
		date, err := core.ParseDate(d.raw)
		if err != nil {
			v.Add(d.name, err)
			continue
		}
		*d.dst = &date
	}
	if f.categoryID > 0 {
		out.CategoryID = &f.categoryID
	}
	if f.tagID > 0 {
		out.TagID = &f.tagID
	}
	if f.kind != "" {
		k, err := core.ParseKind(f.kind)
		if err != nil {
			v.Add("type", err)
		} else {
			out.Type = &k
		}
	}
	for _, a := range []struct {
		name string
		raw  string
		dst  **decimal.Decimal
	}{{"min", f.min, &out.AmountMin}, {"max", f.max, &out.AmountMax}} {
		if a.raw == "" {
			continue
		}
		amount, err := core.ParseAmount(a.raw)
		if err != nil {
			v.Add(a.name, err)
			continue
		}
		*a.dst = &amount
	}

	if err := v.OrNil(); err != nil {
		return core.Filter{}, err
	}
	return out, nil
}

func newExportCommand(a *app) *cobra.Command {
	var userID, outFile string
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}

			ledger, err := a.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}

			n, err := ledger.ExportCSV(cmd.Context(), userID, filter, w)
			if err != nil {
				return err
			}
			a.logger.Info("Export written", log.FieldUserID, userID, log.FieldRows, n, "path", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id whose transactions are exported (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&outFile, "out", "", "output file; stdout when empty")
	flags.register(cmd)

	return cmd
}
