package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a stored comparison as PDF, Markdown or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetBool("remote")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		memo, _ := cmd.Flags().GetBool("memo")

		src, done, err := openResults(ctx, remote)
		if err != nil {
			return err
		}
		defer done()

		resp, err := loadResult(ctx, src, args[0])
		if err != nil {
			return err
		}

		doc := report.Build(resp, time.Now().UTC())
		if memo {
			fmt.Fprint(os.Stdout, report.Memo(doc))
			return nil
		}

		path, err := exportReport(ctx, resp, doc, format, output)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

// exportReport renders doc in format and writes it to output, or to the
// default download name in the working directory. It returns the path.
func exportReport(ctx context.Context, resp *model.CompareResponse, doc *report.Document, format, output string) (string, error) {
	ex, err := report.ForFormat(format)
	if err != nil {
		return "", err
	}

	data, err := ex.Export(ctx, doc)
	if err != nil {
		return "", eris.Wrap(err, "export")
	}

	if output == "" {
		output = report.Filename(doc, ex.Extension())
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "write %s", output)
	}

	zap.L().Info("exported comparison",
		zap.String("comparison_id", resp.ComparisonID),
		zap.String("format", ex.Format()),
		zap.String("path", output),
		zap.Int("bytes", len(data)),
	)
	return output, nil
}

func init() {
	exportCmd.Flags().Bool("remote", false, "read from the backend at client.base_url instead of the local store")
	exportCmd.Flags().String("format", "pdf", "export format: pdf, md or xlsx")
	exportCmd.Flags().StringP("output", "o", "", "output path (default comparison_<entities>_<date>.<ext>)")
	exportCmd.Flags().Bool("memo", false, "print the plain-text email memo instead of writing a file")
	rootCmd.AddCommand(exportCmd)
}
