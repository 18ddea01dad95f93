package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/client"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/session"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare entities across uploaded documents",
	Long:  "Runs one comparison in-process, or against a running backend with --remote, and prints the key-metrics tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		entities, _ := cmd.Flags().GetStringSlice("entity")
		paths, _ := cmd.Flags().GetStringSlice("file")
		query, _ := cmd.Flags().GetString("query")
		remote, _ := cmd.Flags().GetBool("remote")
		asJSON, _ := cmd.Flags().GetBool("json")
		category, _ := cmd.Flags().GetString("category")

		uploads, err := fileUploads(paths)
		if err != nil {
			return err
		}

		var sub session.Submitter
		if remote {
			if err := cfg.Validate("remote"); err != nil {
				return err
			}
			sub = client.New(cfg.Client)
		} else {
			env, err := initApp(ctx, "compare")
			if err != nil {
				return err
			}
			defer env.Close()
			sub = env.Service
		}

		resp, err := runComparison(ctx, sub, entities, uploads, query)
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(os.Stdout, resp)
		}
		return printComparison(os.Stdout, resp, category)
	},
}

// runComparison submits one comparison and logs the outcome.
func runComparison(ctx context.Context, sub session.Submitter, entities []string, uploads []model.Upload, query string) (*model.CompareResponse, error) {
	resp, err := sub.Submit(ctx, entities, uploads, query)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, eris.Wrap(err, "compare")
	}
	zap.L().Info("comparison complete",
		zap.String("comparison_id", resp.ComparisonID),
		zap.Strings("entities", resp.Entities),
		zap.Int("documents", resp.DocumentsAnalyzed),
	)
	return resp, nil
}

// fileUploads turns local paths into uploads that open the file lazily.
func fileUploads(paths []string) ([]model.Upload, error) {
	out := make([]model.Upload, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", p)
		}
		if info.IsDir() {
			return nil, eris.Errorf("%s is a directory", p)
		}
		path := p
		out = append(out, model.Upload{
			Filename: filepath.Base(path),
			Size:     info.Size(),
			Open:     func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	compareCmd.Flags().StringSliceP("entity", "e", nil, "entity to compare (repeat or comma-separate, at least 2)")
	compareCmd.Flags().StringSliceP("file", "f", nil, "document to upload (repeatable)")
	compareCmd.Flags().StringP("query", "q", "", "optional focus query")
	compareCmd.Flags().Bool("remote", false, "submit to the backend at client.base_url instead of running in-process")
	compareCmd.Flags().Bool("json", false, "print the full response as JSON")
	compareCmd.Flags().String("category", "", "print only this category (default all)")
	rootCmd.AddCommand(compareCmd)
}
