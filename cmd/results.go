package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hl-compare/hl-compare/internal/client"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

// resultSource reads stored comparisons. Both the local store and the remote
// client satisfy it.
type resultSource interface {
	GetComparison(ctx context.Context, id string) (*model.CompareResponse, error)
	ListComparisons(ctx context.Context, limit int) ([]store.ComparisonSummary, error)
}

// openResults returns the local store, or the remote client when remote is
// set. The returned func releases the source.
func openResults(ctx context.Context, remote bool) (resultSource, func(), error) {
	if remote {
		if err := cfg.Validate("remote"); err != nil {
			return nil, nil, err
		}
		return client.New(cfg.Client), func() {}, nil
	}
	if err := cfg.Validate("results"); err != nil {
		return nil, nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

// loadResult fetches one comparison and turns a miss into a readable error.
func loadResult(ctx context.Context, src resultSource, id string) (*model.CompareResponse, error) {
	resp, err := src.GetComparison(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Errorf("comparison %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "load comparison")
	}
	return resp, nil
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored comparisons",
	Long:  "Commands for listing and viewing comparisons saved by the backend.",
}

// -- results list --

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored comparisons, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetBool("remote")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		src, done, err := openResults(ctx, remote)
		if err != nil {
			return err
		}
		defer done()

		list, err := src.ListComparisons(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if asJSON {
			if list == nil {
				list = []store.ComparisonSummary{}
			}
			return writeJSON(os.Stdout, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No comparisons found.")
			return nil
		}
		printSummaries(os.Stdout, list)
		return nil
	},
}

// -- results show --

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored comparison",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetBool("remote")
		asJSON, _ := cmd.Flags().GetBool("json")
		category, _ := cmd.Flags().GetString("category")

		src, done, err := openResults(ctx, remote)
		if err != nil {
			return err
		}
		defer done()

		resp, err := loadResult(ctx, src, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, resp)
		}
		return printComparison(os.Stdout, resp, category)
	},
}

func init() {
	resultsCmd.PersistentFlags().Bool("remote", false, "read from the backend at client.base_url instead of the local store")
	resultsCmd.PersistentFlags().Bool("json", false, "print JSON")

	resultsListCmd.Flags().Int("limit", store.DefaultListLimit, "maximum comparisons to list")
	resultsShowCmd.Flags().String("category", "", "print only this category (default all)")

	resultsCmd.AddCommand(resultsListCmd, resultsShowCmd)
	rootCmd.AddCommand(resultsCmd)
}
