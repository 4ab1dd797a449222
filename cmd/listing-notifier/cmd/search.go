package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// searchResult is the JSON shape of one query's listings.
type searchResult struct {
	Query    string `json:"query"`
	Listings any    `json:"listings"`
}

func searchCmd() *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Print the current listings for each query once, without notifying",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), &qf, args)
		},
	}
	qf.register(cmd)
	return cmd
}

func runSearch(ctx context.Context, qf *queryFlags, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	queries := qf.queries(args)
	if len(queries) == 0 {
		return errors.New("no search terms given")
	}

	src := newSource(cfg)
	var results []searchResult
	for _, q := range queries {
		listings, err := src.Fetch(ctx, q)
		if err != nil {
			return fmt.Errorf("searching %q: %w", q.Key(), err)
		}
		if jsonOutput() {
			results = append(results, searchResult{Query: q.Key(), Listings: listings})
			continue
		}
		if err := printListingsTable(stdout(), q.Key(), listings); err != nil {
			return err
		}
	}

	if jsonOutput() {
		return printJSON(stdout(), results)
	}
	return nil
}
