package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/listing-notifier/internal/api/client"
)

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running notifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			ready, err := c.Ready(cmd.Context())
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(stdout(), st)
			}
			return printStatus(stdout(), st, ready)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "queries",
		Short: "List the queries a running notifier polls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qs, err := newClient().Queries(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(stdout(), qs)
			}
			return printQueriesTable(stdout(), qs)
		},
	})

	return cmd
}
