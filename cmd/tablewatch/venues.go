package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tablewatch/internal/app"
)

func newVenuesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "venues [filter]",
		Short: "List provider restaurants, optionally filtered by name substring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.configPath)
			if err != nil {
				return err
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			listings, err := a.Venues(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tURL")
			for _, l := range listings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ID, l.Name, l.BookingURL)
			}
			return tw.Flush()
		},
	}
}
