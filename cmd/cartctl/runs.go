package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nits22/smart-grocery-cart/internal/infrastructure/sqlite"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent optimization runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Store.Path == "none" {
			return eris.New("run history is disabled (store.path is none)")
		}

		db, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}

		runs, err := db.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tCITY\tSTRATEGY\tITEMS\tTOTAL")
		for _, r := range runs {
			total := "-"
			if r.Plan != nil {
				total = r.Plan.GrandTotal.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), r.City, r.Strategy, len(r.Items), total)
		}
		return tw.Flush()
	},
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List configured stores and delivery fees",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stores, err := cfg.DomainStores()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STORE\tDELIVERY FEE")
		for _, s := range stores {
			fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.DeliveryFee)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(storesCmd)
}
