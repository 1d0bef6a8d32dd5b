package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/registry"
	"github.com/nits22/smart-grocery-cart/internal/optimizer"
	"github.com/nits22/smart-grocery-cart/internal/usecase"
)

var (
	optimizeFile     string
	optimizeStrategy string
	optimizeCompare  bool
	optimizeOutput   string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a basket file offline",
	Long:  "Reads items, stores and price observations from a YAML basket file and prints the cheapest allocation. Stores default to the configured registry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if optimizeOutput != "text" && optimizeOutput != "json" {
			return eris.Errorf("output must be text or json, got %q", optimizeOutput)
		}

		req, err := loadBasket(optimizeFile)
		if err != nil {
			return err
		}
		req.Strategy = optimizeStrategy
		req.Compare = optimizeCompare

		svc, err := newOfflineService()
		if err != nil {
			return err
		}

		result, err := svc.OptimizeObservations(cmd.Context(), req)
		if err != nil {
			return eris.Wrap(err, "optimize basket")
		}

		zap.L().Debug("basket optimized",
			zap.String("file", optimizeFile),
			zap.String("strategy", string(result.Plan.Strategy)),
			zap.Stringer("grand_total", result.Plan.GrandTotal))

		return writeResult(cmd.OutOrStdout(), result, optimizeOutput)
	},
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeFile, "file", "f", "", "path to basket YAML file (required)")
	optimizeCmd.Flags().StringVar(&optimizeStrategy, "strategy", "", "greedy or exact (default from config)")
	optimizeCmd.Flags().BoolVar(&optimizeCompare, "compare", false, "run both strategies and report savings")
	optimizeCmd.Flags().StringVarP(&optimizeOutput, "output", "o", "text", "output format: text or json")
	_ = optimizeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(optimizeCmd)
}

// newOfflineService builds a cart service without price providers or run history
func newOfflineService() (*usecase.CartService, error) {
	stores, err := cfg.DomainStores()
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(stores)
	if err != nil {
		return nil, err
	}
	strategy, err := domain.ParseStrategy(cfg.Optimizer.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	return usecase.NewCartService(reg, nil,
		optimizer.New(optimizer.Config{MaxExactStores: cfg.Optimizer.MaxExactStores}),
		nil, nil,
		usecase.CartServiceConfig{DefaultStrategy: strategy, MaxItems: cfg.Optimizer.MaxItems},
	), nil
}

func writeResult(w io.Writer, result *usecase.CartResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	writePlan(w, result.Plan)
	if c := result.Comparison; c != nil {
		fmt.Fprintf(w, "\ngreedy: ₹%s  exact: ₹%s  savings: ₹%s\n", c.Greedy.GrandTotal, c.Exact.GrandTotal, c.Savings)
	}
	if result.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", result.Summary)
	}
	return nil
}

func writePlan(w io.Writer, plan *domain.AllocationPlan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tITEM\tPRICE")
	byStore := plan.ItemsByStore()
	for _, store := range plan.StoresUsed() {
		for _, a := range byStore[store] {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", store, a.Item, a.Price)
		}
		fmt.Fprintf(tw, "%s\tsubtotal\t%s\n", store, plan.PerStoreSubtotal[store])
		fmt.Fprintf(tw, "%s\tdelivery\t%s\n", store, plan.DeliveryFeesCharged[store])
	}
	for _, u := range plan.UnavailableItems {
		fmt.Fprintf(tw, "-\t%s\tunavailable\n", u.Item)
	}
	_ = tw.Flush()

	optimal := ""
	if plan.Optimal {
		optimal = " (optimal)"
	}
	fmt.Fprintf(w, "\n%s total: ₹%s%s\n", plan.Strategy, plan.GrandTotal, optimal)
}
