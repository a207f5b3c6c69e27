package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"poolwatch/internal/app"
)

func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Enrich a stored pool with market and anomaly data",
		RunE:  runMerge,
	}
	cmd.Flags().String("variant", app.CoreVariant, "pool variant to enrich")
	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	date, err := rt.tradeDate()
	if err != nil {
		return err
	}
	variant, _ := cmd.Flags().GetString("variant")

	rows, err := rt.app.MergeVariant(ctx, date, variant)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d rows enriched for %s\n", variant, len(rows), date)
	return nil
}
