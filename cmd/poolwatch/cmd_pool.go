package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func poolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pool",
		Short: "Build and persist today's watch pools",
		RunE:  runPool,
	}
}

func runPool(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	date, err := rt.tradeDate()
	if err != nil {
		return err
	}

	pools, err := rt.app.BuildPools(ctx, date)
	if err != nil {
		return err
	}
	for variant, records := range pools {
		fmt.Printf("%s: %d stocks\n", variant, len(records))
		for _, r := range records {
			fmt.Printf("  %s %s  importance %.2f  intervals %s\n", r.Code, r.Name, r.Importance, r.Intervals)
		}
	}
	return nil
}
