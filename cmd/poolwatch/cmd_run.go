package main

import (
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full daily pipeline",
		Long:  "Fetch feeds, build and persist both pools, diff, merge, update hotspot history, and notify.",
		RunE:  runDaily,
	}
}

func runDaily(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	date, err := rt.tradeDate()
	if err != nil {
		return err
	}
	return rt.app.RunDaily(ctx, date)
}
