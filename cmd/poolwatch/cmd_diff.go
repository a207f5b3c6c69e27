package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"poolwatch/internal/app"
)

func diffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff a stored pool against the previous session",
		RunE:  runDiff,
	}
	cmd.Flags().String("variant", app.CoreVariant, "pool variant to diff")
	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
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

	res, err := rt.app.DiffVariant(date, variant)
	if err != nil {
		return err
	}
	fmt.Println(res.Message(variant))
	return nil
}
