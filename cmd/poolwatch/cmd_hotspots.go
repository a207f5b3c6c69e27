package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"poolwatch/internal/hotspot"
)

func hotspotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Report novel hotspots and label clusters",
		RunE:  runHotspots,
	}
	cmd.Flags().Bool("clusters", false, "also print similar-label cluster mapping")
	return cmd
}

func runHotspots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	date, err := rt.tradeDate()
	if err != nil {
		return err
	}

	history, err := hotspot.NewHistory(rt.app.HistoryPath()).Load()
	if err != nil {
		return err
	}

	detector := hotspot.NewDetector(rt.cfg.Hotspot.Lookback, rt.cfg.Hotspot.GenericLabel)
	novel, err := detector.Novel(history, date)
	if err != nil {
		return err
	}
	if len(novel) == 0 {
		fmt.Printf("no novel hotspots on %s\n", date)
	} else {
		fmt.Printf("novel hotspots on %s: %s\n", date, strings.Join(novel, ", "))
	}

	if show, _ := cmd.Flags().GetBool("clusters"); show {
		for label, canonical := range hotspot.Canonicalize(history) {
			fmt.Printf("  %s -> %s\n", label, canonical)
		}
	}
	return nil
}
