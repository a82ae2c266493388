package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newInsightsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summaries across the whole journal",
	}

	var (
		top    int
		asJSON bool
	)
	cmd.PersistentFlags().IntVar(&top, "top", 10, "Number of labels to include")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print as JSON")

	emotions := &cobra.Command{
		Use:   "emotions",
		Short: "Monthly counts of the most frequent emotions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return errors.New("--top must be >= 0")
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.svc.EmotionTimeline(top)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %d\n", r.Month.Format("2006-01"), r.Emotion, r.Count)
			}
			return nil
		},
	}

	themes := &cobra.Command{
		Use:   "themes",
		Short: "Most frequent themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return errors.New("--top must be >= 0")
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.svc.ThemeFrequency(top)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %d\n", r.Label, r.Count)
			}
			return nil
		},
	}

	cmd.AddCommand(emotions, themes)
	return cmd
}
