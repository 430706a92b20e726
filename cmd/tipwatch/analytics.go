package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/tipwatch/internal/analytics"
	"github.com/yourusername/tipwatch/internal/models"
)

// windowFlags are the --from/--to flags shared by the analytics commands.
type windowFlags struct {
	from, to string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.from, "from", "", "First date (YYYY-MM-DD), defaults to the configured window before --to")
	cmd.Flags().StringVar(&w.to, "to", "", "Last date (YYYY-MM-DD), defaults to today")
}

func (w *windowFlags) window() (from, to time.Time, err error) {
	if from, err = parseDate(w.from); err != nil {
		return
	}
	if to, err = parseDate(w.to); err != nil {
		return
	}
	if to.IsZero() {
		to = today()
	}
	return
}

// filterFlags are the tip filters shared by trends and buckets.
type filterFlags struct {
	state, track, tipType, provider string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.state, "state", "", "Only tips at meetings in this state")
	cmd.Flags().StringVar(&f.track, "track", "", "Only tips at this track (fuzzy matched)")
	cmd.Flags().StringVar(&f.tipType, "tip-type", "", "Only AI_BEST, DANGER or VALUE tips")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Only tips settled by this provider")
}

func (f *filterFlags) filter() analytics.Filter {
	return analytics.Filter{
		State:     f.state,
		TrackName: f.track,
		TipType:   models.TipType(f.tipType),
		Provider:  models.Provider(f.provider),
	}
}

func newTrendsCmd() *cobra.Command {
	var w windowFlags
	var f filterFlags

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Strike rates and returns broken down by every dimension",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := w.window()
			if err != nil {
				return err
			}
			if err := openRepositories(cmd.Context()); err != nil {
				return err
			}
			report, err := newAggregator().Trends(cmd.Context(), from, to, f.filter())
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	w.register(cmd)
	f.register(cmd)
	return cmd
}

func newBucketsCmd() *cobra.Command {
	var w windowFlags
	var f filterFlags
	var dim string

	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Group tips along one dimension",
		Example: `  tipwatch buckets --dimension price --from 2025-10-01 --to 2025-10-31
  tipwatch buckets --dimension class --state VIC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := analytics.ParseDimension(dim)
			if err != nil {
				return err
			}
			from, to, err := w.window()
			if err != nil {
				return err
			}
			if err := openRepositories(cmd.Context()); err != nil {
				return err
			}
			buckets, err := newAggregator().Buckets(cmd.Context(), from, to, d, f.filter())
			if err != nil {
				return err
			}
			return printJSON(buckets)
		},
	}
	w.register(cmd)
	f.register(cmd)
	cmd.Flags().StringVarP(&dim, "dimension", "d", string(analytics.DimensionPrice),
		"distance, price, track_type, race_number, class, state, tip_type, track or provider")
	return cmd
}

func newRollupCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Per race, meeting and day totals with quinella and trifecta hits",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			if day.IsZero() {
				day = today()
			}
			if err := openRepositories(cmd.Context()); err != nil {
				return err
			}
			rollup, err := newAggregator().DayRollup(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(rollup)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Racing date (YYYY-MM-DD), defaults to today")
	return cmd
}

func newConsensusCmd() *cobra.Command {
	var w windowFlags

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "How AI_BEST tips perform when the market also has them on top",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := w.window()
			if err != nil {
				return err
			}
			if err := openRepositories(cmd.Context()); err != nil {
				return err
			}
			if err := openFeeds(cmd.Context()); err != nil {
				return err
			}
			report, err := newAggregator().Consensus(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	w.register(cmd)
	return cmd
}
