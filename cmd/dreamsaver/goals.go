package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dreamsaver/internal/core"
	"dreamsaver/internal/imaging"
)

func newGoalsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List, add, show and delete savings goals",
	}
	cmd.AddCommand(
		newGoalsListCmd(opts),
		newGoalsAddCmd(opts),
		newGoalsShowCmd(opts),
		newGoalsDeleteCmd(),
	)
	return cmd
}

func newGoalsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List goals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			goals := app.Goals.List()
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), goals)
			}
			if len(goals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No goals yet.")
				return nil
			}
			now := app.Goals.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSAVED\tTARGET\tPROGRESS\tDUE\tSTATUS")
			for _, g := range goals {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
					g.ID, g.Title, g.SavedAmount, g.TargetAmount, core.Progress(g),
					core.LongDateLabel(g.TargetDate.Time), core.Status(g, now))
			}
			return tw.Flush()
		},
	}
}

func newGoalsAddCmd(opts *rootOptions) *cobra.Command {
	var (
		title, target, date, imagePath string
		view                           = imaging.View{Scale: 1, ViewportSize: 400}
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a goal",
		Example: `  dreamsaver goals add --title "Laptop baru" --target 15000000 --date 2026-06-30
  dreamsaver goals add --title Motor --target 25000000 --date 2027-01-01 --image motor.jpg --scale 1.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(target)
			if err != nil {
				return fmt.Errorf("--target: %w", err)
			}
			targetDate, err := core.ParseDate(date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			var picture []byte
			if imagePath != "" {
				if picture, err = readPicture(imagePath, app.Config.ImageMaxUploadBytes); err != nil {
					return err
				}
			}

			draft := core.GoalDraft{Title: strings.TrimSpace(title), TargetAmount: amount, TargetDate: targetDate}
			g, err := app.Goals.CreateGoal(cmd.Context(), draft, picture, view)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), g)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %s (%s, target %s by %s)\n",
				g.ID, g.Title, g.TargetAmount, core.LongDateLabel(g.TargetDate.Time))
			if len(picture) > 0 && len(g.Image) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the picture could not be read and was skipped")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "goal title (required)")
	f.StringVar(&target, "target", "", "target amount, e.g. 1500000 or 1500000.50 (required)")
	f.StringVar(&date, "date", "", "target date as YYYY-MM-DD (required)")
	f.StringVar(&imagePath, "image", "", "picture file to crop into the goal image")
	f.Float64Var(&view.Scale, "scale", view.Scale, "picture zoom")
	f.Float64Var(&view.OffsetX, "offset-x", 0, "horizontal picture offset in viewport units")
	f.Float64Var(&view.OffsetY, "offset-y", 0, "vertical picture offset in viewport units")
	f.Float64Var(&view.ViewportSize, "viewport", view.ViewportSize, "editor viewport size the offsets refer to")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func readPicture(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("--image: %w", err)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("--image: %s is %d bytes, the limit is %d", path, info.Size(), limit)
	}
	return os.ReadFile(path)
}

func newGoalsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show one goal with its ledger and savings chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			g, ok := app.Goals.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrGoalNotFound, args[0])
			}
			series, _ := app.Goals.Series(g.ID)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					core.Goal
					Series []core.SeriesPoint `json:"series"`
				}{g, series})
			}
			printGoal(cmd.OutOrStdout(), g, series, app.Goals.Now())
			return nil
		},
	}
}

func printGoal(w io.Writer, g core.Goal, series []core.SeriesPoint, now time.Time) {
	fmt.Fprintf(w, "%s  [%s]\n", g.Title, core.Status(g, now))
	fmt.Fprintf(w, "  saved      %s of %s (%.1f%%)\n", g.SavedAmount, g.TargetAmount, core.Progress(g))
	fmt.Fprintf(w, "  remaining  %s\n", core.Remaining(g))
	fmt.Fprintf(w, "  due        %s (%d days)\n", core.LongDateLabel(g.TargetDate.Time), core.DaysRemaining(g, now))
	if daily, ok := core.RecommendedDailySaving(g, now); ok {
		fmt.Fprintf(w, "  per day    %s\n", daily)
	}
	if len(g.Image) > 0 {
		fmt.Fprintf(w, "  picture    %d bytes\n", len(g.Image))
	}

	if len(g.Transactions) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tAMOUNT\tRUNNING\tNOTE")
		for i, t := range g.Transactions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Date.Format("2006-01-02 15:04"), t.Amount, series[i].Amount, t.Note)
		}
		_ = tw.Flush()
	}
}

func newGoalsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id>",
		Short: "Delete a goal and its ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Goals.DeleteGoal(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %s\n", args[0])
			return nil
		},
	}
}

func newMovementCmd(opts *rootOptions, kind, short string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   kind + " <goal-id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[1])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}

			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := app.Goals.RecordTransaction(cmd.Context(), args[0], core.TransactionKind(kind), amount, strings.TrimSpace(note))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), g)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: saved %s of %s (%.1f%%)\n", g.Title, g.SavedAmount, g.TargetAmount, core.Progress(g))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "optional note, up to 200 characters")
	return cmd
}

func newAdviceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advice <goal-id>",
		Short: "Ask the savings assistant about a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			text, err := app.Goals.Advice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"goalId": args[0], "advice": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals across every goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			s := app.Goals.Summary()
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Goals      %d (%d completed)\n", s.Goals, s.Completed)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved      %s\n", s.TotalSaved)
			fmt.Fprintf(cmd.OutOrStdout(), "Target     %s\n", s.TotalTarget)
			fmt.Fprintf(cmd.OutOrStdout(), "Progress   %.1f%%\n", s.Progress)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
