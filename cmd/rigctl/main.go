// rigctl is the diagnostic CLI for the face-rig player: dry-run route
// planning, listing authored timelines on the frame server, and reading the
// route history database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/history"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/route"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region flags

var (
	serverURL string
	dbPath    string
)

// #endregion

// #region main

func main() {
	root := &cobra.Command{
		Use:   "rigctl",
		Short: "Diagnostics for the face-rig playback controller",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "frame server base URL")
	root.PersistentFlags().StringVar(&dbPath, "db", "routes.db", "route history database")

	root.AddCommand(planCmd(), timelinesCmd(), historyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion

// #region plan

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan FROM_EXPR FROM_POSE TO_EXPR TO_POSE",
		Short: "Print the route between two states without playing it",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := statespace.State{Expr: statespace.Expression(args[0]), Pose: statespace.Pose(args[1])}
			to := statespace.State{Expr: statespace.Expression(args[2]), Pose: statespace.Pose(args[3])}
			for _, s := range []statespace.State{from, to} {
				if !statespace.ValidState(s) {
					return fmt.Errorf("state %s is not authored", s)
				}
			}

			r := route.Plan(from, to)
			if len(r) == 0 {
				color.Yellow("already at %s, nothing to play", to)
				return nil
			}
			for i, seg := range r {
				dir := color.GreenString(string(seg.Direction))
				if seg.Direction == route.Backward {
					dir = color.MagentaString(string(seg.Direction))
				}
				fmt.Printf("%d. %s → %s  %s %s\n", i+1, seg.From, seg.To, color.CyanString(seg.PathID), dir)
			}
			return nil
		},
	}
}

// #endregion

// #region timelines

func timelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timelines",
		Short: "List timeline path ids available on the frame server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := manifest.NewClient(serverURL, 10*time.Second)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			ids, err := client.ListTimelines(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			color.Green("%d timelines", len(ids))
			return nil
		},
	}
}

// #endregion

// #region history

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent route outcomes from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRecent(limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				outcome := color.GreenString(rec.Outcome)
				switch rec.Outcome {
				case "cancelled":
					outcome = color.YellowString(rec.Outcome)
				case "fetch_error":
					outcome = color.RedString(rec.Outcome)
				}
				shortID := rec.RouteID
				if len(shortID) > 8 {
					shortID = shortID[:8]
				}
				fmt.Printf("%s  %s@%s → %s@%s  %d segs  %s  %s\n",
					rec.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					rec.FromExpr, rec.FromPose,
					rec.ToExpr, rec.ToPose,
					len(rec.Segments), outcome, shortID)
			}
			if len(records) == 0 {
				color.Yellow("no routes recorded")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max rows to show")
	return cmd
}

// #endregion
