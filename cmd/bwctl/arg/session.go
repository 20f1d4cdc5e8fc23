package arg

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/BlockWarden/internal/ipc"
)

var stopAll bool

var startCmd = &cobra.Command{
	Use:   "start <schedule-id>",
	Short: "Start blocking for a schedule now, or queue it for later today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			outcome, err := c.StartSchedule(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeOutcome(outcome))
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [schedule-id]",
	Short: "Stop a schedule, or end the whole session with --all",
	Args: func(cmd *cobra.Command, args []string) error {
		if stopAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			if stopAll {
				if err := c.StopAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All schedules stopped")
				return nil
			}
			stopped, err := c.StopSchedule(ctx, args[0])
			if err != nil {
				return err
			}
			if !stopped {
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s was not running\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule stopped: %s\n", args[0])
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:     "pause",
	Aliases: []string{"p"},
	Short:   "Pause the running session and lift blocks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			if err := c.Pause(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session paused")
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			if err := c.Resume(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session resumed")
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask the daemon to re-evaluate every schedule now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			return c.Refresh(ctx)
		})
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every schedule and end the session")
	rootCmd.AddCommand(startCmd, stopCmd, pauseCmd, resumeCmd, refreshCmd)
}

func describeOutcome(outcome string) string {
	switch outcome {
	case "started":
		return "Blocking started"
	case "queued":
		return "Queued: blocking starts when the window opens"
	case "already_tracked":
		return "Schedule is already running or queued"
	case "no_eligible_window":
		return "This schedule's window already passed today or does not run today"
	case "disabled":
		return "Schedule is disabled; enable it with 'bwctl schedule update <id> --enabled'"
	}
	return outcome
}
