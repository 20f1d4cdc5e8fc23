package arg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/BlockWarden/internal/ipc"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the blocking session and every schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, st ipc.Status) {
	s := st.Session
	switch {
	case s.IsPaused:
		fmt.Fprintln(w, "Status: PAUSED")
	case s.IsBlocking:
		fmt.Fprintln(w, "Status: Blocking")
	default:
		fmt.Fprintln(w, "Status: Idle")
	}
	fmt.Fprintf(w, "Time saved: %s\n", formatDuration(time.Duration(s.SavedTime)*time.Second))
	if s.IsBlocking && !s.StartedAt.IsZero() {
		fmt.Fprintf(w, "Running since: %s\n", s.StartedAt.Local().Format("15:04:05"))
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}

	if len(st.Schedules) == 0 {
		fmt.Fprintln(w, "\nNo schedules")
		return
	}
	fmt.Fprintf(w, "\nSchedules (%d):\n", len(st.Schedules))
	for _, ss := range st.Schedules {
		marker := " "
		switch {
		case s.IsActive(ss.ID):
			marker = "*"
		case s.IsWaiting(ss.ID):
			marker = "~"
		}
		fmt.Fprintf(w, "%s %-20s %s  %-22s %s\n", marker, ss.Name, windowString(ss.Schedule), daysString(ss.Days), badge(ss))
	}
}

// badge is the "active now" / "starts in" label of a schedule.
func badge(ss ipc.ScheduleStatus) string {
	if !ss.Enabled {
		return "disabled"
	}
	switch ss.Status {
	case schedule.StatusActive:
		return fmt.Sprintf("active now, ends in %s", formatDuration(time.Duration(ss.EndsIn)*time.Second))
	case schedule.StatusWaiting:
		return fmt.Sprintf("starts in %s", formatDuration(time.Duration(ss.StartsIn)*time.Second))
	case schedule.StatusEnded:
		return "ended today"
	}
	if ss.StartsIn > 0 {
		return fmt.Sprintf("next in %s", formatDuration(time.Duration(ss.StartsIn)*time.Second))
	}
	return "not scheduled"
}

func windowString(s schedule.Schedule) string {
	return s.Start.String() + "-" + s.End.String()
}

func daysString(days []time.Weekday) string {
	if len(days) == 0 {
		return "never"
	}
	if len(days) == 7 {
		return "daily"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String()[:3])
	}
	return strings.Join(names, ",")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func repeat(s string, count int) string {
	return strings.Repeat(s, count)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
