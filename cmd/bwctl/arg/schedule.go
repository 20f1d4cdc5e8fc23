package arg

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/BlockWarden/internal/config"
	"github.com/SoarinFerret/BlockWarden/internal/ipc"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

var (
	scheduleID       string
	scheduleName     string
	scheduleWindow   string
	scheduleDays     []string
	scheduleApp      string
	scheduleDisabled bool
	scheduleEnabled  bool
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"schedules", "s"},
	Short:   "Manage blocking schedules",
	Long:    `List, add, update, or delete the recurring windows during which apps are blocked`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			list, err := c.ListSchedules(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), list)
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "No schedules")
				return nil
			}
			fmt.Fprintf(w, "%-36s  %-20s %-11s  %s\n", "ID", "NAME", "WINDOW", "DAYS")
			fmt.Fprintln(w, repeat("-", 80))
			for _, s := range list {
				name := s.Name
				if !s.Enabled {
					name += " (off)"
				}
				fmt.Fprintf(w, "%-36s  %-20s %-11s  %s\n", s.ID, name, windowString(s), daysString(s.Days))
			}
			return nil
		})
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a schedule",
	Long: `Add a recurring blocking window.
Examples:
  bwctl schedule add --name Work --window 09:00-17:00 --days weekdays --app social
  bwctl schedule add --name Night --window 22:00-06:00 --days fri,sat`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSchedule()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			added, err := c.AddSchedule(ctx, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule added: %s (%s)\n", added.Name, added.ID)
			return nil
		})
	},
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a schedule",
	Long: `Change only the fields given as flags.
Examples:
  bwctl schedule update 3f2c... --window 08:30-17:00
  bwctl schedule update 3f2c... --disabled`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPatch(cmd)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			updated, err := c.UpdateSchedule(ctx, args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule updated: %s %s %s\n", updated.Name, windowString(updated), daysString(updated.Days))
			return nil
		})
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a schedule, stopping it first if it is running",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			if err := c.DeleteSchedule(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule deleted: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleID, "id", "", "schedule id (generated when empty)")
	scheduleAddCmd.Flags().StringVar(&scheduleName, "name", "", "schedule name")
	scheduleAddCmd.Flags().StringVar(&scheduleWindow, "window", "", "daily window as HH:MM-HH:MM")
	scheduleAddCmd.Flags().StringSliceVar(&scheduleDays, "days", nil, "weekdays, e.g. mon,tue or weekdays")
	scheduleAddCmd.Flags().StringVar(&scheduleApp, "app", "", "app selection reference to block")
	scheduleAddCmd.Flags().BoolVar(&scheduleDisabled, "disabled", false, "add the schedule switched off")
	scheduleAddCmd.MarkFlagRequired("name")
	scheduleAddCmd.MarkFlagRequired("window")

	bindUpdateFlags(scheduleUpdateCmd)

	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleUpdateCmd, scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func bindUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scheduleName, "name", "", "new name")
	cmd.Flags().StringVar(&scheduleWindow, "window", "", "new daily window as HH:MM-HH:MM")
	cmd.Flags().StringSliceVar(&scheduleDays, "days", nil, "new weekdays")
	cmd.Flags().StringVar(&scheduleApp, "app", "", "new app selection reference")
	cmd.Flags().BoolVar(&scheduleEnabled, "enabled", false, "switch the schedule on")
	cmd.Flags().BoolVar(&scheduleDisabled, "disabled", false, "switch the schedule off")
	cmd.MarkFlagsMutuallyExclusive("enabled", "disabled")
}

// buildSchedule turns the add flags into a schedule.
func buildSchedule() (schedule.Schedule, error) {
	var window config.TimeRange
	if err := window.UnmarshalText([]byte(scheduleWindow)); err != nil {
		return schedule.Schedule{}, err
	}
	days, err := config.ParseDays(scheduleDays)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.Schedule{
		ID:           scheduleID,
		Name:         scheduleName,
		Start:        window.Start,
		End:          window.End,
		Days:         days,
		Enabled:      !scheduleDisabled,
		AppSelection: scheduleApp,
	}, nil
}

// buildPatch collects the update flags that were set.
func buildPatch(cmd *cobra.Command) (schedule.Patch, error) {
	var p schedule.Patch
	flags := cmd.Flags()
	if flags.Changed("name") {
		p.Name = &scheduleName
	}
	if flags.Changed("window") {
		var window config.TimeRange
		if err := window.UnmarshalText([]byte(scheduleWindow)); err != nil {
			return p, err
		}
		p.Start = &window.Start
		p.End = &window.End
	}
	if flags.Changed("days") {
		days, err := config.ParseDays(scheduleDays)
		if err != nil {
			return p, err
		}
		p.Days = &days
	}
	if flags.Changed("app") {
		p.AppSelection = &scheduleApp
	}
	if flags.Changed("enabled") {
		enabled := scheduleEnabled
		p.Enabled = &enabled
	}
	if flags.Changed("disabled") {
		enabled := !scheduleDisabled
		p.Enabled = &enabled
	}
	if p == (schedule.Patch{}) {
		return p, fmt.Errorf("nothing to update: pass at least one of --name, --window, --days, --app, --enabled, --disabled")
	}
	return p, nil
}
