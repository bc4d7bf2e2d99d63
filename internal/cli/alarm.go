package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/engine"
	"github.com/roach88/brewlog/internal/scheduler"
)

// NewAlarmCommand creates the alarm command group.
func NewAlarmCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Inspect and edit alarms",
	}
	cmd.AddCommand(newAlarmListCommand(opts))
	cmd.AddCommand(newAlarmAddCommand(opts))
	cmd.AddCommand(newAlarmRescheduleCommand(opts))
	cmd.AddCommand(newAlarmToggleCommand(opts, "enable", true))
	cmd.AddCommand(newAlarmToggleCommand(opts, "disable", false))
	cmd.AddCommand(newAlarmDeleteCommand(opts))
	cmd.AddCommand(newAlarmMissedCommand(opts))
	cmd.AddCommand(newAlarmPendingCommand(opts))
	return cmd
}

func newAlarmListCommand(opts *RootOptions) *cobra.Command {
	var batchID int64
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alarms by scheduled time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				ctx := cmd.Context()
				var alarms []brew.AlarmItem
				var err error
				switch {
				case batchID > 0:
					alarms, err = a.engine.BatchAlarms(ctx, batchID)
				case activeOnly:
					alarms, err = a.engine.ActiveAlarms(ctx)
				default:
					alarms, err = a.store.AllAlarms(ctx)
				}
				if err != nil {
					return err
				}
				if batchID > 0 && activeOnly {
					alarms = filterActive(alarms)
				}
				return formatter(opts, cmd).Success(alarmList(alarms))
			})
		},
	}

	cmd.Flags().Int64Var(&batchID, "batch", 0, "only alarms of this batch")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only enabled, untriggered alarms")
	return cmd
}

func filterActive(alarms []brew.AlarmItem) []brew.AlarmItem {
	out := alarms[:0]
	for _, a := range alarms {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out
}

type alarmAddOptions struct {
	BatchID     int64
	Type        string
	Title       string
	Description string
	At          string
}

func newAlarmAddCommand(opts *RootOptions) *cobra.Command {
	ao := &alarmAddOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manual alarm to a batch",
		Long: `Add a CUSTOM, CHECK_STATUS or COMPLETION alarm to a batch.

Example:
  brewlog alarm add --batch 2 --title "Taste" --at "2025-03-05 18:00"
  brewlog alarm add --batch 2 --type CHECK_STATUS --title "Bubbles?" --at +36h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := brew.ParseAlarmType(strings.ToUpper(ao.Type))
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid alarm type", err)
			}
			at, err := parseTime(ao.At, time.Now())
			if err != nil {
				return err
			}

			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				alarm, res, err := a.engine.AddAlarm(cmd.Context(), engine.NewAlarm{
					BatchID:     ao.BatchID,
					Type:        typ,
					Title:       ao.Title,
					Description: ao.Description,
					At:          at,
				})
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(newArmedAlarm(alarm, res))
			})
		},
	}

	cmd.Flags().Int64Var(&ao.BatchID, "batch", 0, "batch id (required)")
	cmd.Flags().StringVar(&ao.Type, "type", string(brew.AlarmCustom), "CUSTOM, CHECK_STATUS or COMPLETION")
	cmd.Flags().StringVar(&ao.Title, "title", "", "alarm title (required)")
	cmd.Flags().StringVar(&ao.Description, "description", "", "notification text")
	cmd.Flags().StringVar(&ao.At, "at", "", "when to fire (required)")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func newAlarmRescheduleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <alarm-id> <time>",
		Short: "Move a manual alarm to a new time",
		Long: `Move a manual alarm to a new time. Stage and filter alarms keep
the time planned from their recipe.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alarm", args[0])
			if err != nil {
				return err
			}
			at, err := parseTime(args[1], time.Now())
			if err != nil {
				return err
			}
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				alarm, res, err := a.engine.RescheduleAlarm(cmd.Context(), id, at)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(newArmedAlarm(alarm, res))
			})
		},
	}
}

func newAlarmToggleCommand(opts *RootOptions, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <alarm-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alarm", args[0])
			if err != nil {
				return err
			}
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				alarm, res, err := a.engine.SetAlarmEnabled(cmd.Context(), id, enabled)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(newArmedAlarm(alarm, res))
			})
		},
	}
}

func newAlarmDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <alarm-id>",
		Short: "Delete an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alarm", args[0])
			if err != nil {
				return err
			}
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				if err := a.engine.DeleteAlarm(cmd.Context(), id); err != nil {
					return err
				}
				return formatter(opts, cmd).Success(deleted{Kind: "alarm", ID: id})
			})
		},
	}
}

func newAlarmMissedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "missed",
		Short: "List active alarms whose time has passed",
		Long: `List active alarms whose time has passed without firing. Missed
alarms are never delivered late; reschedule or disable them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				alarms, err := a.engine.MissedAlarms(cmd.Context())
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(alarmList(alarms))
			})
		},
	}
}

func newAlarmPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List registered deferred tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				regs, err := a.sched.Pending(cmd.Context())
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(pendingList(regs))
			})
		},
	}
}

type pendingList []scheduler.Registration

func (l pendingList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No pending registrations.")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "KEY\tDUE\tBATCH\tTITLE")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.UniqueKey, showTime(r.DueAt), r.Payload.BatchID, r.Payload.Title)
	}
	return tw.Flush()
}
