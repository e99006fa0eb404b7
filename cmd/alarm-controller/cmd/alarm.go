package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
)

func newAlarmCmd() *cobra.Command {
	alarmCmd := &cobra.Command{
		Use:   "alarm",
		Short: "Inspect, raise and acknowledge alarms.",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged alarms, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				alarms, err := a.orch.ActiveAlarms(ctx)
				if err != nil {
					return err
				}

				return printAlarms(out(cmd), alarms, "No active alarms.")
			})
		},
	}

	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List the latest alarms, acknowledged or not.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				alarms, err := a.orch.AlarmHistory(ctx, limit)
				if err != nil {
					return err
				}

				return printAlarms(out(cmd), alarms, "No alarms recorded.")
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of alarms, 0 for the default")

	var (
		alarmType   string
		description string
	)

	triggerCmd := &cobra.Command{
		Use:   "trigger MODULE_ID",
		Short: "Raise an alarm by hand and put the module in alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				id, err := a.orch.TriggerAlarm(ctx, moduleID, alarmType, description)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(out(cmd), "Alarm %d raised on module %d.\n", id, moduleID)

				return err
			})
		},
	}
	triggerCmd.Flags().StringVarP(&alarmType, "type", "t", gateway.DefaultAlarmType, "alarm type")
	triggerCmd.Flags().StringVarP(&description, "description", "d", "Manual alarm", "alarm description")

	ackCmd := &cobra.Command{
		Use:   "ack ALARM_ID",
		Short: "Acknowledge an alarm. The module stays in alarm until deactivation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				if err := a.orch.Acknowledge(ctx, id); err != nil {
					return err
				}

				_, err := fmt.Fprintf(out(cmd), "Alarm %d acknowledged.\n", id)

				return err
			})
		},
	}

	alarmCmd.AddCommand(listCmd, historyCmd, triggerCmd, ackCmd)

	return alarmCmd
}
