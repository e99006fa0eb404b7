package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// when renders a timestamp with its age, e.g. "2026-10-15 08:12:03 (5 minutes ago)".
func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format(time.DateTime) + " (" + humanize.Time(t) + ")"
}

func printModules(w io.Writer, modules []domain.Module) error {
	if len(modules) == 0 {
		_, err := fmt.Fprintln(w, "No modules registered.")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tLAST UPDATED")

	for _, m := range modules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.Name, m.Status, when(m.LastUpdated))
	}

	return tw.Flush()
}

func printAlarms(w io.Writer, alarms []domain.ActiveAlarm, empty string) error {
	if len(alarms) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tMODULE\tTYPE\tRAISED\tACK\tDESCRIPTION")

	for _, a := range alarms {
		module := a.ModuleName
		if module == "" {
			module = "#" + strconv.FormatInt(a.ModuleID, 10) + " (removed)"
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, module, a.AlarmType, when(a.Timestamp), yesNo(a.Acknowledged), a.Description)
	}

	return tw.Flush()
}

func printSensors(w io.Writer, states map[int64]gateway.SensorSnapshot) error {
	if len(states) == 0 {
		_, err := fmt.Fprintln(w, "No sensors bound.")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "MODULE\tCHANNEL\tPOLARITY\tPULL\tTYPE\tSTATE")

	for _, id := range slices.Sorted(maps.Keys(states)) {
		s := states[id]
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", id, s.Channel, s.Polarity, s.Pull, s.AlarmType, s.State)
	}

	return tw.Flush()
}

func printStatus(w io.Writer, s *orchestrator.Status) error {
	tw := newTable(w)

	fmt.Fprintf(tw, "Backend:\t%s (simulated: %s, interrupts: %s)\n",
		s.Gateway.Backend, yesNo(s.Gateway.Simulated), yesNo(s.Gateway.Interrupts))
	fmt.Fprintf(tw, "Sensors:\t%d (monitoring: %s)\n", s.Gateway.Sensors, yesNo(s.Gateway.Monitoring))
	fmt.Fprintf(tw, "Modules:\t%d (%d in alarm)\n", s.Modules, s.ModulesInAlarm)
	fmt.Fprintf(tw, "Active alarms:\t%d\n", s.ActiveAlarms)
	fmt.Fprintf(tw, "Night mode:\t%s\n", yesNo(s.NightMode))

	if s.Silenced {
		fmt.Fprintf(tw, "Silenced until:\t%s\n", when(s.SilencedUntil))
	}

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", orchestrator.ErrValidation, arg)
	}

	return id, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
