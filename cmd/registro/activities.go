package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/ui"
)

var activitiesCmd = &cobra.Command{
	Use:     "activities [id]",
	GroupID: "data",
	Short:   "List activities, or the sessions of one activity",
	Long: `Without arguments, list every activity with its weekly schedule, the
number of assigned students and how many sessions were held.

With an activity id, list its sessions (newest first) with attendance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		activities := a.repos.Actividades
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid activity id %q", args[0])
			}
			activity, err := activities.Get(ctx, id)
			if err != nil {
				return err
			}
			sessions, err := activities.Sessions(ctx, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%s %s\n\n", ui.RenderAccent("📅"), activity.Nombre)
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					schema.DateToDisplay(s.Fecha),
					sessionHours(s.AttendanceSession),
					heldLabel(s.SeDicto),
					attendanceSummary(s.Detalles),
				})
			}
			fmt.Fprint(out, ui.Table([]string{"fecha", "horario", "dictada", "asistencia"}, rows))
			return nil
		}

		list, err := activities.FetchAll(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, activity := range list {
			assigned, err := activities.AssignedStudentIDs(ctx, activity.ID)
			if err != nil {
				return err
			}
			sessions, err := activities.Sessions(ctx, activity.ID)
			if err != nil {
				return err
			}
			held := 0
			for _, s := range sessions {
				if s.SeDicto {
					held++
				}
			}

			schedule := make([]string, 0, len(activity.Horarios))
			for _, h := range activity.Horarios {
				schedule = append(schedule, schema.ScheduleToDisplay(h))
			}
			rows = append(rows, []string{
				strconv.FormatInt(activity.ID, 10),
				activity.Nombre,
				strings.Join(schedule, ", "),
				ui.Count(len(assigned)),
				fmt.Sprintf("%d/%d", held, len(sessions)),
			})
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("No activities"))
			return nil
		}
		fmt.Fprint(out, ui.Table([]string{"id", "nombre", "horarios", "alumnos", "dictadas"}, rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activitiesCmd)
}

func sessionHours(s schema.AttendanceSession) string {
	if s.HoraInicio == "" {
		return "-"
	}
	if s.HoraFin == "" {
		return schema.TimeToDisplay(s.HoraInicio)
	}
	return schema.TimeToDisplay(s.HoraInicio) + "-" + schema.TimeToDisplay(s.HoraFin)
}

func heldLabel(held bool) string {
	if held {
		return ui.RenderPass("sí")
	}
	return ui.RenderMuted("no")
}

func attendanceSummary(details []schema.AttendanceDetail) string {
	if len(details) == 0 {
		return "-"
	}
	present := 0
	for _, d := range details {
		if d.Estado == schema.StatePresente {
			present++
		}
	}
	return fmt.Sprintf("%d/%d presentes", present, len(details))
}
