package schema

import (
	"fmt"
	"time"
)

// TimeToDisplay renders a stored HH:MM time as a 12-hour clock
// ("13:05" -> "1:05 PM"). Unparseable input is returned unchanged.
func TimeToDisplay(hhmm string) string {
	canonical, ok := NormaliseTime(TextCell(hhmm))
	if !ok {
		return hhmm
	}
	t, err := time.Parse("15:04", canonical)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

// DateToDisplay renders a stored YYYY-MM-DD date as DD-MM-YYYY.
func DateToDisplay(iso string) string {
	canonical, ok := NormaliseDate(TextCell(iso))
	if !ok {
		return iso
	}
	t, err := time.Parse(time.DateOnly, canonical)
	if err != nil {
		return iso
	}
	return t.Format("02-01-2006")
}

// TodayISO returns the calendar date of t as YYYY-MM-DD.
func TodayISO(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ScheduleToDisplay renders a schedule entry for terminal output.
func ScheduleToDisplay(e ScheduleEntry) string {
	return fmt.Sprintf("%s %s-%s", e.Dia, TimeToDisplay(e.HoraInicio), TimeToDisplay(e.HoraFin))
}
