package schema

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weekday is a canonical schedule day.
type Weekday string

const (
	Lunes     Weekday = "lunes"
	Martes    Weekday = "martes"
	Miercoles Weekday = "miercoles"
	Jueves    Weekday = "jueves"
	Viernes   Weekday = "viernes"
	Sabado    Weekday = "sabado"
	Domingo   Weekday = "domingo"
)

// Weekdays returns the days in calendar order, Monday first.
func Weekdays() []Weekday {
	return []Weekday{Lunes, Martes, Miercoles, Jueves, Viernes, Sabado, Domingo}
}

// ScheduleEntry is one weekly slot of an activity.
type ScheduleEntry struct {
	Dia        Weekday `json:"dia" yaml:"dia"`
	HoraInicio string  `json:"hora_inicio" yaml:"hora_inicio"`
	HoraFin    string  `json:"hora_fin" yaml:"hora_fin"`
}

// ParseWeekday folds case and accents ("Miércoles" -> miercoles) and
// reports whether the result is a canonical day.
func ParseWeekday(s string) (Weekday, bool) {
	folded := foldAccents(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range Weekdays() {
		if folded == string(d) {
			return d, true
		}
	}
	return "", false
}

// SanitiseHorarios drops entries with an unknown day or a blank start or end
// time, and trims the remaining times. Times that parse are canonicalized to
// HH:MM. Order is preserved and the result is never nil.
func SanitiseHorarios(entries []ScheduleEntry) []ScheduleEntry {
	out := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		day, ok := ParseWeekday(string(e.Dia))
		if !ok {
			continue
		}
		start := canonicalTime(e.HoraInicio)
		end := canonicalTime(e.HoraFin)
		if start == "" || end == "" {
			continue
		}
		out = append(out, ScheduleEntry{Dia: day, HoraInicio: start, HoraFin: end})
	}
	return out
}

// ParseHorarios decodes a horarios JSON value and sanitizes it. Anything
// that is not a JSON array yields an empty schedule; array elements that
// are not objects are skipped.
func ParseHorarios(raw []byte) []ScheduleEntry {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []ScheduleEntry{}
	}

	entries := make([]ScheduleEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		entries = append(entries, ScheduleEntry{
			Dia:        Weekday(stringField(fields, "dia")),
			HoraInicio: stringField(fields, "hora_inicio"),
			HoraFin:    stringField(fields, "hora_fin"),
		})
	}
	return SanitiseHorarios(entries)
}

func canonicalTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if hhmm, ok := NormaliseTime(TextCell(s)); ok {
		return hhmm
	}
	return s
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
