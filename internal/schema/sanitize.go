package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	localDatePattern = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	timePattern      = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?(?:\s*([AaPp][Mm]))?$`)
)

// ToNumber returns the finite number held by a cell.
func ToNumber(c RawCell) (float64, bool) {
	switch v := c.(type) {
	case NumberCell:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case TextCell:
		s := strings.TrimSpace(string(v))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case BoolCell:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToID returns a positive integer id. Fractions are truncated.
func ToID(c RawCell) (int64, bool) {
	f, ok := ToNumber(c)
	if !ok {
		return 0, false
	}
	n := int64(math.Trunc(f))
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// ToCount returns a strictly positive whole number, as used by cantidad
// and miembros.
func ToCount(c RawCell) (int64, bool) {
	f, ok := ToNumber(c)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int64(f), true
}

// ToText returns the trimmed text of a cell. Empty text is not ok.
func ToText(c RawCell) (string, bool) {
	if c == nil {
		return "", false
	}
	s := strings.TrimSpace(c.String())
	return s, s != ""
}

// ToBoolean interprets booleans, numbers and the usual Spanish and English
// spellings of yes/no.
func ToBoolean(c RawCell) (bool, bool) {
	switch v := c.(type) {
	case BoolCell:
		return bool(v), true
	case NumberCell:
		return v != 0, true
	case TextCell:
		switch strings.ToLower(strings.TrimSpace(string(v))) {
		case "true", "verdadero", "si", "sí", "yes", "1", "x":
			return true, true
		case "false", "falso", "no", "0":
			return false, true
		}
	}
	return false, false
}

// NormaliseDate accepts YYYY-MM-DD or DD-MM-YYYY and returns YYYY-MM-DD.
// The date must exist on the calendar.
func NormaliseDate(c RawCell) (string, bool) {
	s, ok := ToText(c)
	if !ok {
		return "", false
	}

	var year, month, day int
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	} else if m := localDatePattern.FindStringSubmatch(s); m != nil {
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
	} else {
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// NormaliseTime accepts H:MM or HH:MM, optionally with seconds and an
// AM/PM suffix, and returns 24-hour HH:MM. With a suffix the hour must be
// 1..12.
func NormaliseTime(c RawCell) (string, bool) {
	s, ok := ToText(c)
	if !ok {
		return "", false
	}
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}

	hour, minute := atoi(m[1]), atoi(m[2])
	if minute > 59 {
		return "", false
	}

	switch strings.ToUpper(m[3]) {
	case "":
		if hour > 23 {
			return "", false
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// NormaliseClothingType maps anything other than verano to invierno.
func NormaliseClothingType(s string) ClothingType {
	if strings.EqualFold(strings.TrimSpace(s), string(ClothingVerano)) {
		return ClothingVerano
	}
	return ClothingInvierno
}

// NormaliseAttendanceState maps anything other than presente to ausente.
func NormaliseAttendanceState(s string) AttendanceState {
	if strings.EqualFold(strings.TrimSpace(s), string(StatePresente)) {
		return StatePresente
	}
	return StateAusente
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
