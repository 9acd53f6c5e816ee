package schema

import (
	"math"
	"strconv"
)

// RawCell is a loosely-typed input value, typically a spreadsheet cell.
// It is one of TextCell, NumberCell, BoolCell or NullCell.
type RawCell interface {
	rawCell()
	String() string
}

// TextCell is a string cell.
type TextCell string

// NumberCell is a numeric cell.
type NumberCell float64

// BoolCell is a boolean cell.
type BoolCell bool

// NullCell is an empty or missing cell.
type NullCell struct{}

func (TextCell) rawCell()   {}
func (NumberCell) rawCell() {}
func (BoolCell) rawCell()   {}
func (NullCell) rawCell()   {}

func (c TextCell) String() string { return string(c) }

func (c NumberCell) String() string {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (c BoolCell) String() string { return strconv.FormatBool(bool(c)) }

func (NullCell) String() string { return "" }

// CellOf wraps a Go value as a RawCell. Unknown types become NullCell.
func CellOf(v any) RawCell {
	switch x := v.(type) {
	case nil:
		return NullCell{}
	case RawCell:
		return x
	case string:
		return TextCell(x)
	case bool:
		return BoolCell(x)
	case int:
		return NumberCell(x)
	case int64:
		return NumberCell(x)
	case float64:
		return NumberCell(x)
	default:
		return NullCell{}
	}
}
