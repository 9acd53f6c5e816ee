package workbook

import "errors"

var (
	// ErrInvalidWorkbook is returned for data that is not a readable .xlsx file.
	ErrInvalidWorkbook = errors.New("invalid workbook")

	// ErrUnsupportedVersion is returned for a workbook written with an
	// incompatible layout version.
	ErrUnsupportedVersion = errors.New("unsupported workbook version")
)
