// Package schema defines the canonical records of the registro dataset and
// the total sanitizers that turn loosely-typed input into them.
//
// # Overview
//
// The dataset is made of nine tables plus the append-only change log:
//
//	ropa                          clothing inventory
//	jovenes, alumnos              people (same shape, different table)
//	familias                      families
//	donaciones                    donations
//	actividades                   activities, with a JSON schedule column
//	alumno_actividades            activity <-> student assignments
//	actividad_asistencias         one row per concrete class occurrence
//	actividad_asistencia_detalle  one row per (session, student)
//	registro_cambios              change log
//
// Every table is described by a Descriptor (columns, kinds, required and
// foreign-key columns, workbook sheet name). The store generates its DDL
// from descriptors and the repository runs a single generic CRUD path over
// them, so adding a column means touching one table literal.
//
// # Rows
//
// Row is the store-level representation: a map from column name to one of
// int64, string, bool, json.RawMessage, time.Time or nil. Every entity has a
// Row method and a matching FromRow decoder. Decoders are lenient: a missing
// or mistyped column decodes as the zero value.
//
// # Sanitizers
//
// Spreadsheet cells arrive as RawCell values (TextCell, NumberCell,
// BoolCell, NullCell). The sanitizers (ToID, ToCount, ToNumber, ToText,
// ToBoolean, NormaliseDate, NormaliseTime) accept any RawCell and return a
// canonical value plus an ok flag. They never panic and never return
// errors; "invalid" and "absent" are both reported as ok == false.
//
//	date, ok := schema.NormaliseDate(schema.TextCell("05-03-2024"))
//	// date == "2024-03-05", ok == true
//
//	hhmm, ok := schema.NormaliseTime(schema.TextCell("9:00 AM"))
//	// hhmm == "09:00", ok == true
//
// SanitiseHorarios cleans an activity schedule and is idempotent.
// NormalisePayload turns an arbitrary value into the JSON stored in the
// change log.
package schema
