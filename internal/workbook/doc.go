// Package workbook converts a schema.Snapshot to and from an .xlsx workbook.
//
// # Layout
//
// A workbook has one sheet per data table, named after the table's
// descriptor (Ropa, Jovenes, ..., "Actividad Asistencia Detalle"). The first
// row of every sheet is the header row. Data rows follow, one per record.
// Store timestamps are never written.
//
// # Parsing
//
// Parse matches sheets by name and columns by header, so sheets may be
// reordered and columns shuffled or extended by hand. Every cell is read as
// a schema.RawCell and run through the schema sanitizers. A row that fails
// a required field is dropped as a whole; nothing is reported for it.
//
//	snap, err := workbook.Parse(data)
//	if errors.Is(err, workbook.ErrUnsupportedVersion) {
//	    // written by an incompatible release
//	}
//
// The document Version property records the layout version. Workbooks
// edited in other tools usually lose it and are accepted.
package workbook
