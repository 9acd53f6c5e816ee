// Package snapshot moves the whole registro dataset in and out as one
// aggregate.
//
// # Overview
//
// Export reads the nine data tables concurrently into a schema.Snapshot.
// Import is a destructive full replace: every table is cleared and refilled
// from the snapshot. It is not a merge.
//
//	engine := snapshot.New(db, changelog.New(db, nil), nil)
//	snap, err := engine.Export(ctx)
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Import(ctx, snap)
//
// # Import Order
//
// The simple tables (ropa, jovenes, alumnos, familias, donaciones) are
// cleared and refilled one at a time. The activity group is cleared
// children first and refilled parents first:
//
//	clear:  actividad_asistencia_detalle, actividad_asistencias, alumno_actividades, actividades
//	upsert: actividades, alumno_actividades, actividad_asistencias, actividad_asistencia_detalle
//
// Rows keep the ids they carry, so references inside the snapshot stay
// valid. Activity-group rows with a blank nombre, a missing foreign key or
// an invalid fecha are dropped and counted in the Result.
//
// # Dumps
//
// WriteFile and ReadFile store a snapshot as JSON or YAML, chosen by file
// extension. Backup writes a timestamped JSON dump of the current data.
//
// # Error Handling
//
// The first store error aborts Export or Import. An aborted import leaves
// the tables before the failing step replaced and the rest untouched;
// running the same import again completes it.
package snapshot
