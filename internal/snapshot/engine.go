package snapshot

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cooperativa/registro/internal/repository"
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// Engine exports the whole dataset and replaces it wholesale on import.
type Engine struct {
	store  store.Store
	repos  *repository.Repositories
	log    repository.ChangeRecorder
	logger *log.Logger
}

// New creates an Engine. If logger is nil, a default logger writing to
// stderr is used.
func New(s store.Store, changes repository.ChangeRecorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[snapshot] ", log.LstdFlags)
	}
	return &Engine{
		store:  s,
		repos:  repository.New(s, changes),
		log:    changes,
		logger: logger,
	}
}

// Export reads all nine tables concurrently. The tables are not read at a
// single point in time. Rows are ordered by id, schedules are re-sanitized
// and store timestamps are left out.
func (e *Engine) Export(ctx context.Context) (*schema.Snapshot, error) {
	var snap schema.Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { snap.Ropa, err = e.repos.Ropa.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.Jovenes, err = e.repos.Jovenes.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.Alumnos, err = e.repos.Alumnos.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.Familias, err = e.repos.Familias.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.Donaciones, err = e.repos.Donaciones.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.Actividades, err = e.repos.Actividades.FetchAll(ctx); return })
	g.Go(func() (err error) { snap.AlumnoActividades, err = e.repos.Actividades.AllAssignments(ctx); return })
	g.Go(func() (err error) { snap.ActividadAsistencias, err = e.repos.Actividades.AllSessions(ctx); return })
	g.Go(func() (err error) { snap.ActividadAsistenciaDetalle, err = e.repos.Actividades.AllDetails(ctx); return })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to export snapshot: %w", err)
	}

	slices.SortFunc(snap.Actividades, func(a, b schema.Activity) int { return cmp.Compare(a.ID, b.ID) })
	for i := range snap.Actividades {
		a := &snap.Actividades[i]
		a.Horarios = schema.SanitiseHorarios(a.Horarios)
		a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	}
	for i := range snap.ActividadAsistencias {
		s := &snap.ActividadAsistencias[i]
		s.CreatedAt, s.UpdatedAt = time.Time{}, time.Time{}
	}
	return &snap, nil
}

// Import replaces every table with the contents of snap. A nil table is
// imported as empty.
//
// The five simple tables are each cleared and refilled in turn. The four
// activity tables are cleared children first and refilled parents first,
// after rows failing minimal validation are dropped. Each table gets one
// bulk-sync change entry.
//
// Import is not atomic. The first store error aborts it and is returned;
// tables processed before the failure stay replaced. Rerunning the same
// import is safe.
func (e *Engine) Import(ctx context.Context, snap *schema.Snapshot) (*Result, error) {
	if snap == nil {
		snap = &schema.Snapshot{}
	}
	result := &Result{}

	for _, table := range schema.SimpleTables() {
		rows := simpleRows(table, snap)
		if err := e.clear(ctx, table); err != nil {
			return result, err
		}
		if err := e.fill(ctx, table, rows); err != nil {
			return result, err
		}
		result.add(table, len(rows), 0)
	}

	prepared := prepareActivityGroup(snap)

	group := schema.ActivityTables()
	for i := len(group) - 1; i >= 0; i-- {
		if err := e.clear(ctx, group[i]); err != nil {
			return result, err
		}
	}
	for _, table := range group {
		p := prepared[table]
		if err := e.fill(ctx, table, p.rows); err != nil {
			return result, err
		}
		result.add(table, len(p.rows), p.dropped)
	}

	e.logger.Printf("Import complete: %d rows in %d tables (dropped=%d)", result.Total(), len(result.Tables), result.Dropped())
	return result, nil
}

func (e *Engine) clear(ctx context.Context, table schema.Table) error {
	if err := e.store.DeleteWhere(ctx, table); err != nil {
		return fmt.Errorf("No se pudo limpiar la tabla %s: %w", table, err)
	}
	return nil
}

// fill upserts rows on id and writes the table's bulk-sync entry. Rows
// carrying an id go first so that rows without one cannot take an id a
// later row claims.
func (e *Engine) fill(ctx context.Context, table schema.Table, rows []schema.Row) error {
	if len(rows) > 0 {
		ordered := make([]schema.Row, 0, len(rows))
		for _, r := range rows {
			if r.ID() > 0 {
				ordered = append(ordered, r)
			}
		}
		for _, r := range rows {
			if r.ID() <= 0 {
				ordered = append(ordered, r)
			}
		}
		if err := e.store.Upsert(ctx, table, ordered); err != nil {
			return fmt.Errorf("No se pudo importar datos en %s: %w", table, err)
		}
	}
	e.log.LogChange(ctx, table, schema.ActionUpdate, 0, map[string]any{
		"accion": "bulk-sync",
		"total":  len(rows),
	})
	return nil
}

func simpleRows(table schema.Table, snap *schema.Snapshot) []schema.Row {
	if table == schema.TableRopa {
		rows := make([]schema.Row, 0, len(snap.Ropa))
		for _, item := range snap.Ropa {
			item.Tipo = schema.NormaliseClothingType(string(item.Tipo))
			rows = append(rows, item.Row())
		}
		return rows
	}
	return snap.Rows(table)
}

type preparedTable struct {
	rows    []schema.Row
	dropped int
}

// prepareActivityGroup applies the import drop rules to the activity
// tables.
func prepareActivityGroup(snap *schema.Snapshot) map[schema.Table]preparedTable {
	out := make(map[schema.Table]preparedTable, 4)

	var p preparedTable
	for _, a := range snap.Actividades {
		a.Nombre = strings.TrimSpace(a.Nombre)
		if a.Nombre == "" {
			p.dropped++
			continue
		}
		a.Horarios = schema.SanitiseHorarios(a.Horarios)
		p.rows = append(p.rows, a.Row())
	}
	out[schema.TableActividades] = p

	assignments := make([]schema.ActivityAssignment, 0, len(snap.AlumnoActividades))
	p = preparedTable{}
	for _, a := range snap.AlumnoActividades {
		if a.ActividadID <= 0 || a.AlumnoID <= 0 {
			p.dropped++
			continue
		}
		assignments = append(assignments, a)
	}
	assignments, dups := keepLast(assignments, func(a schema.ActivityAssignment) [2]int64 {
		return [2]int64{a.ActividadID, a.AlumnoID}
	})
	p.dropped += dups
	for _, a := range assignments {
		p.rows = append(p.rows, a.Row())
	}
	out[schema.TableAsignaciones] = p

	p = preparedTable{}
	for _, s := range snap.ActividadAsistencias {
		fecha, ok := schema.NormaliseDate(schema.TextCell(s.Fecha))
		if s.ActividadID <= 0 || !ok {
			p.dropped++
			continue
		}
		s.Fecha = fecha
		s.HoraInicio = timeOrNull(s.HoraInicio)
		s.HoraFin = timeOrNull(s.HoraFin)
		p.rows = append(p.rows, s.Row())
	}
	out[schema.TableAsistencias] = p

	details := make([]schema.AttendanceDetail, 0, len(snap.ActividadAsistenciaDetalle))
	p = preparedTable{}
	for _, d := range snap.ActividadAsistenciaDetalle {
		if d.AsistenciaID <= 0 || d.AlumnoID <= 0 {
			p.dropped++
			continue
		}
		d.Estado = schema.NormaliseAttendanceState(string(d.Estado))
		details = append(details, d)
	}
	details, dups = keepLast(details, func(d schema.AttendanceDetail) [2]int64 {
		return [2]int64{d.AsistenciaID, d.AlumnoID}
	})
	p.dropped += dups
	for _, d := range details {
		p.rows = append(p.rows, d.Row())
	}
	out[schema.TableDetalle] = p

	return out
}

// keepLast removes earlier items sharing a key with a later one and
// returns the survivors in their original order with the number removed.
func keepLast[T any, K comparable](items []T, key func(T) K) ([]T, int) {
	seen := make(map[K]bool, len(items))
	kept := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		k := key(items[i])
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, items[i])
	}
	slices.Reverse(kept)
	return kept, len(items) - len(kept)
}

// timeOrNull canonicalizes a time; anything unparseable becomes empty,
// which is stored as NULL.
func timeOrNull(s string) string {
	hhmm, ok := schema.NormaliseTime(schema.TextCell(s))
	if !ok {
		return ""
	}
	return hhmm
}
