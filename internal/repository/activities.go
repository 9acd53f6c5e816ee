package repository

import (
	"context"
	"strings"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// Activities manages actividades together with their assignments,
// attendance sessions and attendance details.
type Activities struct {
	store store.Store
	log   ChangeRecorder

	activities  *table[schema.Activity]
	assignments *table[schema.ActivityAssignment]
	sessions    *table[schema.AttendanceSession]
	details     *table[schema.AttendanceDetail]
}

// NewActivities returns the activities repository.
func NewActivities(s store.Store, log ChangeRecorder) *Activities {
	return &Activities{
		store:       s,
		log:         log,
		activities:  newTable(s, log, schema.TableActividades, schema.ActivityFromRow),
		assignments: newTable(s, log, schema.TableAsignaciones, schema.ActivityAssignmentFromRow),
		sessions:    newTable(s, log, schema.TableAsistencias, schema.AttendanceSessionFromRow),
		details:     newTable(s, log, schema.TableDetalle, schema.AttendanceDetailFromRow),
	}
}

// FetchAll returns every activity ordered by nombre.
func (a *Activities) FetchAll(ctx context.Context) ([]schema.Activity, error) {
	return a.activities.query(ctx, store.Query{
		OrderBy: []store.Order{{Column: "nombre"}, {Column: "id"}},
	})
}

// Get returns one activity.
func (a *Activities) Get(ctx context.Context, id int64) (schema.Activity, error) {
	return a.activities.get(ctx, id)
}

// Create inserts an activity. The nombre is trimmed and must not be empty;
// the schedule is sanitized.
func (a *Activities) Create(ctx context.Context, nombre string, horarios []schema.ScheduleEntry) (schema.Activity, error) {
	row, err := activityRow(verbInsert, nombre, horarios)
	if err != nil {
		return schema.Activity{}, err
	}
	return a.activities.create(ctx, row)
}

// Update replaces the nombre and schedule of an activity.
func (a *Activities) Update(ctx context.Context, id int64, nombre string, horarios []schema.ScheduleEntry) (schema.Activity, error) {
	row, err := activityRow(verbUpdate, nombre, horarios)
	if err != nil {
		return schema.Activity{}, err
	}
	return a.activities.update(ctx, id, row)
}

// Delete removes an activity with its assignments, sessions and their
// details. It returns the deleted activity, or nil if it did not exist.
func (a *Activities) Delete(ctx context.Context, id int64) (*schema.Activity, error) {
	return a.activities.remove(ctx, id, func(ctx context.Context) error {
		sessionIDs, err := a.sessions.ids(ctx, store.Eq("actividad_id", id))
		if err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := a.details.deleteWhere(ctx, store.In("asistencia_id", sessionIDs)); err != nil {
				return err
			}
			if err := a.sessions.deleteWhere(ctx, store.Eq("actividad_id", id)); err != nil {
				return err
			}
		}
		return a.assignments.deleteWhere(ctx, store.Eq("actividad_id", id))
	})
}

func activityRow(verb, nombre string, horarios []schema.ScheduleEntry) (schema.Row, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return nil, invalid(verb, schema.TableActividades, "el nombre es obligatorio")
	}
	return schema.Activity{Nombre: nombre, Horarios: schema.SanitiseHorarios(horarios)}.Row(), nil
}

// AssignedStudentIDs returns the alumno ids assigned to an activity.
func (a *Activities) AssignedStudentIDs(ctx context.Context, actividadID int64) ([]int64, error) {
	assigned, err := a.assignments.query(ctx, store.Query{
		Where: []store.Cond{store.Eq("actividad_id", actividadID)},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(assigned))
	for i, as := range assigned {
		ids[i] = as.AlumnoID
	}
	return ids, nil
}

// SetAssignments makes the students assigned to an activity exactly
// alumnoIDs. Only missing assignments are inserted and only surplus ones
// deleted; removed students lose their attendance details in every session
// of the activity. One aggregate change is logged.
//
// The steps are not atomic. On error, rerunning with the same arguments
// completes the reconciliation.
func (a *Activities) SetAssignments(ctx context.Context, actividadID int64, alumnoIDs []int64) error {
	current, err := a.AssignedStudentIDs(ctx, actividadID)
	if err != nil {
		return err
	}

	existing := make(map[int64]bool, len(current))
	for _, id := range current {
		existing[id] = true
	}
	desired := make(map[int64]bool, len(alumnoIDs))
	var additions []schema.Row
	for _, id := range alumnoIDs {
		if desired[id] {
			continue
		}
		desired[id] = true
		if !existing[id] {
			additions = append(additions, schema.ActivityAssignment{ActividadID: actividadID, AlumnoID: id}.Row())
		}
	}
	var removals []int64
	for _, id := range current {
		if !desired[id] {
			removals = append(removals, id)
		}
	}

	if len(additions) > 0 {
		if err := a.store.Upsert(ctx, schema.TableAsignaciones, additions, "actividad_id", "alumno_id"); err != nil {
			return fail(verbInsert, schema.TableAsignaciones, err)
		}
	}

	if len(removals) > 0 {
		if err := a.assignments.deleteWhere(ctx, store.Eq("actividad_id", actividadID), store.In("alumno_id", removals)); err != nil {
			return err
		}
		sessionIDs, err := a.sessions.ids(ctx, store.Eq("actividad_id", actividadID))
		if err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := a.details.deleteWhere(ctx, store.In("asistencia_id", sessionIDs), store.In("alumno_id", removals)); err != nil {
				return err
			}
		}
	}

	a.log.LogChange(ctx, schema.TableAsignaciones, schema.ActionUpdate, actividadID, map[string]any{
		"actividad_id":  actividadID,
		"total_alumnos": len(desired),
	})
	return nil
}

// AllAssignments returns every assignment ordered by id.
func (a *Activities) AllAssignments(ctx context.Context) ([]schema.ActivityAssignment, error) {
	return a.assignments.list(ctx)
}
