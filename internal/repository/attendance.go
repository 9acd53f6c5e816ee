package repository

import (
	"context"
	"strings"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// DetailEntry is one student's state for SaveAttendanceDetail.
type DetailEntry struct {
	AlumnoID int64
	Estado   schema.AttendanceState
}

// Sessions returns the sessions of an activity with their details, newest
// fecha first, then latest hora_inicio first with sessions lacking a time
// last.
func (a *Activities) Sessions(ctx context.Context, actividadID int64) ([]schema.SessionWithDetails, error) {
	sessions, err := a.sessions.query(ctx, store.Query{
		Where: []store.Cond{store.Eq("actividad_id", actividadID)},
		OrderBy: []store.Order{
			{Column: "fecha", Desc: true},
			{Column: "hora_inicio", Desc: true, NullsLast: true},
			{Column: "id", Desc: true},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []schema.SessionWithDetails{}, nil
	}

	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	details, err := a.details.query(ctx, store.Query{
		Where: []store.Cond{store.In("asistencia_id", ids)},
	})
	if err != nil {
		return nil, err
	}
	bySession := make(map[int64][]schema.AttendanceDetail, len(sessions))
	for _, d := range details {
		bySession[d.AsistenciaID] = append(bySession[d.AsistenciaID], d)
	}

	out := make([]schema.SessionWithDetails, len(sessions))
	for i, s := range sessions {
		ds := bySession[s.ID]
		if ds == nil {
			ds = []schema.AttendanceDetail{}
		}
		out[i] = schema.SessionWithDetails{AttendanceSession: s, Detalles: ds}
	}
	return out, nil
}

// CreateSession records a new occurrence of an activity. fecha accepts
// YYYY-MM-DD or DD-MM-YYYY; the times accept the forms NormaliseTime does
// and may be empty. The session starts as not held.
func (a *Activities) CreateSession(ctx context.Context, actividadID int64, fecha, horaInicio, horaFin string) (schema.AttendanceSession, error) {
	if actividadID <= 0 {
		return schema.AttendanceSession{}, invalid(verbInsert, schema.TableAsistencias, "falta la actividad")
	}
	session, err := sessionFields(verbInsert, fecha, horaInicio, horaFin)
	if err != nil {
		return schema.AttendanceSession{}, err
	}
	session.ActividadID = actividadID
	return a.sessions.create(ctx, session.Row())
}

// UpdateSession replaces the date and times of a session. se_dicto is left
// unchanged.
func (a *Activities) UpdateSession(ctx context.Context, id int64, fecha, horaInicio, horaFin string) (schema.AttendanceSession, error) {
	session, err := sessionFields(verbUpdate, fecha, horaInicio, horaFin)
	if err != nil {
		return schema.AttendanceSession{}, err
	}
	row := session.Row()
	delete(row, "actividad_id")
	delete(row, "se_dicto")
	return a.sessions.update(ctx, id, row)
}

// SetSessionHeld records whether the class took place.
func (a *Activities) SetSessionHeld(ctx context.Context, id int64, held bool) (schema.AttendanceSession, error) {
	return a.sessions.update(ctx, id, schema.Row{"se_dicto": held})
}

// DeleteSession removes a session and its details. It returns the deleted
// session, or nil if it did not exist.
func (a *Activities) DeleteSession(ctx context.Context, id int64) (*schema.AttendanceSession, error) {
	return a.sessions.remove(ctx, id, func(ctx context.Context) error {
		return a.details.deleteWhere(ctx, store.Eq("asistencia_id", id))
	})
}

func sessionFields(verb, fecha, horaInicio, horaFin string) (schema.AttendanceSession, error) {
	date, ok := schema.NormaliseDate(schema.TextCell(fecha))
	if !ok {
		return schema.AttendanceSession{}, invalid(verb, schema.TableAsistencias, "fecha inválida: "+fecha)
	}
	start, ok := optionalTime(horaInicio)
	if !ok {
		return schema.AttendanceSession{}, invalid(verb, schema.TableAsistencias, "hora de inicio inválida: "+horaInicio)
	}
	end, ok := optionalTime(horaFin)
	if !ok {
		return schema.AttendanceSession{}, invalid(verb, schema.TableAsistencias, "hora de fin inválida: "+horaFin)
	}
	return schema.AttendanceSession{Fecha: date, HoraInicio: start, HoraFin: end}, nil
}

// optionalTime canonicalizes a time; blank is valid and stays blank.
func optionalTime(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", true
	}
	return schema.NormaliseTime(schema.TextCell(s))
}

// SaveAttendanceDetail upserts the state of each student in a session,
// keyed on (asistencia_id, alumno_id). Empty input is a no-op. One
// aggregate change carrying only the count is logged.
func (a *Activities) SaveAttendanceDetail(ctx context.Context, sessionID int64, entries []DetailEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]schema.Row, 0, len(entries))
	for _, e := range entries {
		if e.AlumnoID <= 0 {
			return invalid(verbUpdate, schema.TableDetalle, "falta el alumno")
		}
		rows = append(rows, schema.AttendanceDetail{
			AsistenciaID: sessionID,
			AlumnoID:     e.AlumnoID,
			Estado:       schema.NormaliseAttendanceState(string(e.Estado)),
		}.Row())
	}

	if err := a.store.Upsert(ctx, schema.TableDetalle, rows, "asistencia_id", "alumno_id"); err != nil {
		return fail(verbUpdate, schema.TableDetalle, err)
	}

	a.log.LogChange(ctx, schema.TableDetalle, schema.ActionUpdate, sessionID, map[string]any{
		"asistencia_id":  sessionID,
		"total_detalles": len(entries),
	})
	return nil
}

// AllSessions returns every session ordered by id.
func (a *Activities) AllSessions(ctx context.Context) ([]schema.AttendanceSession, error) {
	return a.sessions.list(ctx)
}

// AllDetails returns every attendance detail ordered by id.
func (a *Activities) AllDetails(ctx context.Context) ([]schema.AttendanceDetail, error) {
	return a.details.list(ctx)
}
