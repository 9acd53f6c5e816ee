package schema

import (
	"encoding/json"
	"time"
)

// ClothingType is the season a clothing item belongs to.
type ClothingType string

const (
	ClothingInvierno ClothingType = "invierno"
	ClothingVerano   ClothingType = "verano"
)

// AttendanceState is a student's presence in one session.
type AttendanceState string

const (
	StatePresente AttendanceState = "presente"
	StateAusente  AttendanceState = "ausente"
)

// Person is a youth (jovenes) or a student (alumnos).
type Person struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Nombre   string `json:"nombre" yaml:"nombre"`
	Apellido string `json:"apellido" yaml:"apellido"`
}

// Row encodes the person as a store row.
func (p Person) Row() Row {
	return withID(p.ID, Row{"nombre": p.Nombre, "apellido": p.Apellido})
}

// PersonFromRow decodes a jovenes or alumnos row.
func PersonFromRow(r Row) Person {
	return Person{ID: r.ID(), Nombre: r.Text("nombre"), Apellido: r.Text("apellido")}
}

// Family is a registered family.
type Family struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Apellido string `json:"apellido" yaml:"apellido"`
	Miembros int64  `json:"miembros" yaml:"miembros"`
}

// Row encodes the family as a store row.
func (f Family) Row() Row {
	return withID(f.ID, Row{"apellido": f.Apellido, "miembros": f.Miembros})
}

// FamilyFromRow decodes a familias row.
func FamilyFromRow(r Row) Family {
	return Family{ID: r.ID(), Apellido: r.Text("apellido"), Miembros: r.Int("miembros")}
}

// Donation is a received donation.
type Donation struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Tipo     string `json:"tipo" yaml:"tipo"`
	Cantidad int64  `json:"cantidad" yaml:"cantidad"`
}

// Row encodes the donation as a store row.
func (d Donation) Row() Row {
	return withID(d.ID, Row{"tipo": d.Tipo, "cantidad": d.Cantidad})
}

// DonationFromRow decodes a donaciones row.
func DonationFromRow(r Row) Donation {
	return Donation{ID: r.ID(), Tipo: r.Text("tipo"), Cantidad: r.Int("cantidad")}
}

// ClothingItem is a line of the clothing inventory.
type ClothingItem struct {
	ID       int64        `json:"id,omitempty" yaml:"id,omitempty"`
	Cantidad int64        `json:"cantidad" yaml:"cantidad"`
	Tipo     ClothingType `json:"tipo" yaml:"tipo"`
	Talle    string       `json:"talle" yaml:"talle"`
}

// Row encodes the item as a store row.
func (c ClothingItem) Row() Row {
	return withID(c.ID, Row{"cantidad": c.Cantidad, "tipo": string(c.Tipo), "talle": c.Talle})
}

// ClothingItemFromRow decodes a ropa row.
func ClothingItemFromRow(r Row) ClothingItem {
	return ClothingItem{
		ID:       r.ID(),
		Cantidad: r.Int("cantidad"),
		Tipo:     ClothingType(r.Text("tipo")),
		Talle:    r.Text("talle"),
	}
}

// Activity is a recurring program with a weekly schedule.
type Activity struct {
	ID        int64           `json:"id,omitempty" yaml:"id,omitempty"`
	Nombre    string          `json:"nombre" yaml:"nombre"`
	Horarios  []ScheduleEntry `json:"horarios" yaml:"horarios"`
	CreatedAt time.Time       `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// Row encodes the activity as a store row. Timestamps are owned by the
// store and are not included.
func (a Activity) Row() Row {
	horarios := a.Horarios
	if horarios == nil {
		horarios = []ScheduleEntry{}
	}
	data, _ := json.Marshal(horarios)
	return withID(a.ID, Row{"nombre": a.Nombre, "horarios": json.RawMessage(data)})
}

// ActivityFromRow decodes an actividades row. A malformed horarios column
// decodes as an empty schedule.
func ActivityFromRow(r Row) Activity {
	return Activity{
		ID:        r.ID(),
		Nombre:    r.Text("nombre"),
		Horarios:  ParseHorarios(r.JSON("horarios")),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
	}
}

// ActivityAssignment links a student to an activity.
type ActivityAssignment struct {
	ID          int64 `json:"id,omitempty" yaml:"id,omitempty"`
	ActividadID int64 `json:"actividad_id" yaml:"actividad_id"`
	AlumnoID    int64 `json:"alumno_id" yaml:"alumno_id"`
}

// Row encodes the assignment as a store row.
func (a ActivityAssignment) Row() Row {
	return withID(a.ID, Row{"actividad_id": a.ActividadID, "alumno_id": a.AlumnoID})
}

// ActivityAssignmentFromRow decodes an alumno_actividades row.
func ActivityAssignmentFromRow(r Row) ActivityAssignment {
	return ActivityAssignment{ID: r.ID(), ActividadID: r.Int("actividad_id"), AlumnoID: r.Int("alumno_id")}
}

// AttendanceSession is one dated occurrence of an activity. Empty times
// are stored as NULL.
type AttendanceSession struct {
	ID          int64     `json:"id,omitempty" yaml:"id,omitempty"`
	ActividadID int64     `json:"actividad_id" yaml:"actividad_id"`
	Fecha       string    `json:"fecha" yaml:"fecha"`
	HoraInicio  string    `json:"hora_inicio,omitempty" yaml:"hora_inicio,omitempty"`
	HoraFin     string    `json:"hora_fin,omitempty" yaml:"hora_fin,omitempty"`
	SeDicto     bool      `json:"se_dicto" yaml:"se_dicto"`
	CreatedAt   time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// Row encodes the session as a store row.
func (s AttendanceSession) Row() Row {
	return withID(s.ID, Row{
		"actividad_id": s.ActividadID,
		"fecha":        s.Fecha,
		"hora_inicio":  nullable(s.HoraInicio),
		"hora_fin":     nullable(s.HoraFin),
		"se_dicto":     s.SeDicto,
	})
}

// AttendanceSessionFromRow decodes an actividad_asistencias row.
func AttendanceSessionFromRow(r Row) AttendanceSession {
	return AttendanceSession{
		ID:          r.ID(),
		ActividadID: r.Int("actividad_id"),
		Fecha:       r.Text("fecha"),
		HoraInicio:  r.Text("hora_inicio"),
		HoraFin:     r.Text("hora_fin"),
		SeDicto:     r.Bool("se_dicto"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

// AttendanceDetail records one student's presence in one session.
type AttendanceDetail struct {
	ID           int64           `json:"id,omitempty" yaml:"id,omitempty"`
	AsistenciaID int64           `json:"asistencia_id" yaml:"asistencia_id"`
	AlumnoID     int64           `json:"alumno_id" yaml:"alumno_id"`
	Estado       AttendanceState `json:"estado" yaml:"estado"`
}

// Row encodes the detail as a store row.
func (d AttendanceDetail) Row() Row {
	return withID(d.ID, Row{"asistencia_id": d.AsistenciaID, "alumno_id": d.AlumnoID, "estado": string(d.Estado)})
}

// AttendanceDetailFromRow decodes an actividad_asistencia_detalle row.
func AttendanceDetailFromRow(r Row) AttendanceDetail {
	return AttendanceDetail{
		ID:           r.ID(),
		AsistenciaID: r.Int("asistencia_id"),
		AlumnoID:     r.Int("alumno_id"),
		Estado:       AttendanceState(r.Text("estado")),
	}
}

// SessionWithDetails is a session together with its attendance rows.
type SessionWithDetails struct {
	AttendanceSession `yaml:",inline"`
	Detalles          []AttendanceDetail `json:"detalles" yaml:"detalles"`
}

// ChangeLogEntry is one row of registro_cambios. RegistroID is 0 when the
// change is not tied to a single record.
type ChangeLogEntry struct {
	ID         int64           `json:"id"`
	Tabla      Table           `json:"tabla"`
	Accion     Action          `json:"accion"`
	RegistroID int64           `json:"registro_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Row encodes the entry for insertion.
func (e ChangeLogEntry) Row() Row {
	r := Row{
		"tabla":       string(e.Tabla),
		"accion":      string(e.Accion),
		"registro_id": nil,
		"payload":     nil,
	}
	if e.RegistroID > 0 {
		r["registro_id"] = e.RegistroID
	}
	if len(e.Payload) > 0 {
		r["payload"] = e.Payload
	}
	return withID(e.ID, r)
}

// ChangeLogEntryFromRow decodes a registro_cambios row.
func ChangeLogEntryFromRow(r Row) ChangeLogEntry {
	return ChangeLogEntry{
		ID:         r.ID(),
		Tabla:      Table(r.Text("tabla")),
		Accion:     Action(r.Text("accion")),
		RegistroID: r.Int("registro_id"),
		Payload:    r.JSON("payload"),
		CreatedAt:  r.Time("created_at"),
	}
}
