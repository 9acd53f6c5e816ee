package schema

// Snapshot is the whole dataset: one slice per data table. A nil slice is
// an empty table.
type Snapshot struct {
	Ropa                       []ClothingItem       `json:"ropa" yaml:"ropa"`
	Jovenes                    []Person             `json:"jovenes" yaml:"jovenes"`
	Alumnos                    []Person             `json:"alumnos" yaml:"alumnos"`
	Familias                   []Family             `json:"familias" yaml:"familias"`
	Donaciones                 []Donation           `json:"donaciones" yaml:"donaciones"`
	Actividades                []Activity           `json:"actividades" yaml:"actividades"`
	AlumnoActividades          []ActivityAssignment `json:"alumno_actividades" yaml:"alumno_actividades"`
	ActividadAsistencias       []AttendanceSession  `json:"actividad_asistencias" yaml:"actividad_asistencias"`
	ActividadAsistenciaDetalle []AttendanceDetail   `json:"actividad_asistencia_detalle" yaml:"actividad_asistencia_detalle"`
}

// Count returns the number of rows held for a table.
func (s *Snapshot) Count(t Table) int {
	switch t {
	case TableRopa:
		return len(s.Ropa)
	case TableJovenes:
		return len(s.Jovenes)
	case TableAlumnos:
		return len(s.Alumnos)
	case TableFamilias:
		return len(s.Familias)
	case TableDonaciones:
		return len(s.Donaciones)
	case TableActividades:
		return len(s.Actividades)
	case TableAsignaciones:
		return len(s.AlumnoActividades)
	case TableAsistencias:
		return len(s.ActividadAsistencias)
	case TableDetalle:
		return len(s.ActividadAsistenciaDetalle)
	}
	return 0
}

// Total returns the number of rows across all tables.
func (s *Snapshot) Total() int {
	n := 0
	for _, t := range Tables() {
		n += s.Count(t)
	}
	return n
}

// Rows encodes the rows of one table as store rows.
func (s *Snapshot) Rows(t Table) []Row {
	switch t {
	case TableRopa:
		return encodeRows(s.Ropa)
	case TableJovenes:
		return encodeRows(s.Jovenes)
	case TableAlumnos:
		return encodeRows(s.Alumnos)
	case TableFamilias:
		return encodeRows(s.Familias)
	case TableDonaciones:
		return encodeRows(s.Donaciones)
	case TableActividades:
		return encodeRows(s.Actividades)
	case TableAsignaciones:
		return encodeRows(s.AlumnoActividades)
	case TableAsistencias:
		return encodeRows(s.ActividadAsistencias)
	case TableDetalle:
		return encodeRows(s.ActividadAsistenciaDetalle)
	}
	return nil
}

type rowEncoder interface {
	Row() Row
}

func encodeRows[T rowEncoder](items []T) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Row())
	}
	return rows
}
