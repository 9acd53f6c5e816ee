package workbook

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/mod/semver"

	"github.com/cooperativa/registro/internal/schema"
)

// Parse reads a workbook built by Build, or edited by hand, into a snapshot.
// Missing sheets yield empty tables and rows failing a required field are
// dropped.
func Parse(data []byte) (*schema.Snapshot, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	if err := checkVersion(f); err != nil {
		return nil, err
	}

	sheets := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheets[sheetKey(name)] = name
	}

	var snap schema.Snapshot
	for _, table := range schema.Tables() {
		name, ok := sheets[sheetKey(schema.MustDescribe(table).Sheet)]
		if !ok {
			continue
		}
		records, err := readSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		for _, rec := range records {
			decode(table, rec, &snap)
		}
	}
	return &snap, nil
}

func checkVersion(f *excelize.File) error {
	props, err := f.GetDocProps()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	v := strings.TrimSpace(props.Version)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return nil
	}
	if semver.Major(v) != semver.Major(Version) {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, props.Version)
	}
	return nil
}

func sheetKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// record is one data row keyed by lower-cased header.
type record map[string]schema.RawCell

func (r record) cell(col string) schema.RawCell {
	if c, ok := r[col]; ok {
		return c
	}
	return schema.NullCell{}
}

func readSheet(f *excelize.File, sheet string) ([]record, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	records := make([]record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := make(record, len(headers))
		blank := true
		for j, h := range headers {
			if h == "" || j >= len(row) {
				continue
			}
			c, err := readCell(f, sheet, j+1, i+2, row[j])
			if err != nil {
				return nil, err
			}
			if _, null := c.(schema.NullCell); !null {
				blank = false
			}
			rec[h] = c
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}

// readCell turns a raw cell value into a RawCell using the cell type
// recorded in the sheet.
func readCell(f *excelize.File, sheet string, col, row int, raw string) (schema.RawCell, error) {
	if strings.TrimSpace(raw) == "" {
		return schema.NullCell{}, nil
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return schema.BoolCell(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return schema.NumberCell(n), nil
		}
	case excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return schema.NumberCell(n), nil
		}
		// ISO 8601 date cells keep only the date part.
		date, _, _ := strings.Cut(raw, "T")
		return schema.TextCell(date), nil
	}
	return schema.TextCell(raw), nil
}

// fields reads typed values out of a record. The first failing required
// field clears ok and the row is dropped.
type fields struct {
	rec record
	ok  bool
}

func newFields(rec record) *fields {
	return &fields{rec: rec, ok: true}
}

// id is optional. A missing or invalid id reads as 0 and the row is
// imported as new.
func (f *fields) id() int64 {
	id, ok := schema.ToID(f.rec.cell("id"))
	if !ok {
		return 0
	}
	return id
}

func (f *fields) ref(col string) int64 {
	id, ok := schema.ToID(f.rec.cell(col))
	f.ok = f.ok && ok
	return id
}

func (f *fields) text(col string) string {
	s, ok := schema.ToText(f.rec.cell(col))
	f.ok = f.ok && ok
	return s
}

func (f *fields) optText(col string) string {
	s, _ := schema.ToText(f.rec.cell(col))
	return s
}

func (f *fields) count(col string) int64 {
	n, ok := schema.ToCount(f.rec.cell(col))
	f.ok = f.ok && ok
	return n
}

func (f *fields) date(col string) string {
	c := f.rec.cell(col)
	if n, isNum := c.(schema.NumberCell); isNum {
		t, err := excelize.ExcelDateToTime(float64(n), false)
		if err != nil {
			f.ok = false
			return ""
		}
		return t.Format("2006-01-02")
	}
	s, ok := schema.NormaliseDate(c)
	f.ok = f.ok && ok
	return s
}

// clock returns HH:MM or "" for an absent or invalid time.
func (f *fields) clock(col string) string {
	c := f.rec.cell(col)
	if n, isNum := c.(schema.NumberCell); isNum {
		// Excel stores a time of day as the fraction of a day.
		day := float64(n)
		if day < 0 {
			return ""
		}
		minutes := int(math.Round((day-math.Floor(day))*24*60)) % (24 * 60)
		return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
	}
	s, _ := schema.NormaliseTime(c)
	return s
}

func (f *fields) boolean(col string) bool {
	b, _ := schema.ToBoolean(f.rec.cell(col))
	return b
}

func decode(table schema.Table, rec record, snap *schema.Snapshot) {
	f := newFields(rec)

	switch table {
	case schema.TableRopa:
		item := schema.ClothingItem{
			ID:       f.id(),
			Cantidad: f.count("cantidad"),
			Tipo:     schema.NormaliseClothingType(f.optText("tipo")),
			Talle:    f.text("talle"),
		}
		if f.ok {
			snap.Ropa = append(snap.Ropa, item)
		}
	case schema.TableJovenes, schema.TableAlumnos:
		p := schema.Person{ID: f.id(), Nombre: f.text("nombre"), Apellido: f.text("apellido")}
		if !f.ok {
			return
		}
		if table == schema.TableJovenes {
			snap.Jovenes = append(snap.Jovenes, p)
		} else {
			snap.Alumnos = append(snap.Alumnos, p)
		}
	case schema.TableFamilias:
		fam := schema.Family{ID: f.id(), Apellido: f.text("apellido"), Miembros: f.count("miembros")}
		if f.ok {
			snap.Familias = append(snap.Familias, fam)
		}
	case schema.TableDonaciones:
		d := schema.Donation{ID: f.id(), Tipo: f.text("tipo"), Cantidad: f.count("cantidad")}
		if f.ok {
			snap.Donaciones = append(snap.Donaciones, d)
		}
	case schema.TableActividades:
		a := schema.Activity{
			ID:       f.id(),
			Nombre:   f.text("nombre"),
			Horarios: schema.ParseHorarios([]byte(f.optText("horarios"))),
		}
		if f.ok {
			snap.Actividades = append(snap.Actividades, a)
		}
	case schema.TableAsignaciones:
		a := schema.ActivityAssignment{ID: f.id(), ActividadID: f.ref("actividad_id"), AlumnoID: f.ref("alumno_id")}
		if f.ok {
			snap.AlumnoActividades = append(snap.AlumnoActividades, a)
		}
	case schema.TableAsistencias:
		s := schema.AttendanceSession{
			ID:          f.id(),
			ActividadID: f.ref("actividad_id"),
			Fecha:       f.date("fecha"),
			HoraInicio:  f.clock("hora_inicio"),
			HoraFin:     f.clock("hora_fin"),
			SeDicto:     f.boolean("se_dicto"),
		}
		if f.ok {
			snap.ActividadAsistencias = append(snap.ActividadAsistencias, s)
		}
	case schema.TableDetalle:
		d := schema.AttendanceDetail{
			ID:           f.id(),
			AsistenciaID: f.ref("asistencia_id"),
			AlumnoID:     f.ref("alumno_id"),
			Estado:       schema.NormaliseAttendanceState(f.optText("estado")),
		}
		if f.ok {
			snap.ActividadAsistenciaDetalle = append(snap.ActividadAsistenciaDetalle, d)
		}
	}
}
