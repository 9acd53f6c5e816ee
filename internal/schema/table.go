package schema

import "fmt"

// Table identifies a store table. The values double as change-feed channel
// names and must stay stable.
type Table string

const (
	TableRopa         Table = "ropa"
	TableJovenes      Table = "jovenes"
	TableAlumnos      Table = "alumnos"
	TableFamilias     Table = "familias"
	TableDonaciones   Table = "donaciones"
	TableActividades  Table = "actividades"
	TableAsignaciones Table = "alumno_actividades"
	TableAsistencias  Table = "actividad_asistencias"
	TableDetalle      Table = "actividad_asistencia_detalle"

	// ChangeLogTable is the append-only audit table. It is not part of a
	// snapshot.
	ChangeLogTable Table = "registro_cambios"
)

// Action is the kind of mutation recorded in the change log.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ColumnKind is the storage kind of a column.
type ColumnKind int

const (
	KindInt ColumnKind = iota
	KindText
	KindBool
	KindJSON
	KindTime
)

// String returns the kind name.
func (k ColumnKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column describes a single column of a table.
type Column struct {
	Name string
	Kind ColumnKind

	// Required columns must be present for a row to be accepted from a
	// workbook or an import.
	Required bool

	// References is the table a foreign-key column points at. Empty for
	// plain columns. The store does not enforce it.
	References Table

	// Managed columns (timestamps) are written by the store and never
	// appear in workbooks.
	Managed bool

	// Default is the SQL default expression, if any.
	Default string
}

// Descriptor is the per-table schema used by the store, the repository and
// the workbook codec.
type Descriptor struct {
	Table Table

	// Label is the Spanish noun used in error messages
	// ("No se pudo insertar <label>").
	Label string

	// Sheet is the workbook sheet name. Empty for tables that are not
	// exported.
	Sheet string

	// Columns in workbook order. The first column is always "id".
	Columns []Column

	// Unique is an optional composite unique key.
	Unique []string
}

var (
	idColumn        = Column{Name: "id", Kind: KindInt}
	createdAtColumn = Column{Name: "created_at", Kind: KindTime, Managed: true}
	updatedAtColumn = Column{Name: "updated_at", Kind: KindTime, Managed: true}
)

var descriptors = map[Table]*Descriptor{
	TableRopa: {
		Table: TableRopa,
		Label: "ropa",
		Sheet: "Ropa",
		Columns: []Column{
			idColumn,
			{Name: "cantidad", Kind: KindInt, Required: true},
			{Name: "tipo", Kind: KindText},
			{Name: "talle", Kind: KindText, Required: true},
		},
	},
	TableJovenes: {
		Table: TableJovenes,
		Label: "joven",
		Sheet: "Jovenes",
		Columns: []Column{
			idColumn,
			{Name: "nombre", Kind: KindText, Required: true},
			{Name: "apellido", Kind: KindText, Required: true},
		},
	},
	TableAlumnos: {
		Table: TableAlumnos,
		Label: "alumno",
		Sheet: "Alumnos",
		Columns: []Column{
			idColumn,
			{Name: "nombre", Kind: KindText, Required: true},
			{Name: "apellido", Kind: KindText, Required: true},
		},
	},
	TableFamilias: {
		Table: TableFamilias,
		Label: "familia",
		Sheet: "Familias",
		Columns: []Column{
			idColumn,
			{Name: "apellido", Kind: KindText, Required: true},
			{Name: "miembros", Kind: KindInt, Required: true},
		},
	},
	TableDonaciones: {
		Table: TableDonaciones,
		Label: "donación",
		Sheet: "Donaciones",
		Columns: []Column{
			idColumn,
			{Name: "tipo", Kind: KindText, Required: true},
			{Name: "cantidad", Kind: KindInt, Required: true},
		},
	},
	TableActividades: {
		Table: TableActividades,
		Label: "actividad",
		Sheet: "Actividades",
		Columns: []Column{
			idColumn,
			{Name: "nombre", Kind: KindText, Required: true},
			{Name: "horarios", Kind: KindJSON, Default: "'[]'"},
			createdAtColumn,
			updatedAtColumn,
		},
	},
	TableAsignaciones: {
		Table: TableAsignaciones,
		Label: "asignación",
		Sheet: "Actividad Alumnos",
		Columns: []Column{
			idColumn,
			{Name: "actividad_id", Kind: KindInt, Required: true, References: TableActividades},
			{Name: "alumno_id", Kind: KindInt, Required: true, References: TableAlumnos},
		},
		Unique: []string{"actividad_id", "alumno_id"},
	},
	TableAsistencias: {
		Table: TableAsistencias,
		Label: "clase",
		Sheet: "Actividad Asistencias",
		Columns: []Column{
			idColumn,
			{Name: "actividad_id", Kind: KindInt, Required: true, References: TableActividades},
			{Name: "fecha", Kind: KindText, Required: true},
			{Name: "hora_inicio", Kind: KindText},
			{Name: "hora_fin", Kind: KindText},
			{Name: "se_dicto", Kind: KindBool, Default: "0"},
			createdAtColumn,
			updatedAtColumn,
		},
	},
	TableDetalle: {
		Table: TableDetalle,
		Label: "asistencia",
		Sheet: "Actividad Asistencia Detalle",
		Columns: []Column{
			idColumn,
			{Name: "asistencia_id", Kind: KindInt, Required: true, References: TableAsistencias},
			{Name: "alumno_id", Kind: KindInt, Required: true, References: TableAlumnos},
			{Name: "estado", Kind: KindText, Required: true},
		},
		Unique: []string{"asistencia_id", "alumno_id"},
	},
	ChangeLogTable: {
		Table: ChangeLogTable,
		Label: "cambio",
		Columns: []Column{
			idColumn,
			{Name: "tabla", Kind: KindText, Required: true},
			{Name: "accion", Kind: KindText, Required: true},
			{Name: "registro_id", Kind: KindInt},
			{Name: "payload", Kind: KindJSON},
			createdAtColumn,
		},
	},
}

// Tables returns the nine data tables in foreign-key order: every table
// comes after the tables it references.
func Tables() []Table {
	return []Table{
		TableRopa,
		TableJovenes,
		TableAlumnos,
		TableFamilias,
		TableDonaciones,
		TableActividades,
		TableAsignaciones,
		TableAsistencias,
		TableDetalle,
	}
}

// SimpleTables returns the five tables without foreign keys.
func SimpleTables() []Table {
	return Tables()[:5]
}

// ActivityTables returns the activity group in foreign-key order.
func ActivityTables() []Table {
	return Tables()[5:]
}

// Describe returns the descriptor of a table, or nil for an unknown name.
func Describe(t Table) *Descriptor {
	return descriptors[t]
}

// MustDescribe is Describe for tables known at compile time.
func MustDescribe(t Table) *Descriptor {
	d := descriptors[t]
	if d == nil {
		panic(fmt.Sprintf("schema: unknown table %q", t))
	}
	return d
}

// ParseTable validates a table name coming from outside the program.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if _, ok := descriptors[t]; !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Valid reports whether t names a known table.
func (t Table) Valid() bool {
	_, ok := descriptors[t]
	return ok
}

// Channel returns the change-feed channel name of the table.
func (t Table) Channel() string {
	return "public:" + string(t)
}

// Column looks up a column by name.
func (d *Descriptor) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// SheetColumns returns the column names written to the workbook.
func (d *Descriptor) SheetColumns() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if !c.Managed {
			names = append(names, c.Name)
		}
	}
	return names
}

// ForeignKeys returns the columns that reference another table.
func (d *Descriptor) ForeignKeys() []Column {
	var fks []Column
	for _, c := range d.Columns {
		if c.References != "" {
			fks = append(fks, c)
		}
	}
	return fks
}

// HasTimestamps reports whether the store maintains created_at/updated_at.
func (d *Descriptor) HasTimestamps() bool {
	_, ok := d.Column("updated_at")
	return ok
}
