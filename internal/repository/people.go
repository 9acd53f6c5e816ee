package repository

import (
	"context"
	"strings"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// People manages jovenes or alumnos. The two tables share one shape.
type People struct {
	t *table[schema.Person]

	// set for alumnos only
	assignments *table[schema.ActivityAssignment]
	details     *table[schema.AttendanceDetail]
}

// NewPeople returns the repository of a person table. It panics if table is
// not jovenes or alumnos.
func NewPeople(s store.Store, log ChangeRecorder, table schema.Table) *People {
	p := &People{t: newTable(s, log, table, schema.PersonFromRow)}
	switch table {
	case schema.TableJovenes:
	case schema.TableAlumnos:
		p.assignments = newTable(s, log, schema.TableAsignaciones, schema.ActivityAssignmentFromRow)
		p.details = newTable(s, log, schema.TableDetalle, schema.AttendanceDetailFromRow)
	default:
		panic("repository: not a person table: " + string(table))
	}
	return p
}

// Table returns the table this repository manages.
func (p *People) Table() schema.Table {
	return p.t.name
}

// FetchAll returns every person ordered by id.
func (p *People) FetchAll(ctx context.Context) ([]schema.Person, error) {
	return p.t.list(ctx)
}

// Get returns one person.
func (p *People) Get(ctx context.Context, id int64) (schema.Person, error) {
	return p.t.get(ctx, id)
}

// Create inserts a person. Names are trimmed and both are required.
func (p *People) Create(ctx context.Context, person schema.Person) (schema.Person, error) {
	row, err := p.row(verbInsert, person)
	if err != nil {
		return schema.Person{}, err
	}
	return p.t.create(ctx, row)
}

// Update replaces the names of an existing person.
func (p *People) Update(ctx context.Context, id int64, person schema.Person) (schema.Person, error) {
	row, err := p.row(verbUpdate, person)
	if err != nil {
		return schema.Person{}, err
	}
	return p.t.update(ctx, id, row)
}

// Delete removes a person and returns it, or nil if it did not exist.
// Deleting a student also removes its activity assignments and its
// attendance details.
func (p *People) Delete(ctx context.Context, id int64) (*schema.Person, error) {
	if p.assignments == nil {
		return p.t.remove(ctx, id, nil)
	}
	return p.t.remove(ctx, id, func(ctx context.Context) error {
		if err := p.assignments.deleteWhere(ctx, store.Eq("alumno_id", id)); err != nil {
			return err
		}
		return p.details.deleteWhere(ctx, store.Eq("alumno_id", id))
	})
}

func (p *People) row(verb string, person schema.Person) (schema.Row, error) {
	person.Nombre = strings.TrimSpace(person.Nombre)
	person.Apellido = strings.TrimSpace(person.Apellido)
	if person.Nombre == "" {
		return nil, invalid(verb, p.t.name, "el nombre es obligatorio")
	}
	if person.Apellido == "" {
		return nil, invalid(verb, p.t.name, "el apellido es obligatorio")
	}
	person.ID = 0
	return person.Row(), nil
}

// Families manages familias.
type Families struct {
	t *table[schema.Family]
}

// NewFamilies returns the familias repository.
func NewFamilies(s store.Store, log ChangeRecorder) *Families {
	return &Families{t: newTable(s, log, schema.TableFamilias, schema.FamilyFromRow)}
}

// FetchAll returns every family ordered by id.
func (f *Families) FetchAll(ctx context.Context) ([]schema.Family, error) {
	return f.t.list(ctx)
}

// Create inserts a family. miembros must be positive.
func (f *Families) Create(ctx context.Context, family schema.Family) (schema.Family, error) {
	row, err := f.row(verbInsert, family)
	if err != nil {
		return schema.Family{}, err
	}
	return f.t.create(ctx, row)
}

// Update replaces an existing family.
func (f *Families) Update(ctx context.Context, id int64, family schema.Family) (schema.Family, error) {
	row, err := f.row(verbUpdate, family)
	if err != nil {
		return schema.Family{}, err
	}
	return f.t.update(ctx, id, row)
}

// Delete removes a family and returns it, or nil if it did not exist.
func (f *Families) Delete(ctx context.Context, id int64) (*schema.Family, error) {
	return f.t.remove(ctx, id, nil)
}

func (f *Families) row(verb string, family schema.Family) (schema.Row, error) {
	family.Apellido = strings.TrimSpace(family.Apellido)
	if family.Apellido == "" {
		return nil, invalid(verb, schema.TableFamilias, "el apellido es obligatorio")
	}
	if family.Miembros <= 0 {
		return nil, invalid(verb, schema.TableFamilias, "miembros debe ser mayor que cero")
	}
	family.ID = 0
	return family.Row(), nil
}
