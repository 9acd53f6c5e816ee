package repository

import (
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// Repositories bundles every entity repository over one store and one
// change recorder.
type Repositories struct {
	Jovenes     *People
	Alumnos     *People
	Familias    *Families
	Ropa        *Clothing
	Donaciones  *Donations
	Actividades *Activities
}

// New builds every repository.
func New(s store.Store, log ChangeRecorder) *Repositories {
	return &Repositories{
		Jovenes:     NewPeople(s, log, schema.TableJovenes),
		Alumnos:     NewPeople(s, log, schema.TableAlumnos),
		Familias:    NewFamilies(s, log),
		Ropa:        NewClothing(s, log),
		Donaciones:  NewDonations(s, log),
		Actividades: NewActivities(s, log),
	}
}
