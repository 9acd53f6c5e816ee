package seed

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cooperativa/registro/internal/schema"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewSource(42)), 25)
	b := Generate(rand.New(rand.NewSource(42)), 25)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different data (-a +b):\n%s", diff)
	}
}

func TestGenerateShape(t *testing.T) {
	snap := Generate(rand.New(rand.NewSource(7)), 20)

	counts := map[schema.Table]int{
		schema.TableRopa:        20,
		schema.TableJovenes:     20,
		schema.TableAlumnos:     20,
		schema.TableFamilias:    11,
		schema.TableDonaciones:  11,
		schema.TableActividades: 4,
		schema.TableAsistencias: 12,
	}
	for table, want := range counts {
		if got := snap.Count(table); got != want {
			t.Errorf("Count(%s) = %d, want %d", table, got, want)
		}
	}

	seen := make(map[[2]int64]bool)
	for _, a := range snap.AlumnoActividades {
		key := [2]int64{a.ActividadID, a.AlumnoID}
		if seen[key] {
			t.Errorf("duplicate assignment %v", key)
		}
		seen[key] = true
	}

	held := make(map[int64]bool)
	for _, s := range snap.ActividadAsistencias {
		if _, ok := schema.NormaliseDate(schema.TextCell(s.Fecha)); !ok {
			t.Errorf("session %d has invalid fecha %q", s.ID, s.Fecha)
		}
		held[s.ID] = s.SeDicto
	}
	for _, d := range snap.ActividadAsistenciaDetalle {
		if !held[d.AsistenciaID] {
			t.Errorf("detail %d belongs to a session that was not held", d.ID)
		}
	}

	for _, a := range snap.Actividades {
		if diff := cmp.Diff(a.Horarios, schema.SanitiseHorarios(a.Horarios)); diff != "" {
			t.Errorf("activity %d schedule is not canonical (-got +sanitised):\n%s", a.ID, diff)
		}
	}
}

func TestGenerateMinimumSize(t *testing.T) {
	snap := Generate(rand.New(rand.NewSource(1)), 0)
	if len(snap.Alumnos) != 1 || len(snap.Actividades) != 1 {
		t.Errorf("Generate(0) = %d alumnos, %d actividades; want 1 and 1", len(snap.Alumnos), len(snap.Actividades))
	}
}
