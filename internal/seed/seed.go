// Package seed generates realistic sample datasets for demos and tests.
//
// Generate is deterministic for a given rand source. Every row carries an
// explicit id and passes import validation, so a generated snapshot
// survives an import/export round trip unchanged.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cooperativa/registro/internal/schema"
)

var (
	nombres   = []string{"Ana", "Beto", "Carla", "Diego", "Elena", "Facundo", "Gabriela", "Hugo", "Inés", "Julián", "Lucía", "Martín", "Noelia", "Óscar", "Paula", "Rocío", "Santiago", "Tomás", "Valentina", "Ximena"}
	apellidos = []string{"Gómez", "Pérez", "Rodríguez", "Fernández", "López", "Díaz", "Martínez", "Sosa", "Romero", "Álvarez", "Torres", "Ruiz", "Ramírez", "Flores", "Acosta", "Benítez"}
	talles    = []string{"2", "4", "6", "8", "10", "12", "S", "M", "L", "XL"}
	donativos = []string{"Alimentos", "Útiles escolares", "Juguetes", "Calzado", "Frazadas", "Libros", "Artículos de limpieza"}
	talleres  = []string{"Guitarra", "Ajedrez", "Apoyo escolar", "Fútbol", "Teatro", "Huerta", "Dibujo", "Coro"}
	slots     = [][2]string{{"09:00", "10:30"}, {"10:30", "12:00"}, {"14:00", "15:30"}, {"16:00", "17:30"}, {"18:00", "19:30"}}
)

// baseDate is the Monday sessions are scheduled from.
var baseDate = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// Generate builds a dataset with size people in each person table and
// proportionally many rows elsewhere. A size below 1 is treated as 1.
//
// Distribution:
//   - one activity per five students, at least one
//   - each activity has one or two weekly slots on distinct days
//   - about half the students are assigned to each activity
//   - three weekly sessions per activity; held sessions get a detail row
//     for every assigned student
func Generate(rng *rand.Rand, size int) *schema.Snapshot {
	if size < 1 {
		size = 1
	}
	snap := &schema.Snapshot{}

	for i := 1; i <= size; i++ {
		snap.Ropa = append(snap.Ropa, schema.ClothingItem{
			ID:       int64(i),
			Cantidad: int64(1 + rng.Intn(20)),
			Tipo:     pick(rng, []schema.ClothingType{schema.ClothingInvierno, schema.ClothingVerano}),
			Talle:    pick(rng, talles),
		})
		snap.Jovenes = append(snap.Jovenes, person(rng, i))
		snap.Alumnos = append(snap.Alumnos, person(rng, i))
	}

	for i := 1; i <= size/2+1; i++ {
		snap.Familias = append(snap.Familias, schema.Family{
			ID:       int64(i),
			Apellido: pick(rng, apellidos),
			Miembros: int64(1 + rng.Intn(8)),
		})
		snap.Donaciones = append(snap.Donaciones, schema.Donation{
			ID:       int64(i),
			Tipo:     pick(rng, donativos),
			Cantidad: int64(1 + rng.Intn(50)),
		})
	}

	activities := max(1, size/5)
	var assignmentID, sessionID, detailID int64
	for a := 1; a <= activities; a++ {
		act := schema.Activity{
			ID:       int64(a),
			Nombre:   activityName(a),
			Horarios: schedule(rng),
		}
		snap.Actividades = append(snap.Actividades, act)

		var assigned []int64
		for s := 1; s <= size; s++ {
			if rng.Intn(2) == 0 {
				continue
			}
			assignmentID++
			assigned = append(assigned, int64(s))
			snap.AlumnoActividades = append(snap.AlumnoActividades, schema.ActivityAssignment{
				ID: assignmentID, ActividadID: act.ID, AlumnoID: int64(s),
			})
		}

		slot := act.Horarios[0]
		for week := 0; week < 3; week++ {
			sessionID++
			session := schema.AttendanceSession{
				ID:          sessionID,
				ActividadID: act.ID,
				Fecha:       sessionDate(slot.Dia, week),
				HoraInicio:  slot.HoraInicio,
				HoraFin:     slot.HoraFin,
				SeDicto:     rng.Intn(4) != 0,
			}
			snap.ActividadAsistencias = append(snap.ActividadAsistencias, session)
			if !session.SeDicto {
				continue
			}
			for _, alumno := range assigned {
				detailID++
				estado := schema.StatePresente
				if rng.Intn(5) == 0 {
					estado = schema.StateAusente
				}
				snap.ActividadAsistenciaDetalle = append(snap.ActividadAsistenciaDetalle, schema.AttendanceDetail{
					ID: detailID, AsistenciaID: sessionID, AlumnoID: alumno, Estado: estado,
				})
			}
		}
	}

	return snap
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

func person(rng *rand.Rand, id int) schema.Person {
	return schema.Person{ID: int64(id), Nombre: pick(rng, nombres), Apellido: pick(rng, apellidos)}
}

// activityName cycles through the workshop names, numbering repeats.
func activityName(n int) string {
	name := talleres[(n-1)%len(talleres)]
	if round := (n - 1) / len(talleres); round > 0 {
		return fmt.Sprintf("%s %d", name, round+1)
	}
	return name
}

// schedule returns one or two slots on distinct weekdays (Monday to
// Saturday).
func schedule(rng *rand.Rand) []schema.ScheduleEntry {
	days := schema.Weekdays()[:6]
	order := rng.Perm(len(days))
	n := 1 + rng.Intn(2)

	entries := make([]schema.ScheduleEntry, 0, n)
	for _, idx := range order[:n] {
		slot := pick(rng, slots)
		entries = append(entries, schema.ScheduleEntry{Dia: days[idx], HoraInicio: slot[0], HoraFin: slot[1]})
	}
	return entries
}

// sessionDate is the date of day in the given week after baseDate.
func sessionDate(day schema.Weekday, week int) string {
	offset := 0
	for i, d := range schema.Weekdays() {
		if d == day {
			offset = i
		}
	}
	return baseDate.AddDate(0, 0, 7*week+offset).Format(time.DateOnly)
}
