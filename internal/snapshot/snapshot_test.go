package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cooperativa/registro/internal/changelog"
	"github.com/cooperativa/registro/internal/repository"
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/seed"
	"github.com/cooperativa/registro/internal/store"
	"github.com/cooperativa/registro/internal/store/storetest"
	"github.com/cooperativa/registro/internal/workbook"
)

type fixture struct {
	store   *storetest.Faulty
	changes *changelog.Log
	repos   *repository.Repositories
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(storetest.Open(t))
	changes := changelog.New(s, log.New(io.Discard, "", 0))
	return &fixture{
		store:   s,
		changes: changes,
		repos:   repository.New(s, changes),
		engine:  New(s, changes, log.New(io.Discard, "", 0)),
	}
}

// populate fills every table through the repositories.
func (f *fixture) populate(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("populate failed: %v", err)
		}
	}

	_, err := f.repos.Ropa.Create(ctx, schema.ClothingItem{Cantidad: 10, Tipo: schema.ClothingInvierno, Talle: "M"})
	must(err)
	_, err = f.repos.Ropa.Create(ctx, schema.ClothingItem{Cantidad: 3, Tipo: schema.ClothingVerano, Talle: "XL"})
	must(err)
	_, err = f.repos.Jovenes.Create(ctx, schema.Person{Nombre: "Lucía", Apellido: "Paz"})
	must(err)
	ana, err := f.repos.Alumnos.Create(ctx, schema.Person{Nombre: "Ana", Apellido: "Sosa"})
	must(err)
	beto, err := f.repos.Alumnos.Create(ctx, schema.Person{Nombre: "Beto", Apellido: "Ríos"})
	must(err)
	_, err = f.repos.Familias.Create(ctx, schema.Family{Apellido: "Gómez", Miembros: 5})
	must(err)
	_, err = f.repos.Donaciones.Create(ctx, schema.Donation{Tipo: "Alimentos", Cantidad: 20})
	must(err)

	act, err := f.repos.Actividades.Create(ctx, "Guitarra", []schema.ScheduleEntry{
		{Dia: "Miércoles", HoraInicio: "6:00 PM", HoraFin: "19:30"},
	})
	must(err)
	_, err = f.repos.Actividades.Create(ctx, "Ajedrez", nil)
	must(err)
	must(f.repos.Actividades.SetAssignments(ctx, act.ID, []int64{ana.ID, beto.ID}))

	session, err := f.repos.Actividades.CreateSession(ctx, act.ID, "2024-03-06", "18:00", "19:30")
	must(err)
	_, err = f.repos.Actividades.CreateSession(ctx, act.ID, "2024-03-13", "", "")
	must(err)
	must(f.repos.Actividades.SaveAttendanceDetail(ctx, session.ID, []repository.DetailEntry{
		{AlumnoID: ana.ID, Estado: schema.StatePresente},
		{AlumnoID: beto.ID, Estado: schema.StateAusente},
	}))
	_, err = f.repos.Actividades.SetSessionHeld(ctx, session.ID, true)
	must(err)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	snap, err := f.engine.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	for _, table := range schema.Tables() {
		if snap.Count(table) == 0 {
			t.Errorf("Export() has no rows for %s", table)
		}
	}
	if snap.Total() != 2+1+2+1+1+2+2+2+2 {
		t.Errorf("Export().Total() = %d", snap.Total())
	}

	// ordered by id, not by nombre
	if snap.Actividades[0].Nombre != "Guitarra" {
		t.Errorf("first activity = %q, want Guitarra", snap.Actividades[0].Nombre)
	}
	wantHorarios := []schema.ScheduleEntry{{Dia: schema.Miercoles, HoraInicio: "18:00", HoraFin: "19:30"}}
	if diff := cmp.Diff(wantHorarios, snap.Actividades[0].Horarios); diff != "" {
		t.Errorf("horarios mismatch (-want +got):\n%s", diff)
	}
	for _, a := range snap.Actividades {
		if !a.CreatedAt.IsZero() || !a.UpdatedAt.IsZero() {
			t.Errorf("activity %d kept timestamps", a.ID)
		}
	}
	for _, s := range snap.ActividadAsistencias {
		if !s.CreatedAt.IsZero() {
			t.Errorf("session %d kept timestamps", s.ID)
		}
	}
}

func TestExportFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(schema.TableDetalle, storetest.OpList, errors.New("connection reset"))

	_, err := f.engine.Export(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Export() error = %v, want ErrUnavailable", err)
	}
}

func TestImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	src.populate(t)

	want, err := src.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	dst := newFixture(t)
	result, err := dst.engine.Import(ctx, want)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if result.Total() != want.Total() || result.Dropped() != 0 {
		t.Errorf("Import() total=%d dropped=%d, want %d and 0", result.Total(), result.Dropped(), want.Total())
	}

	got, err := dst.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Importing again over the same data is idempotent.
	if _, err := dst.engine.Import(ctx, got); err != nil {
		t.Fatalf("second Import() failed: %v", err)
	}
	again, err := dst.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("repeated import mismatch (-want +got):\n%s", diff)
	}
}

func TestImportReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.populate(t)

	result, err := f.engine.Import(ctx, &schema.Snapshot{
		Ropa: []schema.ClothingItem{{Cantidad: 10, Tipo: "Verano", Talle: "M"}},
	})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if snap.Total() != 1 || len(snap.Ropa) != 1 {
		t.Fatalf("after import Total() = %d, want exactly one ropa row", snap.Total())
	}
	if snap.Ropa[0].Tipo != schema.ClothingVerano || snap.Ropa[0].ID <= 0 {
		t.Errorf("imported row = %+v", snap.Ropa[0])
	}

	if len(result.Tables) != len(schema.Tables()) {
		t.Errorf("Result has %d tables, want %d", len(result.Tables), len(schema.Tables()))
	}
	for i, table := range schema.Tables() {
		if result.Tables[i].Table != table {
			t.Errorf("Result.Tables[%d] = %s, want %s", i, result.Tables[i].Table, table)
		}
	}
}

func TestImportNil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.populate(t)

	if _, err := f.engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import(nil) failed: %v", err)
	}
	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if snap.Total() != 0 {
		t.Errorf("after Import(nil) Total() = %d, want 0", snap.Total())
	}
}

func TestImportDropsInvalidActivityRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.engine.Import(ctx, &schema.Snapshot{
		Alumnos: []schema.Person{{ID: 1, Nombre: "Ana"}, {ID: 2, Nombre: "Beto"}},
		Actividades: []schema.Activity{
			{ID: 1, Nombre: " Teatro ", Horarios: []schema.ScheduleEntry{
				{Dia: "Sábado", HoraInicio: "10:00", HoraFin: "12:00"},
				{Dia: "feriado", HoraInicio: "10:00", HoraFin: "12:00"},
			}},
			{ID: 2, Nombre: "   "},
		},
		AlumnoActividades: []schema.ActivityAssignment{
			{ID: 1, ActividadID: 1, AlumnoID: 1},
			{ID: 2, ActividadID: 1},
			{ID: 3, ActividadID: 1, AlumnoID: 2},
		},
		ActividadAsistencias: []schema.AttendanceSession{
			{ID: 1, ActividadID: 1, Fecha: "04-05-2024", HoraInicio: "9:00 AM", HoraFin: "25:00"},
			{ID: 2, ActividadID: 1, Fecha: "2024/05/11"},
			{ID: 3, Fecha: "2024-05-18"},
		},
		ActividadAsistenciaDetalle: []schema.AttendanceDetail{
			{ID: 1, AsistenciaID: 1, AlumnoID: 1, Estado: "presente"},
			{ID: 2, AsistenciaID: 1, AlumnoID: 2, Estado: "tarde"},
			{ID: 3, AsistenciaID: 1, AlumnoID: 1, Estado: "ausente"},
			{ID: 4, AlumnoID: 1},
		},
	})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	wantDropped := map[schema.Table]int{
		schema.TableActividades:  1,
		schema.TableAsignaciones: 1,
		schema.TableAsistencias:  2,
		schema.TableDetalle:      2,
	}
	for table, want := range wantDropped {
		tr, ok := result.Table(table)
		if !ok {
			t.Fatalf("Result has no entry for %s", table)
		}
		if tr.Dropped != want {
			t.Errorf("%s dropped = %d, want %d", table, tr.Dropped, want)
		}
	}

	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	want := &schema.Snapshot{
		Ropa:       []schema.ClothingItem{},
		Jovenes:    []schema.Person{},
		Alumnos:    []schema.Person{{ID: 1, Nombre: "Ana"}, {ID: 2, Nombre: "Beto"}},
		Familias:   []schema.Family{},
		Donaciones: []schema.Donation{},
		Actividades: []schema.Activity{{ID: 1, Nombre: "Teatro", Horarios: []schema.ScheduleEntry{
			{Dia: schema.Sabado, HoraInicio: "10:00", HoraFin: "12:00"},
		}}},
		AlumnoActividades: []schema.ActivityAssignment{
			{ID: 1, ActividadID: 1, AlumnoID: 1},
			{ID: 3, ActividadID: 1, AlumnoID: 2},
		},
		ActividadAsistencias: []schema.AttendanceSession{
			{ID: 1, ActividadID: 1, Fecha: "2024-05-04", HoraInicio: "09:00"},
		},
		ActividadAsistenciaDetalle: []schema.AttendanceDetail{
			{ID: 2, AsistenciaID: 1, AlumnoID: 2, Estado: schema.StateAusente},
			{ID: 3, AsistenciaID: 1, AlumnoID: 1, Estado: schema.StateAusente},
		},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("imported data mismatch (-want +got):\n%s", diff)
	}
}

func TestImportLogsBulkSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.engine.Import(ctx, &schema.Snapshot{
		Donaciones: []schema.Donation{{Tipo: "Ropa", Cantidad: 2}, {Tipo: "Útiles", Cantidad: 7}},
	}); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	entries := f.changes.ListRecent(ctx, 0)
	if len(entries) != len(schema.Tables()) {
		t.Fatalf("got %d change entries, want %d", len(entries), len(schema.Tables()))
	}
	for _, e := range entries {
		if e.Accion != schema.ActionUpdate || e.RegistroID != 0 {
			t.Errorf("entry %s %s #%d, want UPDATE without record", e.Tabla, e.Accion, e.RegistroID)
		}
		var payload struct {
			Accion string `json:"accion"`
			Total  int    `json:"total"`
		}
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		wantTotal := 0
		if e.Tabla == schema.TableDonaciones {
			wantTotal = 2
		}
		if payload.Accion != "bulk-sync" || payload.Total != wantTotal {
			t.Errorf("%s payload = %+v, want bulk-sync total %d", e.Tabla, payload, wantTotal)
		}
	}
}

func TestImportAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.populate(t)
	f.store.Fail(schema.TableFamilias, storetest.OpUpsert, errors.New("disk full"))

	result, err := f.engine.Import(ctx, &schema.Snapshot{
		Ropa:     []schema.ClothingItem{{Cantidad: 1, Tipo: schema.ClothingVerano, Talle: "S"}},
		Familias: []schema.Family{{Apellido: "Nuevo", Miembros: 2}},
	})
	if err == nil {
		t.Fatal("Import() succeeded, want error")
	}
	if !strings.HasPrefix(err.Error(), "No se pudo importar datos en familias: ") {
		t.Errorf("Import() error = %q", err)
	}
	if len(result.Tables) != 3 {
		t.Errorf("Result covers %d tables, want 3 completed before the failure", len(result.Tables))
	}

	// familias was cleared before the failing upsert; donaciones untouched.
	f.store.Heal(schema.TableFamilias, storetest.OpUpsert)
	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if len(snap.Familias) != 0 || len(snap.Donaciones) != 1 || len(snap.Ropa) != 1 {
		t.Errorf("partial state familias=%d donaciones=%d ropa=%d", len(snap.Familias), len(snap.Donaciones), len(snap.Ropa))
	}
}

func TestKeepLast(t *testing.T) {
	items := []string{"a1", "b1", "a2", "c1", "b2"}
	kept, dropped := keepLast(items, func(s string) byte { return s[0] })
	if diff := cmp.Diff([]string{"a2", "c1", "b2"}, kept); diff != "" {
		t.Errorf("keepLast() mismatch (-want +got):\n%s", diff)
	}
	if dropped != 2 {
		t.Errorf("keepLast() dropped = %d, want 2", dropped)
	}
}

func TestDumpFiles(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	want, err := f.engine.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	for _, name := range []string{"dump.json", "dump.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := WriteFile(path, want); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temp file left behind")
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("dump mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadJSONPartial(t *testing.T) {
	snap, err := ReadJSON(strings.NewReader(`{"ropa":[{"id":4,"cantidad":2,"tipo":"verano","talle":"S"}]}`))
	if err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if snap.Total() != 1 || snap.Ropa[0].ID != 4 {
		t.Errorf("ReadJSON() = %+v", snap)
	}
	if snap.Actividades != nil {
		t.Errorf("missing table decoded as %v, want nil", snap.Actividades)
	}
}

func TestBackup(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	dir := t.TempDir()
	path, err := f.engine.Backup(context.Background(), dir)
	if err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "registro.backup.") {
		t.Errorf("Backup() path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	snap, err := ReadJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if snap.Total() == 0 {
		t.Error("backup is empty")
	}
}

func TestWorkbookRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.repos.Ropa.Create(ctx, schema.ClothingItem{Cantidad: 10, Tipo: schema.ClothingInvierno, Talle: "M"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	data, err := workbook.Build(snap)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	parsed, err := workbook.Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if diff := cmp.Diff([]schema.ClothingItem{item}, parsed.Ropa); diff != "" {
		t.Fatalf("parsed ropa mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.engine.Import(ctx, parsed); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	got, err := f.repos.Ropa.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if diff := cmp.Diff([]schema.ClothingItem{item}, got); diff != "" {
		t.Errorf("ropa after import mismatch (-want +got):\n%s", diff)
	}
}

// Rows the repositories accept must all come back from a workbook.
func TestRepositoryRowsSurviveWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.repos.Jovenes.Create(ctx, schema.Person{Nombre: "Ana"}); !errors.Is(err, repository.ErrInvalid) {
		t.Errorf("Create() of a joven without apellido error = %v, want ErrInvalid", err)
	}
	if _, err := f.repos.Ropa.Create(ctx, schema.ClothingItem{Cantidad: 2, Tipo: schema.ClothingVerano}); !errors.Is(err, repository.ErrInvalid) {
		t.Errorf("Create() of ropa without talle error = %v, want ErrInvalid", err)
	}

	f.populate(t)
	snap, err := f.engine.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	data, err := workbook.Build(snap)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	parsed, err := workbook.Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	for _, table := range schema.Tables() {
		if got, want := parsed.Count(table), snap.Count(table); got != want {
			t.Errorf("%s: parsed %d rows, exported %d", table, got, want)
		}
	}
}

func TestImportGeneratedRoundTrip(t *testing.T) {
	for _, size := range []int{1, 12, 40} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			want := seed.Generate(rand.New(rand.NewSource(int64(size))), size)

			result, err := f.engine.Import(ctx, want)
			if err != nil {
				t.Fatalf("Import() failed: %v", err)
			}
			if result.Dropped() != 0 {
				t.Errorf("Import() dropped %d generated rows", result.Dropped())
			}

			got, err := f.engine.Export(ctx)
			if err != nil {
				t.Fatalf("Export() failed: %v", err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
