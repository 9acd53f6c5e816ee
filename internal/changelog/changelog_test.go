package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store/storetest"
)

func newTestLog(t *testing.T) (*Log, *storetest.Faulty, *bytes.Buffer) {
	t.Helper()
	faulty := storetest.New(storetest.Open(t))
	var buf bytes.Buffer
	return New(faulty, log.New(&buf, "", 0)), faulty, &buf
}

func TestLogChangeAndListRecent(t *testing.T) {
	ctx := context.Background()
	cl, _, _ := newTestLog(t)

	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 7, map[string]any{"tipo": "invierno"})
	cl.LogChange(ctx, schema.TableAsignaciones, schema.ActionUpdate, 3, nil)
	cl.LogChange(ctx, schema.TableAlumnos, schema.ActionDelete, 0, "gone")

	entries := cl.ListRecent(ctx, 0)
	if len(entries) != 3 {
		t.Fatalf("ListRecent() returned %d entries, want 3", len(entries))
	}

	// newest first
	got := entries[0]
	if got.Tabla != schema.TableAlumnos || got.Accion != schema.ActionDelete {
		t.Errorf("entries[0] = %s %s, want alumnos DELETE", got.Tabla, got.Accion)
	}
	if got.RegistroID != 0 {
		t.Errorf("entries[0].RegistroID = %d, want 0", got.RegistroID)
	}
	if string(got.Payload) != `{"value":"gone"}` {
		t.Errorf("entries[0].Payload = %s, want wrapped scalar", got.Payload)
	}
	if got.CreatedAt.IsZero() {
		t.Error("entries[0].CreatedAt is zero")
	}

	if entries[1].Payload != nil {
		t.Errorf("entries[1].Payload = %s, want nil", entries[1].Payload)
	}

	var payload map[string]string
	if err := json.Unmarshal(entries[2].Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["tipo"] != "invierno" || entries[2].RegistroID != 7 {
		t.Errorf("entries[2] = %+v, want ropa #7 with tipo", entries[2])
	}
}

func TestListRecentLimit(t *testing.T) {
	ctx := context.Background()
	cl, _, _ := newTestLog(t)

	for i := 1; i <= 60; i++ {
		cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, int64(i), nil)
	}

	if got := len(cl.ListRecent(ctx, 0)); got != DefaultLimit {
		t.Errorf("ListRecent(0) returned %d entries, want %d", got, DefaultLimit)
	}
	entries := cl.ListRecent(ctx, 5)
	if len(entries) != 5 {
		t.Fatalf("ListRecent(5) returned %d entries, want 5", len(entries))
	}
	if entries[0].RegistroID != 60 {
		t.Errorf("ListRecent(5)[0].RegistroID = %d, want 60", entries[0].RegistroID)
	}
}

func TestListSince(t *testing.T) {
	ctx := context.Background()
	cl, _, _ := newTestLog(t)

	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 1, nil)
	if got := len(cl.ListSince(ctx, time.Now().Add(-time.Hour), 0)); got != 1 {
		t.Errorf("ListSince(past) returned %d entries, want 1", got)
	}
	if got := len(cl.ListSince(ctx, time.Now().Add(time.Hour), 0)); got != 0 {
		t.Errorf("ListSince(future) returned %d entries, want 0", got)
	}
}

func TestWriteFailureWarnsOnce(t *testing.T) {
	ctx := context.Background()
	cl, faulty, buf := newTestLog(t)
	faulty.Fail(schema.ChangeLogTable, storetest.OpInsert, errors.New("no such table"))

	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 1, nil)
	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 2, nil)

	if n := strings.Count(buf.String(), "WARNING"); n != 1 {
		t.Fatalf("got %d warnings, want 1:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "registro_cambios") {
		t.Errorf("warning does not name the table: %s", buf.String())
	}

	// A fresh instance warns again.
	var buf2 bytes.Buffer
	fresh := New(faulty, log.New(&buf2, "", 0))
	fresh.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 3, nil)
	if n := strings.Count(buf2.String(), "WARNING"); n != 1 {
		t.Errorf("fresh instance got %d warnings, want 1", n)
	}
}

func TestReadFailureReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	cl, faulty, buf := newTestLog(t)
	faulty.Fail(schema.ChangeLogTable, storetest.OpSelect, errors.New("offline"))

	for range 3 {
		entries := cl.ListRecent(ctx, 10)
		if entries == nil || len(entries) != 0 {
			t.Fatalf("ListRecent() = %v, want empty slice", entries)
		}
	}
	if n := strings.Count(buf.String(), "No se pudo obtener el historial de cambios"); n != 1 {
		t.Errorf("got %d read warnings, want 1", n)
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	cl, _, _ := newTestLog(t)

	fired := make(chan struct{}, 4)
	unsubscribe := cl.Subscribe(func() { fired <- struct{}{} })
	defer unsubscribe()

	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 1, nil)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe() callback not invoked")
	}
}

func TestWatch(t *testing.T) {
	cl, _, buf := newTestLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// written before Watch starts, so skipped
	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 1, nil)

	var mu sync.Mutex
	var seen []int64
	batches := make(chan struct{}, 16)
	done := make(chan error, 1)
	started := make(chan struct{})

	go func() {
		id, _ := cl.LatestID(ctx)
		close(started)
		done <- cl.Watch(ctx, WatchConfig{PollInterval: 10 * time.Millisecond, AfterID: id}, func(entries []schema.ChangeLogEntry) error {
			mu.Lock()
			for _, e := range entries {
				seen = append(seen, e.RegistroID)
			}
			mu.Unlock()
			batches <- struct{}{}
			return errors.New("callback failed")
		})
	}()
	<-started

	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 2, nil)
	cl.LogChange(ctx, schema.TableRopa, schema.ActionInsert, 3, nil)

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-batches:
		case <-deadline:
			t.Fatalf("Watch() delivered %d entries, want 2", n)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() returned %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Errorf("Watch() delivered %v, want [2 3]", seen)
	}
	if !strings.Contains(buf.String(), "callback error") {
		t.Errorf("callback error not logged: %s", buf.String())
	}
}

func TestLatestIDEmpty(t *testing.T) {
	cl, _, _ := newTestLog(t)
	id, err := cl.LatestID(context.Background())
	if err != nil {
		t.Fatalf("LatestID() failed: %v", err)
	}
	if id != 0 {
		t.Errorf("LatestID() = %d, want 0", id)
	}
}
