package ingest

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/store"
)

var sampleRecords = []models.IncidentRecord{
	{Date: "15/03/2023", Time: "08:00:00", UF: "PE", Municipality: "RECIFE", AccidentType: "Colisão traseira", Weather: "Chuva"},
	{Date: "16/03/2023", Time: "10:00:00", UF: "SP", Municipality: "CAMPINAS", AccidentType: "Colisão frontal", Weather: "Nublado"},
}

func TestLoadFile(t *testing.T) {
	data, err := json.Marshal(sampleRecords)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "datatran.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	records, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].Municipality != "RECIFE" || records[0].Weather != "Chuva" {
		t.Fatalf("record = %+v", records[0])
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("LoadFile accepted missing path")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted malformed JSON")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleRecords)
	}))
	defer srv.Close()

	records, err := NewFetcher(srv.Client()).Fetch(srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(sampleRecords)
	}))
	defer srv.Close()

	records, err := NewFetcher(srv.Client()).Fetch(srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Fatalf("calls = %d, want at least 3", got)
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewFetcher(srv.Client()).Fetch(srv.URL); err == nil {
		t.Fatal("Fetch accepted 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestImport(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	im := NewImporter(st)
	inserted, err := im.Import(sampleRecords, "file")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	// Re-import is a no-op.
	inserted, err = im.Import(sampleRecords, "file")
	if err != nil {
		t.Fatalf("Import (repeat): %v", err)
	}
	if inserted != 0 {
		t.Fatalf("repeat inserted = %d, want 0", inserted)
	}
}
