package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", FileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndTail(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := db.Record([]Entry{
		{CycleID: "c1", Path: "main.js", Filename: "main.js", PluginID: "p", Destination: "/v/p/main.js", Bytes: 10, Status: StatusWritten, Timestamp: base},
		{CycleID: "c1", Path: "styles.css", PluginID: "p", Status: StatusFailed, Error: "boom", Timestamp: base.Add(time.Second)},
		{CycleID: "c2", Path: "manifest.json", Status: StatusSkipped, Error: "no plugin selected", Timestamp: base.Add(2 * time.Second)},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	tail, err := db.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("len = %d, want 2", len(tail))
	}
	if tail[0].Path != "styles.css" || tail[1].Path != "manifest.json" {
		t.Fatalf("order = %s, %s; want oldest first", tail[0].Path, tail[1].Path)
	}
	if tail[0].Error != "boom" || tail[0].Status != StatusFailed {
		t.Errorf("entry = %+v", tail[0])
	}
	if !tail[1].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("timestamp = %v", tail[1].Timestamp)
	}
}

func TestRecordEmpty(t *testing.T) {
	db := openTestDB(t)
	if err := db.Record(nil); err != nil {
		t.Fatalf("Record(nil): %v", err)
	}
	tail, err := db.Tail(10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("len = %d, want 0", len(tail))
	}
}

func TestClear(t *testing.T) {
	db := openTestDB(t)
	if err := db.Record([]Entry{{CycleID: "c", Path: "a", Status: StatusWritten}, {CycleID: "c", Path: "b", Status: StatusWritten}}); err != nil {
		t.Fatal(err)
	}
	n, err := db.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("cleared %d, want 2", n)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Record([]Entry{{CycleID: "c", Path: "a", Status: StatusWritten}}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	tail, err := db.Tail(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 1 {
		t.Fatalf("len = %d, want 1", len(tail))
	}
}
