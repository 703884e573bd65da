package builddb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "builds.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartAndGetRun(t *testing.T) {
	db := openTestDB(t)
	runID := uuid.NewString()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := db.StartRun(runID, "foo", "1.2", 3, start); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	rec, err := db.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if rec.Name != "foo" || rec.Version != "1.2" || rec.RealVersion != 3 {
		t.Errorf("identity = %s-%s-%d, want foo-1.2-3", rec.Name, rec.Version, rec.RealVersion)
	}
	if rec.Status != RunStatusRunning {
		t.Errorf("Status = %q, want %q", rec.Status, RunStatusRunning)
	}
	if !rec.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", rec.StartTime, start)
	}
}

func TestFinishRunSuccess(t *testing.T) {
	db := openTestDB(t)
	runID := uuid.NewString()
	start := time.Now().UTC()

	if _, err := db.StartRun(runID, "foo", "1.2", 3, start); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(runID, true, start.Add(time.Minute)); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	rec, err := db.GetRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != RunStatusSuccess {
		t.Errorf("Status = %q, want %q", rec.Status, RunStatusSuccess)
	}

	latest, err := db.LatestSuccess("foo", "1.2", 3)
	if err != nil {
		t.Fatalf("LatestSuccess failed: %v", err)
	}
	if latest.UUID != runID {
		t.Errorf("LatestSuccess UUID = %q, want %q", latest.UUID, runID)
	}
}

func TestFinishRunFailureNotIndexed(t *testing.T) {
	db := openTestDB(t)
	runID := uuid.NewString()

	if _, err := db.StartRun(runID, "foo", "1.2", 3, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(runID, false, time.Now()); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	if _, err := db.LatestSuccess("foo", "1.2", 3); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("LatestSuccess error = %v, want ErrRecordNotFound", err)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t)

	err := db.FinishRun(uuid.NewString(), true, time.Now())
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("FinishRun error = %v, want ErrRecordNotFound", err)
	}
}

func TestEmptyRunID(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.StartRun("", "foo", "1.0", 1, time.Now()); !errors.Is(err, ErrEmptyUUID) {
		t.Errorf("StartRun error = %v, want ErrEmptyUUID", err)
	}
	if err := db.FinishRun("", true, time.Now()); !errors.Is(err, ErrEmptyUUID) {
		t.Errorf("FinishRun error = %v, want ErrEmptyUUID", err)
	}
	if _, err := db.GetRun(""); !errors.Is(err, ErrEmptyUUID) {
		t.Errorf("GetRun error = %v, want ErrEmptyUUID", err)
	}
}

func TestPackageKey(t *testing.T) {
	rec := &RunRecord{Name: "foo", Version: "1.2", RealVersion: 3}
	if got := rec.PackageKey(); got != "foo-1.2-3" {
		t.Errorf("PackageKey = %q, want %q", got, "foo-1.2-3")
	}
}

func TestCloseIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "builds.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
