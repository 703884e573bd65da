package builddb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunRecord captures one build invocation of a package.
type RunRecord struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	RealVersion uint32    `json:"real_version"`
	Status      string    `json:"status"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// PackageKey is the identity key under which successful runs are indexed.
func (r *RunRecord) PackageKey() string {
	return fmt.Sprintf("%s-%s-%d", r.Name, r.Version, r.RealVersion)
}

// StartRun records the beginning of a build for the given identity and
// returns the stored record.
func (db *DB) StartRun(runID, name, version string, realVersion uint32, startTime time.Time) (*RunRecord, error) {
	if runID == "" {
		return nil, &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	rec := &RunRecord{
		UUID:        runID,
		Name:        name,
		Version:     version,
		RealVersion: realVersion,
		Status:      RunStatusRunning,
		StartTime:   startTime,
	}
	if err := db.saveRun(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FinishRun marks a run as succeeded or failed. Successful runs are also
// indexed as the latest build of their package.
func (db *DB) FinishRun(runID string, success bool, endTime time.Time) error {
	if runID == "" {
		return &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	return db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketRuns))
		if bucket == nil {
			return &DatabaseError{Op: "update", Bucket: BucketRuns, Err: ErrBucketNotFound}
		}

		raw := bucket.Get([]byte(runID))
		if raw == nil {
			return &RecordError{UUID: runID, Err: ErrRecordNotFound}
		}

		var rec RunRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return &RecordError{UUID: runID, Err: ErrCorruptedData}
		}

		rec.EndTime = endTime
		if success {
			rec.Status = RunStatusSuccess
		} else {
			rec.Status = RunStatusFailed
		}

		updated, err := json.Marshal(&rec)
		if err != nil {
			return &DatabaseError{Op: "marshal", Bucket: BucketRuns, Err: err}
		}
		if err := bucket.Put([]byte(runID), updated); err != nil {
			return &DatabaseError{Op: "put", Bucket: BucketRuns, Err: err}
		}

		if success {
			packages := tx.Bucket([]byte(BucketPackages))
			if packages == nil {
				return &DatabaseError{Op: "update", Bucket: BucketPackages, Err: ErrBucketNotFound}
			}
			if err := packages.Put([]byte(rec.PackageKey()), []byte(runID)); err != nil {
				return &DatabaseError{Op: "put", Bucket: BucketPackages, Err: err}
			}
		}
		return nil
	})
}

// GetRun fetches a run record by its ID.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	var rec RunRecord
	err := db.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketRuns))
		if bucket == nil {
			return &DatabaseError{Op: "view", Bucket: BucketRuns, Err: ErrBucketNotFound}
		}
		raw := bucket.Get([]byte(runID))
		if raw == nil {
			return &RecordError{UUID: runID, Err: ErrRecordNotFound}
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return &RecordError{UUID: runID, Err: ErrCorruptedData}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestSuccess returns the record of the latest successful run for the
// package identity, or ErrRecordNotFound when it never built.
func (db *DB) LatestSuccess(name, version string, realVersion uint32) (*RunRecord, error) {
	key := fmt.Sprintf("%s-%s-%d", name, version, realVersion)

	var runID string
	err := db.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketPackages))
		if bucket == nil {
			return &DatabaseError{Op: "view", Bucket: BucketPackages, Err: ErrBucketNotFound}
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return &RecordError{UUID: key, Err: ErrRecordNotFound}
		}
		runID = string(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetRun(runID)
}

func (db *DB) saveRun(rec *RunRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return &DatabaseError{Op: "marshal", Bucket: BucketRuns, Err: err}
	}
	return db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketRuns))
		if bucket == nil {
			return &DatabaseError{Op: "update", Bucket: BucketRuns, Err: ErrBucketNotFound}
		}
		return bucket.Put([]byte(rec.UUID), raw)
	})
}
