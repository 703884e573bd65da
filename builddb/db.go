// Package builddb provides persistent tracking of build runs using bbolt.
package builddb

import (
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the bbolt database.
const (
	// BucketRuns stores one RunRecord per build invocation, keyed by
	// run UUID.
	BucketRuns = "runs"

	// BucketPackages maps "name-version-real_version" to the UUID of
	// the latest successful run for that package.
	BucketPackages = "packages"
)

// DB wraps a bbolt database for build-run tracking.
type DB struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the build database at path, initializing the
// required buckets. Parent directories are created as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	bdb, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRuns)); err != nil {
			return &DatabaseError{Op: "create bucket", Bucket: BucketRuns, Err: err}
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketPackages)); err != nil {
			return &DatabaseError{Op: "create bucket", Bucket: BucketPackages, Err: err}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &DB{db: bdb, path: path}, nil
}

// Close closes the database. Safe to call more than once.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	err := db.db.Close()
	db.db = nil
	return err
}

// Path returns the filesystem path of the database file.
func (db *DB) Path() string {
	return db.path
}
