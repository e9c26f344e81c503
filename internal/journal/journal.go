// Package journal keeps a small record of build outcomes in BoltDB, one
// entry per unit and profile. It exists for reporting ("what was built
// when, and did it succeed"), not for staleness decisions: those belong to
// the fingerprint trailer inside the artifact itself.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbName     = "journal.db"
	bucketName = "builds"
)

// Journal records build outcomes.
type Journal struct {
	db *bbolt.DB
}

// Entry is one recorded build.
type Entry struct {
	SourcePath   string        `json:"source_path"`
	FullName     string        `json:"full_name"`
	ArtifactPath string        `json:"artifact_path"`
	Release      bool          `json:"release"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Open opens (creating if necessary) the journal under cacheDir.
func Open(cacheDir string) (*Journal, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(cacheDir, dbName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open build journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}

	return nil
}

func key(sourcePath string, release bool) []byte {
	profile := "debug"
	if release {
		profile = "release"
	}

	return []byte(sourcePath + "|" + profile)
}

// Record stores or replaces the entry for its unit and profile.
func (j *Journal) Record(e Entry) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(bucketName)).Put(key(e.SourcePath, e.Release), data)
	})
}

// Get returns the recorded entry for a unit and profile, or nil when none
// exists.
func (j *Journal) Get(sourcePath string, release bool) (*Entry, error) {
	var entry *Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(key(sourcePath, release))
		if data == nil {
			return nil
		}

		entry = &Entry{}

		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Entries returns every recorded build, in key order.
func (j *Journal) Entries() ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, data []byte) error {
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}

			entries = append(entries, e)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Clear drops all recorded builds.
func (j *Journal) Clear() error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))

		return err
	})
}
