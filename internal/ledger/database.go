package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	rowsBucketName     = "rows"
	capturesBucketName = "captures"
)

// ErrNotFound is returned when a row or capture does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveRows appends rows in order
	SaveRows(rows []NormalizedRow) error

	// GetRow retrieves a row by ID
	GetRow(id string) (*NormalizedRow, error)

	// UpdateRow replaces an existing row, keeping its position
	UpdateRow(row *NormalizedRow) error

	// ListRows returns all rows oldest first
	ListRows() ([]*NormalizedRow, error)

	// DeleteRow removes a row and drops it from its capture's row list
	DeleteRow(id string) error

	// ClearRows removes every row
	ClearRows() error

	SaveCapture(capture *Capture) error
	GetCapture(id string) (*Capture, error)
	ListCaptures() ([]*Capture, error)
	DeleteCapture(id string) error

	// Close closes the database connection
	Close() error
}

// rowRecord is the stored form of a row; Seq preserves insertion order
// for rows created in the same instant.
type rowRecord struct {
	Seq uint64 `json:"seq"`
	*NormalizedRow
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{rowsBucketName, capturesBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveRows stores all rows in a single transaction
func (b *BoltDB) SaveRows(rows []NormalizedRow) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rowsBucketName))
		for i := range rows {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating sequence: %w", err)
			}
			data, err := json.Marshal(rowRecord{Seq: seq, NormalizedRow: &rows[i]})
			if err != nil {
				return fmt.Errorf("marshaling row: %w", err)
			}
			if err := bucket.Put([]byte(rows[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func getRowRecord(bucket *bbolt.Bucket, id string) (*rowRecord, error) {
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("row %s: %w", id, ErrNotFound)
	}
	rec := rowRecord{NormalizedRow: &NormalizedRow{}}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling row: %w", err)
	}
	return &rec, nil
}

// GetRow retrieves a row by ID
func (b *BoltDB) GetRow(id string) (*NormalizedRow, error) {
	var row *NormalizedRow
	err := b.db.View(func(tx *bbolt.Tx) error {
		rec, err := getRowRecord(tx.Bucket([]byte(rowsBucketName)), id)
		if err != nil {
			return err
		}
		row = rec.NormalizedRow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// UpdateRow replaces an existing row
func (b *BoltDB) UpdateRow(row *NormalizedRow) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rowsBucketName))
		rec, err := getRowRecord(bucket, row.ID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rowRecord{Seq: rec.Seq, NormalizedRow: row})
		if err != nil {
			return fmt.Errorf("marshaling row: %w", err)
		}
		return bucket.Put([]byte(row.ID), data)
	})
}

// ListRows returns all rows ordered by creation time, then insertion order
func (b *BoltDB) ListRows() ([]*NormalizedRow, error) {
	records := make([]rowRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rowsBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			rec := rowRecord{NormalizedRow: &NormalizedRow{}}
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling row: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		x, y := records[i], records[j]
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.Before(y.CreatedAt)
		}
		return x.Seq < y.Seq
	})

	rows := make([]*NormalizedRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.NormalizedRow)
	}
	return rows, nil
}

// DeleteRow removes a row from the database
func (b *BoltDB) DeleteRow(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rowsBucketName))
		rec, err := getRowRecord(bucket, id)
		if err != nil {
			return err
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return err
		}
		return detachRow(tx.Bucket([]byte(capturesBucketName)), rec.CaptureID, id)
	})
}

// detachRow drops a deleted row's ID from the capture that produced it
func detachRow(bucket *bbolt.Bucket, captureID, rowID string) error {
	if captureID == "" {
		return nil
	}
	data := bucket.Get([]byte(captureID))
	if data == nil {
		return nil
	}

	var capture Capture
	if err := json.Unmarshal(data, &capture); err != nil {
		return fmt.Errorf("unmarshaling capture: %w", err)
	}
	capture.RowIDs = slices.DeleteFunc(capture.RowIDs, func(id string) bool { return id == rowID })

	updated, err := json.Marshal(&capture)
	if err != nil {
		return fmt.Errorf("marshaling capture: %w", err)
	}
	return bucket.Put([]byte(captureID), updated)
}

// ClearRows drops and recreates the rows bucket
func (b *BoltDB) ClearRows() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(rowsBucketName)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("deleting rows bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(rowsBucketName))
		return err
	})
}

// SaveCapture saves a capture record
func (b *BoltDB) SaveCapture(capture *Capture) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(capturesBucketName))
		data, err := json.Marshal(capture)
		if err != nil {
			return fmt.Errorf("marshaling capture: %w", err)
		}
		return bucket.Put([]byte(capture.ID), data)
	})
}

// GetCapture retrieves a capture by ID
func (b *BoltDB) GetCapture(id string) (*Capture, error) {
	var capture *Capture
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(capturesBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("capture %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &capture)
	})
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// ListCaptures returns all captures oldest first
func (b *BoltDB) ListCaptures() ([]*Capture, error) {
	captures := make([]*Capture, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(capturesBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var capture Capture
			if err := json.Unmarshal(v, &capture); err != nil {
				return fmt.Errorf("unmarshaling capture: %w", err)
			}
			captures = append(captures, &capture)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(captures, func(i, j int) bool {
		return captures[i].CreatedAt.Before(captures[j].CreatedAt)
	})
	return captures, nil
}

// DeleteCapture removes a capture record
func (b *BoltDB) DeleteCapture(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(capturesBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
