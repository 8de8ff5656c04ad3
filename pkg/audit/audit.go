// Package audit implements an append-only validation audit trail
// backed by bbolt: every certificate validation outcome the PKI
// provider produces is recorded here for later inspection. It
// never replaces the DER-file trust store of pkg/pki/store.go, which
// remains the authority for trust decisions; this package only
// records history.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/systerel/s2opc-go/pkg/types"
)

var bucketValidations = []byte("validations")

// Record is one validation outcome: a certificate thumbprint, the
// status it was validated to, and whether it landed in the rejected
// list.
type Record struct {
	Sequence   uint64    `json:"sequence"`
	Thumbprint string    `json:"thumbprint"`
	Status     string    `json:"status"`
	Rejected   bool      `json:"rejected"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Log is the append-only audit trail.
type Log struct {
	db *bolt.DB
}

// Open creates or opens the audit database under dataDir.
func Open(dataDir string) (*Log, error) {
	dbPath := filepath.Join(dataDir, "audit.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("open audit database: %w", err))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketValidations)
		return err
	})
	if err != nil {
		db.Close()
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("create audit bucket: %w", err))
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// RecordValidation appends a validation outcome. Records are never
// updated or deleted once written; the bucket's auto-incrementing
// sequence is the key, so iteration order is insertion order.
func (l *Log) RecordValidation(thumbprint string, status types.StatusCode, rejected bool) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketValidations)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec := Record{
			Sequence:   seq,
			Thumbprint: thumbprint,
			Status:     status.String(),
			Rejected:   rejected,
			RecordedAt: time.Now(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), data)
	})
}

// Tail returns the most recent n records, newest first.
func (l *Log) Tail(n int) ([]Record, error) {
	var out []Record
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketValidations).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read audit tail: %w", err))
	}
	return out, nil
}

func sequenceKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
