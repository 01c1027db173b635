// Package resumeledger persists which chunks a receiving process has
// already fully decoded and written to disk, keyed by (file_key, chunk_id),
// so a client that restarts mid-transfer does not re-request chunks it
// already has.
package resumeledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var bucketCompleted = []byte("completed_chunks")

// Ledger is a boltdb-backed append log of completed (file_key, chunk_id)
// pairs.
type Ledger struct {
	db *bolt.DB
}

// Open opens (creating if absent) the boltdb file at path and ensures its
// bucket exists.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(filepath.Clean(path), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("resumeledger: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketCompleted)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("resumeledger: create bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying boltdb file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func chunkKey(fileKey string, chunkID uint32) []byte {
	key := make([]byte, len(fileKey)+1+4)
	n := copy(key, fileKey)
	key[n] = 0
	binary.BigEndian.PutUint32(key[n+1:], chunkID)
	return key
}

// MarkComplete records that chunkID of fileKey has been fully decoded and
// written.
func (l *Ledger) MarkComplete(fileKey string, chunkID uint32) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
	return l.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketCompleted)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Put(chunkKey(fileKey, chunkID), buf)
	})
}

// IsComplete reports whether chunkID of fileKey was previously marked
// complete.
func (l *Ledger) IsComplete(fileKey string, chunkID uint32) bool {
	var ok bool
	_ = l.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketCompleted)
		if bk == nil {
			return nil
		}
		ok = bk.Get(chunkKey(fileKey, chunkID)) != nil
		return nil
	})
	return ok
}

// CompletedChunks returns the set of chunk ids previously marked complete
// for fileKey.
func (l *Ledger) CompletedChunks(fileKey string) (map[uint32]struct{}, error) {
	prefix := append([]byte(fileKey), 0)
	out := make(map[uint32]struct{})
	err := l.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketCompleted)
		if bk == nil {
			return nil
		}
		c := bk.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			chunkID := binary.BigEndian.Uint32(k[len(prefix):])
			out[chunkID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resumeledger: scan %s: %w", fileKey, err)
	}
	return out, nil
}

// Forget removes every recorded chunk for fileKey, used when a file is
// re-planned from scratch.
func (l *Ledger) Forget(fileKey string) error {
	prefix := append([]byte(fileKey), 0)
	return l.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketCompleted)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		c := bk.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := bk.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
