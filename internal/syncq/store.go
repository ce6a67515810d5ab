// Package syncq implements the client-side durable offline operation
// queue: pending mutations persisted in bbolt and replayed in FIFO
// timestamp order once connectivity returns.
package syncq

import (
	"encoding/binary"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schemaVersion = 1

var (
	bucketPending = []byte("pending_ops")
	bucketMeta    = []byte("meta")
	keyVersion    = []byte("schema_version")
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is a pending mutation. It survives until a replay confirms the
// server accepted it.
type Op struct {
	ID        uint64    `json:"id"`
	Kind      OpKind    `json:"kind"`
	Entity    string    `json:"entity"`
	TargetID  string    `json:"target_id,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Retries   int       `json:"retries"`
}

// Store is the bbolt-backed durable queue.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open queue db")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates buckets and stamps the schema version. Future versions
// rewrite records here before raising the stamp.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return errors.Wrap(err, "create pending bucket")
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return errors.Wrap(err, "create meta bucket")
		}
		cur := meta.Get(keyVersion)
		if cur == nil {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, schemaVersion)
			return meta.Put(keyVersion, buf)
		}
		if v := binary.BigEndian.Uint64(cur); v > schemaVersion {
			return errors.Errorf("queue schema version %d is newer than supported %d", v, schemaVersion)
		}
		return nil
	})
}

func opKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// Enqueue persists a pending operation and returns its local id. A zero
// CreatedAt is stamped with the current time.
func (s *Store) Enqueue(op Op) (uint64, error) {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		op.ID = seq
		id = seq
		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		return b.Put(opKey(seq), data)
	})
	if err != nil {
		return 0, errors.Wrap(err, "enqueue operation")
	}
	return id, nil
}

// Pending returns all queued operations sorted by creation timestamp,
// with the local id as tiebreaker. The sort is on read so that replay
// order does not depend on insertion order in the bucket.
func (s *Store) Pending() ([]Op, error) {
	var ops []Op
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(_, v []byte) error {
			var op Op
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list pending operations")
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})
	return ops, nil
}

// Delete removes a confirmed operation. Deleting a missing id is a no-op.
func (s *Store) Delete(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).Delete(opKey(id))
	})
}

// IncrementRetry bumps the retry counter of a retained operation.
func (s *Store) IncrementRetry(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		data := b.Get(opKey(id))
		if data == nil {
			return nil
		}
		var op Op
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		op.Retries++
		out, err := json.Marshal(op)
		if err != nil {
			return err
		}
		return b.Put(opKey(id), out)
	})
}

// Count returns the number of pending operations.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
