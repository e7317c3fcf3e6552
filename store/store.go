package store

// This module implements the data store that keeps track of all state in the
// server: stored effect routines, available nodes, lighting groups, and the
// channels mapping sections of the framebuffer to output hardware. Entities
// are kept as JSON in one bolt bucket each; every read hands out a value
// copy so callers can never alias the database.

import (
	"encoding/binary"
	"encoding/json"
	"strconv"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	logxi "github.com/mgutz/logxi/v1"

	bolt "go.etcd.io/bbolt"
)

var log = logxi.New("store")

const (
	bucketGroups   = "groups"
	bucketNodes    = "nodes"
	bucketChannels = "channels"
	bucketRoutines = "routines"
	bucketInfo     = "info"

	schemaVersionKey = "schema-version"
	schemaVersion    = 1
)

var (
	// ErrNotFound is returned when the requested entity does not exist
	ErrNotFound = errors.New("no such entity in data store")

	// ErrSchemaTooNew is returned when the database was written by a newer
	// server version
	ErrSchemaTooNew = errors.New("data store schema is newer than this server supports")
)

// Store is a handle to the server's database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database at path, provisions the
// buckets and validates the schema version.
func Open(path string) (s *Store, err errors.Error) {
	db, errGo := bolt.Open(path, 0600, nil)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("path", path).With("stack", stack.Trace().TrimRuntime())
	}

	s = &Store{db: db}

	errGo = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketGroups, bucketNodes, bucketChannels, bucketRoutines, bucketInfo} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if errGo != nil {
		db.Close()
		return nil, errors.Wrap(errGo).With("path", path).With("stack", stack.Trace().TrimRuntime())
	}

	if err = s.checkSchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("data store opened", "path", path)
	return s, nil
}

// Close flushes and closes the database.
func (s *Store) Close() (err errors.Error) {
	if errGo := s.db.Close(); errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// checkSchemaVersion stamps a fresh database with the current schema version
// and refuses databases written by a newer server.
func (s *Store) checkSchemaVersion() (err errors.Error) {
	current, err := s.GetInfoValue(schemaVersionKey)
	if err != nil {
		return err
	}

	if current == "" {
		return s.SetInfoValue(schemaVersionKey, strconv.Itoa(schemaVersion))
	}

	version, errGo := strconv.Atoi(current)
	if errGo != nil {
		return errors.Wrap(errGo).With("value", current).With("stack", stack.Trace().TrimRuntime())
	}
	if version > schemaVersion {
		return ErrSchemaTooNew
	}

	// older schemas would be migrated here once version 2 exists
	return nil
}

// SetInfoValue stores a key/value pair in the info bucket.
func (s *Store) SetInfoValue(key string, value string) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketInfo)).Put([]byte(key), []byte(value))
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("key", key).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// GetInfoValue reads a value from the info bucket, returning the empty
// string when the key is absent.
func (s *Store) GetInfoValue(key string) (value string, err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketInfo)).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if errGo != nil {
		return "", errors.Wrap(errGo).With("key", key).With("stack", stack.Trace().TrimRuntime())
	}
	return value, nil
}

// itob encodes an id as a big endian key so bucket iteration stays in id
// order.
func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// putJSON marshals the entity into the named bucket under the given id.
func (s *Store) putJSON(bucket string, id int, entity interface{}) (err errors.Error) {
	data, errGo := json.Marshal(entity)
	if errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}

	errGo = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(itob(id), data)
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("bucket", bucket).With("id", id).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// getJSON unmarshals the entity with the given id from the named bucket.
func (s *Store) getJSON(bucket string, id int, entity interface{}) (err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get(itob(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, entity)
	})
	if errGo == ErrNotFound {
		return ErrNotFound
	}
	if errGo != nil {
		return errors.Wrap(errGo).With("bucket", bucket).With("id", id).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// deleteJSON removes the entity with the given id from the named bucket.
func (s *Store) deleteJSON(bucket string, id int) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		return b.Delete(itob(id))
	})
	if errGo == ErrNotFound {
		return ErrNotFound
	}
	if errGo != nil {
		return errors.Wrap(errGo).With("bucket", bucket).With("id", id).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// nextSequence allocates a fresh id from the named bucket's sequence.
func nextSequence(tx *bolt.Tx, bucket string) (int, error) {
	seq, err := tx.Bucket([]byte(bucket)).NextSequence()
	if err != nil {
		return 0, err
	}
	return int(seq), nil
}
