package store

// Routine persistence. Routines are the stored effect programs the command
// endpoint installs onto groups.

import (
	"encoding/json"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	bolt "go.etcd.io/bbolt"

	"github.com/tristanseifert/lichtenstein-server/model"
)

// CreateRoutine assigns the routine a fresh id and stores it. The routine's
// ID field is updated in place.
func (s *Store) CreateRoutine(r *model.Routine) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		id, errGo := nextSequence(tx, bucketRoutines)
		if errGo != nil {
			return errGo
		}
		r.ID = id

		data, errGo := json.Marshal(r)
		if errGo != nil {
			return errGo
		}
		return tx.Bucket([]byte(bucketRoutines)).Put(itob(id), data)
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// UpdateRoutine overwrites the stored routine with the given value.
func (s *Store) UpdateRoutine(r *model.Routine) (err errors.Error) {
	existing := model.Routine{}
	if err = s.getJSON(bucketRoutines, r.ID, &existing); err != nil {
		return err
	}
	return s.putJSON(bucketRoutines, r.ID, r)
}

// GetRoutine returns a copy of the routine with the given id.
func (s *Store) GetRoutine(id int) (r model.Routine, err errors.Error) {
	err = s.getJSON(bucketRoutines, id, &r)
	return r, err
}

// AllRoutines returns copies of every stored routine, in id order.
func (s *Store) AllRoutines() (routines []model.Routine, err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRoutines)).ForEach(func(k, v []byte) error {
			r := model.Routine{}
			if errGo := json.Unmarshal(v, &r); errGo != nil {
				return errGo
			}
			routines = append(routines, r)
			return nil
		})
	})
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return routines, nil
}

// DeleteRoutine removes the routine with the given id.
func (s *Store) DeleteRoutine(id int) (err errors.Error) {
	return s.deleteJSON(bucketRoutines, id)
}
