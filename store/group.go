package store

// Group persistence. Groups are the unit the command endpoint maps effects
// onto; the render pipeline only ever sees value snapshots of them.

import (
	"encoding/json"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	bolt "go.etcd.io/bbolt"

	"github.com/tristanseifert/lichtenstein-server/model"
)

// CreateGroup assigns the group a fresh id and stores it. The group's ID
// field is updated in place.
func (s *Store) CreateGroup(g *model.Group) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		id, errGo := nextSequence(tx, bucketGroups)
		if errGo != nil {
			return errGo
		}
		g.ID = id

		data, errGo := json.Marshal(g)
		if errGo != nil {
			return errGo
		}
		return tx.Bucket([]byte(bucketGroups)).Put(itob(id), data)
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// UpdateGroup overwrites the stored group with the given value. Fails with
// ErrNotFound if it was never created.
func (s *Store) UpdateGroup(g *model.Group) (err errors.Error) {
	existing := model.Group{}
	if err = s.getJSON(bucketGroups, g.ID, &existing); err != nil {
		return err
	}
	return s.putJSON(bucketGroups, g.ID, g)
}

// GetGroup returns a copy of the group with the given id.
func (s *Store) GetGroup(id int) (g model.Group, err errors.Error) {
	err = s.getJSON(bucketGroups, id, &g)
	return g, err
}

// AllGroups returns copies of every stored group, in id order.
func (s *Store) AllGroups() (groups []model.Group, err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketGroups)).ForEach(func(k, v []byte) error {
			g := model.Group{}
			if errGo := json.Unmarshal(v, &g); errGo != nil {
				return errGo
			}
			groups = append(groups, g)
			return nil
		})
	})
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return groups, nil
}

// DeleteGroup removes the group with the given id.
func (s *Store) DeleteGroup(id int) (err errors.Error) {
	return s.deleteJSON(bucketGroups, id)
}
