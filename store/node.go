package store

// Node persistence. Nodes are the remote output devices; they are matched up
// by MAC address when they announce themselves.

import (
	"encoding/json"
	"strings"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	bolt "go.etcd.io/bbolt"

	"github.com/tristanseifert/lichtenstein-server/model"
)

// CreateNode assigns the node a fresh id and stores it. The node's ID field
// is updated in place.
func (s *Store) CreateNode(n *model.Node) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		id, errGo := nextSequence(tx, bucketNodes)
		if errGo != nil {
			return errGo
		}
		n.ID = id

		data, errGo := json.Marshal(n)
		if errGo != nil {
			return errGo
		}
		return tx.Bucket([]byte(bucketNodes)).Put(itob(id), data)
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// UpdateNode overwrites the stored node with the given value.
func (s *Store) UpdateNode(n *model.Node) (err errors.Error) {
	existing := model.Node{}
	if err = s.getJSON(bucketNodes, n.ID, &existing); err != nil {
		return err
	}
	return s.putJSON(bucketNodes, n.ID, n)
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id int) (n model.Node, err errors.Error) {
	err = s.getJSON(bucketNodes, id, &n)
	return n, err
}

// FindNodeWithMac returns the node with the given MAC address, matched case
// insensitively.
func (s *Store) FindNodeWithMac(mac string) (n model.Node, err errors.Error) {
	found := false

	errGo := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketNodes)).ForEach(func(k, v []byte) error {
			candidate := model.Node{}
			if errGo := json.Unmarshal(v, &candidate); errGo != nil {
				return errGo
			}
			if strings.EqualFold(candidate.MAC, mac) {
				n = candidate
				found = true
			}
			return nil
		})
	})
	if errGo != nil {
		return n, errors.Wrap(errGo).With("mac", mac).With("stack", stack.Trace().TrimRuntime())
	}
	if !found {
		return n, ErrNotFound
	}
	return n, nil
}

// AllNodes returns copies of every stored node, in id order.
func (s *Store) AllNodes() (nodes []model.Node, err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketNodes)).ForEach(func(k, v []byte) error {
			n := model.Node{}
			if errGo := json.Unmarshal(v, &n); errGo != nil {
				return errGo
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nodes, nil
}
