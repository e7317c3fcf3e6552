package store

// Channel persistence. A channel ties a slice of the framebuffer to one
// strip of a node; the output workers read these at startup.

import (
	"encoding/json"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	bolt "go.etcd.io/bbolt"

	"github.com/tristanseifert/lichtenstein-server/model"
)

// CreateChannel assigns the channel a fresh id and stores it. The channel's
// ID field is updated in place.
func (s *Store) CreateChannel(c *model.Channel) (err errors.Error) {
	errGo := s.db.Update(func(tx *bolt.Tx) error {
		id, errGo := nextSequence(tx, bucketChannels)
		if errGo != nil {
			return errGo
		}
		c.ID = id

		data, errGo := json.Marshal(c)
		if errGo != nil {
			return errGo
		}
		return tx.Bucket([]byte(bucketChannels)).Put(itob(id), data)
	})
	if errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// GetChannel returns a copy of the channel with the given id.
func (s *Store) GetChannel(id int) (c model.Channel, err errors.Error) {
	err = s.getJSON(bucketChannels, id, &c)
	return c, err
}

// AllChannels returns copies of every stored channel, in id order.
func (s *Store) AllChannels() (channels []model.Channel, err errors.Error) {
	errGo := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketChannels)).ForEach(func(k, v []byte) error {
			c := model.Channel{}
			if errGo := json.Unmarshal(v, &c); errGo != nil {
				return errGo
			}
			channels = append(channels, c)
			return nil
		})
	})
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return channels, nil
}

// ChannelsForNode returns copies of the channels belonging to the given
// node, in id order.
func (s *Store) ChannelsForNode(nodeID int) (channels []model.Channel, err errors.Error) {
	all, err := s.AllChannels()
	if err != nil {
		return nil, err
	}

	for _, c := range all {
		if c.NodeID == nodeID {
			channels = append(channels, c)
		}
	}
	return channels, nil
}

// DeleteChannel removes the channel with the given id.
func (s *Store) DeleteChannel(id int) (err errors.Error) {
	return s.deleteJSON(bucketChannels, id)
}
