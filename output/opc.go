package output

// This file contains the output workers that watch the framebuffer for
// completed frames and push pixel data to the remote nodes over Open Pixel
// Control. One goroutine runs per node; each frame it reads the node's
// channel ranges out of the framebuffer, converts to RGB, and sends one OPC
// message per channel. A hash of the converted payload suppresses resends
// when nothing changed.

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/cnf/structhash"

	logxi "github.com/mgutz/logxi/v1"

	"github.com/kellydunn/go-opc"

	"github.com/tristanseifert/lichtenstein-server/model"
	"github.com/tristanseifert/lichtenstein-server/render"
	"github.com/tristanseifert/lichtenstein-server/store"
)

var log = logxi.New("output")

// Start reads the node and channel inventory from the store and spawns one
// sender per adopted node. Nodes without channels are skipped.
func Start(st *store.Store, fb *render.Framebuffer, errorC chan<- errors.Error, quitC <-chan struct{}) (err errors.Error) {
	nodes, err := st.AllNodes()
	if err != nil {
		return err
	}

	started := 0
	for _, node := range nodes {
		if !node.Adopted {
			continue
		}

		channels, err := st.ChannelsForNode(node.ID)
		if err != nil {
			return err
		}
		if len(channels) == 0 {
			log.Warn("adopted node has no channels", "node", node.ID)
			continue
		}

		go runNodeOPC(node, channels, fb, errorC, quitC)
		started++
	}

	log.Debug("output workers started", "nodes", started)
	return nil
}

// framePayload wraps one channel's pixels for hashing.
type framePayload struct {
	Pixels []render.HSIPixel
}

// nodeSender holds one node's OPC connection state across frames.
type nodeSender struct {
	node     model.Node
	channels []model.Channel

	oc        *opc.Client
	connected bool

	// hash of the last payload sent per channel, keyed by channel id
	last map[int][]byte
}

// runNodeOPC consumes frame completion events and relays the node's slices
// of the framebuffer until quitC closes.
func runNodeOPC(node model.Node, channels []model.Channel, fb *render.Framebuffer, errorC chan<- errors.Error, quitC <-chan struct{}) {
	sender := &nodeSender{
		node:     node,
		channels: channels,
		oc:       opc.NewClient(),
		last:     map[int][]byte{},
	}

	frameC := make(chan uint64, 1)
	fb.Subscribe(frameC)

	for {
		select {
		case <-frameC:
			if err := sender.sendFrame(fb); err != nil {
				sender.connected = false

				select {
				case errorC <- err:
				case <-time.After(100 * time.Millisecond):
					fmt.Fprintln(os.Stderr, err.Error())
				}
			}
		case <-quitC:
			return
		}
	}
}

// connect dials the node's pixel server if the previous connection is gone.
func (s *nodeSender) connect() (err errors.Error) {
	if s.connected {
		return nil
	}

	server := s.channels[0].Server
	if errGo := s.oc.Connect("tcp", server); errGo != nil {
		return errors.Wrap(errGo).With("url", server).With("stack", stack.Trace().TrimRuntime())
	}

	s.connected = true
	return nil
}

// sendFrame pushes every channel's current framebuffer contents to the node,
// skipping channels whose pixels have not changed since the last send.
func (s *nodeSender) sendFrame(fb *render.Framebuffer) (err errors.Error) {
	if err = s.connect(); err != nil {
		return err
	}

	for _, channel := range s.channels {
		pixels, err := fb.Read(channel.FBOffset, channel.NumPixels)
		if err != nil {
			// channel ranges come from the store; a bad one is logged once
			// per frame and the rest still go out
			log.Warn("channel range outside framebuffer", "channel", channel.ID, "error", err.Error())
			continue
		}

		hash := structhash.Md5(framePayload{Pixels: pixels}, 1)
		if bytes.Equal(s.last[channel.ID], hash) {
			continue
		}

		if err = s.sendChannel(channel, pixels); err != nil {
			return err
		}
		s.last[channel.ID] = hash
	}
	return nil
}

// sendChannel converts one channel's pixels to RGB and sends the OPC
// message.
func (s *nodeSender) sendChannel(channel model.Channel, pixels []render.HSIPixel) (err errors.Error) {
	m := opc.NewMessage(channel.OPCChannel)
	m.SetLength(uint16(len(pixels) * 3))

	for i, pixel := range pixels {
		r, g, b := pixel.RGB()
		m.SetPixelColor(i, r, g, b)
	}

	if errGo := s.oc.Send(m); errGo != nil {
		return errors.Wrap(errGo).With("url", s.channels[0].Server).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}
