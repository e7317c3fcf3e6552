package command

// This module implements the command endpoint: the HTTP+JSON control surface
// external tools use to manage groups, routines and nodes, and to mutate the
// render plan. Every plan effect is expressed through the pipeline's
// add/remove API; this package never reaches into the render internals.

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	logxi "github.com/mgutz/logxi/v1"

	"github.com/gorilla/mux"

	"github.com/tristanseifert/lichtenstein-server/render"
	"github.com/tristanseifert/lichtenstein-server/store"
)

var log = logxi.New("command")

// Server is the command endpoint. It owns its HTTP listener; the data store
// is shared with the rest of the server.
type Server struct {
	listen string
	store  *store.Store

	srv *http.Server
}

// NewServer prepares a command server listening on the given address.
func NewServer(listen string, st *store.Store) *Server {
	s := &Server{
		listen: listen,
		store:  st,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/mappings", s.addMapping).Methods(http.MethodPost)
	api.HandleFunc("/mappings", s.removeMapping).Methods(http.MethodDelete)

	api.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.createGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}", s.getGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}", s.updateGroup).Methods(http.MethodPut)
	api.HandleFunc("/groups/{id:[0-9]+}", s.deleteGroup).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{id:[0-9]+}/brightness", s.setBrightness).Methods(http.MethodPut)

	api.HandleFunc("/routines", s.listRoutines).Methods(http.MethodGet)
	api.HandleFunc("/routines", s.createRoutine).Methods(http.MethodPost)
	api.HandleFunc("/routines/{id:[0-9]+}", s.getRoutine).Methods(http.MethodGet)
	api.HandleFunc("/routines/{id:[0-9]+}", s.updateRoutine).Methods(http.MethodPut)
	api.HandleFunc("/routines/{id:[0-9]+}", s.deleteRoutine).Methods(http.MethodDelete)

	api.HandleFunc("/nodes", s.listNodes).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id:[0-9]+}/channels", s.listNodeChannels).Methods(http.MethodGet)

	api.HandleFunc("/status", s.status).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:    listen,
		Handler: r,
	}
	return s
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() (err errors.Error) {
	listener, errGo := net.Listen("tcp", s.listen)
	if errGo != nil {
		return errors.Wrap(errGo).With("listen", s.listen).With("stack", stack.Trace().TrimRuntime())
	}

	log.Debug("command server listening", "addr", s.listen)

	go func() {
		if errGo := s.srv.Serve(listener); errGo != nil && errGo != http.ErrServerClosed {
			log.Error("command server failed", "error", errGo.Error())
		}
	}()
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop() (err errors.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if errGo := s.srv.Shutdown(ctx); errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	return nil
}

// respond writes the value as a JSON body with the given status.
func respond(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if value != nil {
		json.NewEncoder(w).Encode(value)
	}
}

// writeError maps the API error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch err {
	case render.ErrInvalidArg:
		status = http.StatusBadRequest
	case render.ErrNotFound, store.ErrNotFound:
		status = http.StatusNotFound
	case render.ErrUnresolvableConflict:
		status = http.StatusConflict
	case render.ErrNotRunning:
		status = http.StatusServiceUnavailable
	}

	respond(w, status, map[string]string{"error": err.Error()})
}
