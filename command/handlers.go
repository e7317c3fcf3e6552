package command

// Request handlers for the command endpoint. Mapping requests resolve their
// entities from the data store, build the renderable through the effect
// registry and hand value snapshots of the groups to the pipeline.

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tristanseifert/lichtenstein-server/model"
	"github.com/tristanseifert/lichtenstein-server/render"
	"github.com/tristanseifert/lichtenstein-server/version"
)

// pathID extracts the numeric {id} route variable.
func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

// AddMappingRequest installs a routine onto one or more groups.
type AddMappingRequest struct {
	RoutineID int                    `json:"routine_id"`
	GroupIDs  []int                  `json:"group_ids"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// RemoveMappingRequest tears down the mapping covering exactly the given
// groups.
type RemoveMappingRequest struct {
	GroupIDs []int `json:"group_ids"`
}

// SetBrightnessRequest adjusts a group's output brightness.
type SetBrightnessRequest struct {
	Brightness float64 `json:"brightness"`
}

// buildRenderable loads the routine and constructs its effect sized for
// numPixels. Request params override the stored ones key by key.
func (s *Server) buildRenderable(routineID int, params map[string]interface{}, numPixels int) (render.Renderable, model.Routine, error) {
	routine, err := s.store.GetRoutine(routineID)
	if err != nil {
		return nil, routine, err
	}

	merged := render.EffectParams{}
	for k, v := range routine.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	renderable, err := render.NewEffect(routine.Effect, merged, numPixels)
	if err != nil {
		return nil, routine, err
	}
	return renderable, routine, nil
}

// loadGroups resolves the given ids to enabled group snapshots.
func (s *Server) loadGroups(ids []int) ([]model.Group, error) {
	groups := make([]model.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.store.GetGroup(id)
		if err != nil {
			return nil, err
		}
		if !g.Enabled {
			continue
		}
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		return nil, render.ErrInvalidArg
	}
	return groups, nil
}

func (s *Server) addMapping(w http.ResponseWriter, r *http.Request) {
	req := AddMappingRequest{}
	if errGo := json.NewDecoder(r.Body).Decode(&req); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}
	if len(req.GroupIDs) == 0 {
		writeError(w, render.ErrInvalidArg)
		return
	}

	pipeline := render.Shared()
	if pipeline == nil {
		writeError(w, render.ErrNotRunning)
		return
	}

	groups, err := s.loadGroups(req.GroupIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	numPixels := 0
	for i := range groups {
		numPixels += groups[i].NumPixels()
	}

	renderable, routine, err := s.buildRenderable(req.RoutineID, req.Params, numPixels)
	if err != nil {
		writeError(w, err)
		return
	}

	var target render.Target
	var addErr error
	if len(groups) == 1 {
		target, addErr = pipeline.AddGroup(renderable, groups[0])
	} else {
		target, addErr = pipeline.AddGroups(renderable, groups)
	}
	if addErr != nil {
		writeError(w, addErr)
		return
	}

	// remember the mapping so it survives a server restart
	for i := range groups {
		g := groups[i]
		g.CurrentRoutine = routine.ID
		if err := s.store.UpdateGroup(&g); err != nil {
			log.Warn("could not persist mapping", "group", g.ID, "error", err.Error())
		}
	}

	log.Debug("mapping added", "routine", routine.ID, "groups", req.GroupIDs)

	container := target.(render.GroupContainer)
	respond(w, http.StatusCreated, map[string]interface{}{
		"group_ids":  container.GroupIDs(),
		"num_pixels": target.NumPixels(),
	})
}

func (s *Server) removeMapping(w http.ResponseWriter, r *http.Request) {
	req := RemoveMappingRequest{}
	if errGo := json.NewDecoder(r.Body).Decode(&req); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}

	pipeline := render.Shared()
	if pipeline == nil {
		writeError(w, render.ErrNotRunning)
		return
	}

	if err := pipeline.RemoveGroups(req.GroupIDs); err != nil {
		writeError(w, err)
		return
	}

	for _, id := range req.GroupIDs {
		g, err := s.store.GetGroup(id)
		if err != nil {
			continue
		}
		g.CurrentRoutine = 0
		if err := s.store.UpdateGroup(&g); err != nil {
			log.Warn("could not persist unmapping", "group", g.ID, "error", err.Error())
		}
	}

	log.Debug("mapping removed", "groups", req.GroupIDs)
	respond(w, http.StatusOK, nil)
}

func (s *Server) setBrightness(w http.ResponseWriter, r *http.Request) {
	req := SetBrightnessRequest{Brightness: -1}
	if errGo := json.NewDecoder(r.Body).Decode(&req); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}
	if req.Brightness < 0 || req.Brightness > 1 {
		writeError(w, render.ErrInvalidArg)
		return
	}

	g, err := s.store.GetGroup(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	g.Brightness = req.Brightness
	if err := s.store.UpdateGroup(&g); err != nil {
		writeError(w, err)
		return
	}

	// a live mapping keeps rendering with its old snapshot until re-added
	if g.CurrentRoutine != 0 {
		if pipeline := render.Shared(); pipeline != nil {
			renderable, _, err := s.buildRenderable(g.CurrentRoutine, nil, g.NumPixels())
			if err == nil {
				if _, err := pipeline.AddGroup(renderable, g); err != nil {
					log.Warn("could not refresh mapping after brightness change",
						"group", g.ID, "error", err.Error())
				}
			}
		}
	}

	respond(w, http.StatusOK, g)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.AllGroups()
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	respond(w, http.StatusOK, groups)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	g := model.Group{Brightness: 1, Enabled: true}
	if errGo := json.NewDecoder(r.Body).Decode(&g); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}
	if g.End < g.Start || g.Start < 0 {
		writeError(w, render.ErrInvalidArg)
		return
	}

	if err := s.store.CreateGroup(&g); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, g)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGroup(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, g)
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGroup(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if errGo := json.NewDecoder(r.Body).Decode(&g); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}
	g.ID = pathID(r)

	if g.End < g.Start || g.Start < 0 {
		writeError(w, render.ErrInvalidArg)
		return
	}

	if err := s.store.UpdateGroup(&g); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGroup(pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) listRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.store.AllRoutines()
	if err != nil {
		writeError(w, err)
		return
	}
	if routines == nil {
		routines = []model.Routine{}
	}
	respond(w, http.StatusOK, routines)
}

func (s *Server) createRoutine(w http.ResponseWriter, r *http.Request) {
	routine := model.Routine{}
	if errGo := json.NewDecoder(r.Body).Decode(&routine); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}

	// reject effects the registry does not know about
	if _, err := render.NewEffect(routine.Effect, routine.Params, 1); err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.CreateRoutine(&routine); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, routine)
}

func (s *Server) getRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.store.GetRoutine(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, routine)
}

func (s *Server) updateRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.store.GetRoutine(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if errGo := json.NewDecoder(r.Body).Decode(&routine); errGo != nil {
		writeError(w, render.ErrInvalidArg)
		return
	}
	routine.ID = pathID(r)

	if _, err := render.NewEffect(routine.Effect, routine.Params, 1); err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.UpdateRoutine(&routine); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, routine)
}

func (s *Server) deleteRoutine(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRoutine(pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.AllNodes()
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	respond(w, http.StatusOK, nodes)
}

func (s *Server) listNodeChannels(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetNode(pathID(r)); err != nil {
		writeError(w, err)
		return
	}

	channels, err := s.store.ChannelsForNode(pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if channels == nil {
		channels = []model.Channel{}
	}
	respond(w, http.StatusOK, channels)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"version":    version.GitHash,
		"build_time": version.BuildTime,
	}

	if pipeline := render.Shared(); pipeline != nil {
		status["running"] = true
		status["target_fps"] = pipeline.TargetFps()
		status["actual_fps"] = pipeline.ActualFps()
		status["total_frames"] = pipeline.TotalFrames()
		status["pixels"] = pipeline.Framebuffer().Size()
		status["plan"] = pipeline.Dump()
	} else {
		status["running"] = false
	}

	respond(w, http.StatusOK, status)
}
