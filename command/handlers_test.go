package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/tristanseifert/lichtenstein-server/config"
	"github.com/tristanseifert/lichtenstein-server/model"
	"github.com/tristanseifert/lichtenstein-server/render"
	"github.com/tristanseifert/lichtenstein-server/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "command.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})

	s := NewServer(":0", st)
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

// startPipeline brings the shared render pipeline up for the duration of
// one test.
func startPipeline(t *testing.T) {
	t.Helper()

	config.Reset()
	if err := render.Start(); err != nil {
		t.Fatalf("render.Start failed: %v", err)
	}
	t.Cleanup(render.Stop)
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
}

func TestGroupCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	// create
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/groups", map[string]interface{}{
		"name":  "shelf",
		"start": 0,
		"end":   29,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create returned %d", resp.StatusCode)
	}

	created := model.Group{}
	decode(t, resp, &created)
	if created.ID == 0 || !created.Enabled || created.Brightness != 1 {
		t.Fatalf("unexpected created group: %+v", created)
	}

	// read
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/groups/%d", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get returned %d", resp.StatusCode)
	}
	got := model.Group{}
	decode(t, resp, &got)
	if got.Name != "shelf" || got.NumPixels() != 30 {
		t.Fatalf("unexpected group: %+v", got)
	}

	// update
	got.Mirrored = true
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/groups/%d", ts.URL, created.ID), got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// list
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/groups", nil)
	groups := []model.Group{}
	decode(t, resp, &groups)
	if len(groups) != 1 || !groups[0].Mirrored {
		t.Fatalf("unexpected listing: %+v", groups)
	}

	// delete
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/groups/%d", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/groups/%d", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateGroupValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/groups", map[string]interface{}{
		"name":  "backwards",
		"start": 10,
		"end":   3,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a backwards range, got %d", resp.StatusCode)
	}
}

func TestRoutineValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/routines", map[string]interface{}{
		"name":   "mystery",
		"effect": "plasma-vortex",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown effect, got %d", resp.StatusCode)
	}
}

func TestMappingWithoutPipeline(t *testing.T) {
	ts, st := newTestServer(t)

	g := model.Group{Name: "g", Enabled: true, Start: 0, End: 9, Brightness: 1}
	st.CreateGroup(&g)
	routine := model.Routine{Name: "red", Effect: "fill"}
	st.CreateRoutine(&routine)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/mappings", AddMappingRequest{
		RoutineID: routine.ID,
		GroupIDs:  []int{g.ID},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a pipeline, got %d", resp.StatusCode)
	}
}

func TestAddAndRemoveMapping(t *testing.T) {
	ts, st := newTestServer(t)
	startPipeline(t)

	g1 := model.Group{Name: "left", Enabled: true, Start: 0, End: 9, Brightness: 1}
	g2 := model.Group{Name: "right", Enabled: true, Start: 10, End: 19, Brightness: 1}
	st.CreateGroup(&g1)
	st.CreateGroup(&g2)

	routine := model.Routine{
		Name:   "red",
		Effect: "fill",
		Params: map[string]interface{}{"hue": float64(0)},
	}
	st.CreateRoutine(&routine)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/mappings", AddMappingRequest{
		RoutineID: routine.ID,
		GroupIDs:  []int{g1.ID, g2.ID},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add mapping returned %d", resp.StatusCode)
	}

	result := struct {
		GroupIDs  []int `json:"group_ids"`
		NumPixels int   `json:"num_pixels"`
	}{}
	decode(t, resp, &result)
	if result.NumPixels != 20 || len(result.GroupIDs) != 2 {
		t.Fatalf("unexpected mapping result: %+v", result)
	}

	// the mapping is persisted onto the groups
	stored, _ := st.GetGroup(g1.ID)
	if stored.CurrentRoutine != routine.ID {
		t.Fatalf("mapping not persisted: %+v", stored)
	}

	// removing a partial id set misses
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/mappings", RemoveMappingRequest{
		GroupIDs: []int{g1.ID},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("partial remove returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/mappings", RemoveMappingRequest{
		GroupIDs: []int{g1.ID, g2.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove mapping returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	stored, _ = st.GetGroup(g1.ID)
	if stored.CurrentRoutine != 0 {
		t.Fatalf("unmapping not persisted: %+v", stored)
	}
}

func TestAddMappingUnknownRoutine(t *testing.T) {
	ts, st := newTestServer(t)
	startPipeline(t)

	g := model.Group{Name: "g", Enabled: true, Start: 0, End: 9, Brightness: 1}
	st.CreateGroup(&g)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/mappings", AddMappingRequest{
		RoutineID: 99,
		GroupIDs:  []int{g.ID},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown routine, got %d", resp.StatusCode)
	}
}

func TestSetBrightness(t *testing.T) {
	ts, st := newTestServer(t)

	g := model.Group{Name: "g", Enabled: true, Start: 0, End: 9, Brightness: 1}
	st.CreateGroup(&g)

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/groups/%d/brightness", ts.URL, g.ID),
		SetBrightnessRequest{Brightness: 0.25})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set brightness returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	stored, _ := st.GetGroup(g.ID)
	if stored.Brightness != 0.25 {
		t.Fatalf("brightness not persisted: %+v", stored)
	}

	// out of range values are rejected
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/groups/%d/brightness", ts.URL, g.ID),
		SetBrightnessRequest{Brightness: 1.5})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for brightness 1.5, got %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status returned %d", resp.StatusCode)
	}

	status := map[string]interface{}{}
	decode(t, resp, &status)

	if _, ok := status["running"]; !ok {
		t.Fatalf("status is missing the running flag: %+v", status)
	}
}
