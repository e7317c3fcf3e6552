package store

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tristanseifert/lichtenstein-server/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestGroupRoundTrip(t *testing.T) {
	s := openTestStore(t)

	g := model.Group{
		Name:       "window sill",
		Enabled:    true,
		Start:      0,
		End:        59,
		Brightness: 1,
	}
	if err := s.CreateGroup(&g); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g.ID == 0 {
		t.Fatal("CreateGroup did not assign an id")
	}

	got, err := s.GetGroup(g.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Fatalf("group did not round trip:\n%s", diff)
	}

	got.Brightness = 0.5
	got.Mirrored = true
	if err := s.UpdateGroup(&got); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	updated, _ := s.GetGroup(g.ID)
	if updated.Brightness != 0.5 || !updated.Mirrored {
		t.Fatalf("update not persisted: %+v", updated)
	}

	if err := s.DeleteGroup(g.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := s.GetGroup(g.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGroupIdsAreSequential(t *testing.T) {
	s := openTestStore(t)

	ids := []int{}
	for i := 0; i != 3; i++ {
		g := model.Group{Name: "g" + strconv.Itoa(i), Start: i * 10, End: i*10 + 9}
		if err := s.CreateGroup(&g); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		ids = append(ids, g.ID)
	}

	if diff := cmp.Diff([]int{1, 2, 3}, ids); diff != "" {
		t.Fatalf("unexpected id sequence:\n%s", diff)
	}

	all, err := s.AllGroups()
	if err != nil {
		t.Fatalf("AllGroups failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(all))
	}
	for i, g := range all {
		if g.ID != i+1 {
			t.Fatalf("groups not in id order: %+v", all)
		}
	}
}

func TestUpdateMissingGroup(t *testing.T) {
	s := openTestStore(t)

	g := model.Group{ID: 42, Name: "ghost"}
	if err := s.UpdateGroup(&g); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNodeRoundTripAndMacLookup(t *testing.T) {
	s := openTestStore(t)

	n := model.Node{
		IP:       "10.0.1.20",
		MAC:      "de:ad:be:ef:00:01",
		Hostname: "strip-livingroom",
		Adopted:  true,
	}
	if err := s.CreateNode(&n); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}

	found, err := s.FindNodeWithMac("DE:AD:BE:EF:00:01")
	if err != nil {
		t.Fatalf("FindNodeWithMac failed: %v", err)
	}
	if found.ID != n.ID {
		t.Fatalf("found node %d, expected %d", found.ID, n.ID)
	}

	if _, err := s.FindNodeWithMac("00:00:00:00:00:00"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	found.Adopted = false
	if err := s.UpdateNode(&found); err != nil {
		t.Fatalf("UpdateNode failed: %v", err)
	}
	got, _ := s.GetNode(n.ID)
	if got.Adopted {
		t.Fatal("node update not persisted")
	}
}

func TestChannelsForNode(t *testing.T) {
	s := openTestStore(t)

	for _, c := range []model.Channel{
		{NodeID: 1, Index: 0, FBOffset: 0, NumPixels: 60, Server: "10.0.1.20:7890"},
		{NodeID: 2, Index: 0, FBOffset: 60, NumPixels: 30, Server: "10.0.1.21:7890"},
		{NodeID: 1, Index: 1, FBOffset: 90, NumPixels: 60, Server: "10.0.1.20:7890", OPCChannel: 1},
	} {
		c := c
		if err := s.CreateChannel(&c); err != nil {
			t.Fatalf("CreateChannel failed: %v", err)
		}
	}

	channels, err := s.ChannelsForNode(1)
	if err != nil {
		t.Fatalf("ChannelsForNode failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels for node 1, got %d", len(channels))
	}
	for _, c := range channels {
		if c.NodeID != 1 {
			t.Fatalf("channel %d belongs to node %d", c.ID, c.NodeID)
		}
	}
}

func TestRoutineRoundTrip(t *testing.T) {
	s := openTestStore(t)

	r := model.Routine{
		Name:   "all red",
		Effect: "fill",
		Params: map[string]interface{}{"hue": float64(0), "saturation": float64(1), "intensity": float64(1)},
	}
	if err := s.CreateRoutine(&r); err != nil {
		t.Fatalf("CreateRoutine failed: %v", err)
	}

	got, err := s.GetRoutine(r.ID)
	if err != nil {
		t.Fatalf("GetRoutine failed: %v", err)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("routine did not round trip:\n%s", diff)
	}

	got.Name = "all crimson"
	if err := s.UpdateRoutine(&got); err != nil {
		t.Fatalf("UpdateRoutine failed: %v", err)
	}

	if err := s.DeleteRoutine(r.ID); err != nil {
		t.Fatalf("DeleteRoutine failed: %v", err)
	}
	if _, err := s.GetRoutine(r.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInfoValues(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetInfoValue("server-name", "living room"); err != nil {
		t.Fatalf("SetInfoValue failed: %v", err)
	}

	got, err := s.GetInfoValue("server-name")
	if err != nil {
		t.Fatalf("GetInfoValue failed: %v", err)
	}
	if got != "living room" {
		t.Fatalf("GetInfoValue = %q", got)
	}

	if got, _ := s.GetInfoValue("absent"); got != "" {
		t.Fatalf("absent key = %q, expected empty", got)
	}
}

func TestSchemaVersionStamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, _ := s.GetInfoValue(schemaVersionKey)
	if got != strconv.Itoa(schemaVersion) {
		t.Fatalf("schema version = %q, expected %d", got, schemaVersion)
	}
	s.Close()

	// reopening an up to date database succeeds
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	s.Close()
}

func TestSchemaTooNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetInfoValue(schemaVersionKey, strconv.Itoa(schemaVersion+1)); err != nil {
		t.Fatalf("SetInfoValue failed: %v", err)
	}
	s.Close()

	if _, err := Open(path); err != ErrSchemaTooNew {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
}
