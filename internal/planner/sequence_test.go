package planner

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"tripline/internal/models"
)

func gormModel(id uint) gorm.Model { return gorm.Model{ID: id} }

func testChain(t *testing.T, waypointCount int) Chain {
	t.Helper()

	stops := []models.Stop{
		{Model: gormModel(1), Kind: models.StopKindStart, Name: "home", Lat: 35.0, Lng: 139.0},
		{Model: gormModel(100), Kind: models.StopKindGoal, Name: "inn", Lat: 40.5, Lng: 141.5},
	}
	for i := 1; i <= waypointCount; i++ {
		stops = append(stops, models.Stop{
			Model:    gormModel(uint(i + 1)),
			Kind:     models.StopKindWaypoint,
			Name:     "wp",
			Position: i,
			Lat:      35.0 + float64(i),
			Lng:      139.0 + float64(i),
		})
	}

	chain, err := NewChain(stops)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

func assertContiguous(t *testing.T, c Chain) {
	t.Helper()
	waypoints := c.Waypoints()
	for i, wp := range waypoints {
		if wp.Position != i+1 {
			t.Fatalf("waypoint %d has position %d, want %d", i, wp.Position, i+1)
		}
	}
	if c.Start().Kind != models.StopKindStart {
		t.Fatalf("chain does not begin with the start stop")
	}
	if c.Goal().Kind != models.StopKindGoal {
		t.Fatalf("chain does not end with the goal stop")
	}
}

func TestAppendWaypointAssignsNextPosition(t *testing.T) {
	chain := testChain(t, 2)

	out := AppendWaypoint(chain, models.Stop{Name: "lunch"})

	if got := len(out.Waypoints()); got != 3 {
		t.Fatalf("waypoint count = %d, want 3", got)
	}
	if got := out[3].Position; got != 3 {
		t.Fatalf("appended waypoint position = %d, want 3", got)
	}
	assertContiguous(t, out)

	// Input chain must be untouched.
	if len(chain.Waypoints()) != 2 {
		t.Fatalf("input chain was mutated")
	}
}

func TestBulkAppendWaypointsAssignsConsecutivePositions(t *testing.T) {
	chain := testChain(t, 1)

	out := BulkAppendWaypoints(chain, []models.Stop{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	})

	if got := len(out.Waypoints()); got != 4 {
		t.Fatalf("waypoint count = %d, want 4", got)
	}
	assertContiguous(t, out)
}

func TestRemoveWaypointAtShiftsLaterPositions(t *testing.T) {
	// Three waypoints at positions 1,2,3; removing position 2 leaves two
	// waypoints at positions 1,2.
	chain := testChain(t, 3)

	out, err := RemoveWaypointAt(chain, 2)
	if err != nil {
		t.Fatalf("RemoveWaypointAt: %v", err)
	}

	waypoints := out.Waypoints()
	if len(waypoints) != 2 {
		t.Fatalf("waypoint count = %d, want 2", len(waypoints))
	}
	assertContiguous(t, out)

	// The survivor that held position 3 must now hold position 2.
	if waypoints[1].ID != chain[3].ID {
		t.Fatalf("wrong waypoint shifted into position 2")
	}
}

func TestRemoveWaypointAtNotFound(t *testing.T) {
	chain := testChain(t, 2)

	for _, position := range []int{0, 3, -1} {
		if _, err := RemoveWaypointAt(chain, position); !errors.Is(err, ErrNotFound) {
			t.Fatalf("RemoveWaypointAt(%d) error = %v, want ErrNotFound", position, err)
		}
	}
}

func TestReorderWaypoints(t *testing.T) {
	chain := testChain(t, 3)
	ids := []uint{chain[3].ID, chain[1].ID, chain[2].ID}

	out, err := ReorderWaypoints(chain, ids)
	if err != nil {
		t.Fatalf("ReorderWaypoints: %v", err)
	}

	assertContiguous(t, out)
	for i, id := range ids {
		if out[i+1].ID != id {
			t.Fatalf("position %d holds stop %d, want %d", i+1, out[i+1].ID, id)
		}
	}
}

func TestReorderRejection(t *testing.T) {
	chain := testChain(t, 3)
	id1, id2, id3 := chain[1].ID, chain[2].ID, chain[3].ID

	cases := []struct {
		name string
		ids  []uint
	}{
		{"omission", []uint{id1, id2}},
		{"extra", []uint{id1, id2, id3, 999}},
		{"duplicate", []uint{id1, id2, id2}},
		{"unknown", []uint{id1, id2, 999}},
		{"empty", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReorderWaypoints(chain, tc.ids)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}

			// The chain must be completely unchanged.
			assertContiguous(t, chain)
			for i, want := range []uint{id1, id2, id3} {
				if chain[i+1].ID != want {
					t.Fatalf("chain order changed after rejected reorder")
				}
			}
		})
	}
}

func TestContiguityAfterEditHistory(t *testing.T) {
	chain := testChain(t, 0)

	chain = AppendWaypoint(chain, models.Stop{Model: gormModel(11), Name: "a"})
	chain = AppendWaypoint(chain, models.Stop{Model: gormModel(12), Name: "b"})
	chain = BulkAppendWaypoints(chain, []models.Stop{
		{Model: gormModel(13), Name: "c"},
		{Model: gormModel(14), Name: "d"},
	})
	assertContiguous(t, chain)

	var err error
	chain, err = RemoveWaypointAt(chain, 2)
	if err != nil {
		t.Fatalf("RemoveWaypointAt: %v", err)
	}
	assertContiguous(t, chain)

	chain, err = ReorderWaypoints(chain, []uint{14, 11, 13})
	if err != nil {
		t.Fatalf("ReorderWaypoints: %v", err)
	}
	assertContiguous(t, chain)

	chain, err = RemoveWaypointAt(chain, 1)
	if err != nil {
		t.Fatalf("RemoveWaypointAt: %v", err)
	}
	assertContiguous(t, chain)

	if got := len(chain.Waypoints()); got != 2 {
		t.Fatalf("waypoint count = %d, want 2", got)
	}
}
