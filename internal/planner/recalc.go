package planner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tripline/internal/directions"
	"tripline/internal/models"
)

// EditKind classifies a user edit for the recalculation policy table. The
// classification is explicit rather than inferred from which request fields
// happen to be present.
type EditKind int

const (
	EditInsert EditKind = iota
	EditRemove
	EditReorder
	EditToll
	EditStay
	EditBulkAdopt
	EditMemo
	// EditAnchor is a change of the start stop's departure time; like a
	// stay change it shifts the schedule without touching any leg.
	EditAnchor
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditRemove:
		return "remove"
	case EditReorder:
		return "reorder"
	case EditToll:
		return "toll"
	case EditStay:
		return "stay"
	case EditBulkAdopt:
		return "bulk_adopt"
	case EditMemo:
		return "memo"
	case EditAnchor:
		return "anchor"
	}
	return "unknown"
}

type routeMode int

const (
	routeNone routeMode = iota
	routePartial
	routeFull
)

type stagePlan struct {
	route    routeMode
	schedule bool
}

// policy maps every edit kind to the stages it requires. The route stage,
// when present, always completes before the schedule stage reads move
// times.
var policy = map[EditKind]stagePlan{
	EditInsert:    {route: routeFull, schedule: true},
	EditRemove:    {route: routeFull, schedule: true},
	EditReorder:   {route: routeFull, schedule: true},
	EditToll:      {route: routePartial, schedule: true},
	EditStay:      {route: routeNone, schedule: true},
	EditBulkAdopt: {route: routeFull, schedule: true},
	EditMemo:      {route: routeNone, schedule: false},
	EditAnchor:    {route: routeNone, schedule: true},
}

// Edit is a classified user edit. StopID identifies the toggled stop for
// partial (toll) recomputation and is ignored otherwise.
type Edit struct {
	Kind   EditKind
	StopID uint
}

// Engine runs the route and schedule stages for a classified edit. It is
// the single entry point for recomputation: no caller talks to the
// directions provider or the schedule propagator directly.
type Engine struct {
	provider directions.Provider
}

// NewEngine creates an Engine with an injected directions provider handle.
func NewEngine(provider directions.Provider) *Engine {
	return &Engine{provider: provider}
}

// Apply runs the stages required by the edit over the already-mutated chain
// and returns a new chain with fresh leg metrics and schedule times. The
// input chain is never modified, so callers can roll back by discarding the
// result: if any provider call fails, Apply returns a ProviderError and the
// itinerary must be restored to its pre-edit state.
func (e *Engine) Apply(ctx context.Context, edit Edit, chain Chain) (Chain, error) {
	plan, ok := policy[edit.Kind]
	if !ok {
		return nil, fmt.Errorf("recalc: unknown edit kind %d", edit.Kind)
	}

	out := chain.clone()

	switch plan.route {
	case routeFull:
		if err := e.recomputeAllLegs(ctx, out); err != nil {
			return nil, err
		}
	case routePartial:
		if err := e.recomputeLegOf(ctx, out, edit.StopID); err != nil {
			return nil, err
		}
	}

	if plan.schedule {
		out = PropagateSchedule(out)
	}

	logrus.WithFields(logrus.Fields{
		"edit":      edit.Kind.String(),
		"waypoints": len(out) - 2,
	}).Debug("recalc: edit applied")

	return out, nil
}

// recomputeAllLegs refreshes every leg in sequence order. Each result is
// written onto the origin stop of its leg; the goal never owns a leg.
func (e *Engine) recomputeAllLegs(ctx context.Context, chain Chain) error {
	for i := 0; i < len(chain)-1; i++ {
		if err := e.computeLeg(ctx, chain, i); err != nil {
			return err
		}
	}
	return nil
}

// recomputeLegOf refreshes only the outgoing leg of the stop whose toll
// preference changed, leaving every other leg untouched.
func (e *Engine) recomputeLegOf(ctx context.Context, chain Chain, stopID uint) error {
	for i := 0; i < len(chain)-1; i++ {
		if chain[i].ID == stopID {
			return e.computeLeg(ctx, chain, i)
		}
	}
	return fmt.Errorf("recalc: stop %d has no outgoing leg: %w", stopID, ErrNotFound)
}

func (e *Engine) computeLeg(ctx context.Context, chain Chain, i int) error {
	origin := &chain[i]
	dest := &chain[i+1]

	leg, err := e.provider.ComputeLeg(ctx, directions.Request{
		Origin:      directions.LatLng{Lat: origin.Lat, Lng: origin.Lng},
		Destination: directions.LatLng{Lat: dest.Lat, Lng: dest.Lng},
		TollAllowed: origin.TollUsed,
	})
	if err != nil {
		return &ProviderError{
			Op:  fmt.Sprintf("leg %q -> %q", origin.Name, dest.Name),
			Err: err,
		}
	}

	origin.MoveTimeMin = leg.MoveTimeMin
	origin.MoveDistanceKm = leg.MoveDistanceKm
	origin.MoveCost = leg.MoveCost
	origin.RouteShape = leg.RouteShape
	return nil
}

// FindWaypoint returns the waypoint with the given ID, for handlers that
// patch a single stop. Start and goal are not waypoints.
func FindWaypoint(c Chain, stopID uint) (*models.Stop, error) {
	for i := 1; i < len(c)-1; i++ {
		if c[i].ID == stopID {
			return &c[i], nil
		}
	}
	return nil, fmt.Errorf("waypoint %d: %w", stopID, ErrNotFound)
}
