package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tripline/internal/models"
	"tripline/internal/planner"
	"tripline/internal/suggest"
)

// StopController translates stop edits into sequence mutations plus a
// classified edit for the recalculation engine. Each mutating request runs
// inside one transaction guarded by the per-itinerary advisory lock;
// structural change, route stage and schedule stage commit or roll back as
// one unit.
type StopController struct {
	DB      *gorm.DB
	Engine  *planner.Engine
	Suggest *suggest.Client
}

func NewStopController(db *gorm.DB, engine *planner.Engine, sg *suggest.Client) *StopController {
	return &StopController{DB: db, Engine: engine, Suggest: sg}
}

type insertStopInput struct {
	Name            string  `json:"name" binding:"required"`
	Address         string  `json:"address"`
	Lat             float64 `json:"lat" binding:"required"`
	Lng             float64 `json:"lng" binding:"required"`
	TollUsed        bool    `json:"toll_used"`
	StayDurationMin *int    `json:"stay_duration_min"`
	Memo            string  `json:"memo"`
}

func (in *insertStopInput) toStop() (models.Stop, error) {
	if in.StayDurationMin != nil && *in.StayDurationMin < 0 {
		return models.Stop{}, &planner.ValidationError{
			Field:   "stay_duration_min",
			Message: "must be zero or positive",
		}
	}
	return models.Stop{
		Kind:            models.StopKindWaypoint,
		Name:            in.Name,
		Address:         in.Address,
		Lat:             in.Lat,
		Lng:             in.Lng,
		TollUsed:        in.TollUsed,
		StayDurationMin: in.StayDurationMin,
		Memo:            in.Memo,
	}, nil
}

// editItinerary runs one edit end-to-end: advisory lock, ownership check,
// chain load, the caller's mutation+classification, engine recomputation,
// persistence. Any error rolls the whole transaction back.
func (sc *StopController) editItinerary(
	c *gin.Context,
	itinID uint,
	mutate func(chain planner.Chain) (planner.Chain, planner.Edit, error),
) (planner.Chain, bool) {
	tx := sc.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return nil, false
	}
	if err := lockItinerary(tx, itinID); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	itin, err := findOwnedItinerary(tx, itinID, authUserID(c))
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return nil, false
	}

	chain, err := loadChain(tx, itin.ID)
	if err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	mutated, edit, err := mutate(chain)
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return nil, false
	}

	out, err := sc.Engine.Apply(c.Request.Context(), edit, mutated)
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return nil, false
	}

	// Rows dropped by the mutation must be deleted before the survivors
	// are saved, otherwise renumbered positions collide.
	if err := sc.deleteOrphans(tx, chain, out); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	if err := saveChain(tx, itin, out); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction commit failed: " + err.Error()})
		return nil, false
	}

	logrus.WithFields(logrus.Fields{
		"itinerary_id": itinID,
		"edit":         edit.Kind.String(),
	}).Info("itinerary edit committed")

	return out, true
}

// deleteOrphans removes stop rows that the mutation dropped from the chain.
func (sc *StopController) deleteOrphans(tx *gorm.DB, before, after planner.Chain) error {
	kept := make(map[uint]struct{}, len(after))
	for _, s := range after {
		if s.ID != 0 {
			kept[s.ID] = struct{}{}
		}
	}
	for _, s := range before {
		if _, ok := kept[s.ID]; !ok {
			if err := tx.Delete(&models.Stop{}, s.ID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// InsertStop appends a waypoint at position N+1. Every adjacency may have
// changed, so the full leg chain is recomputed before the schedule.
func (sc *StopController) InsertStop(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input insertStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stop, err := input.toStop()
	if err != nil {
		respondPlannerError(c, err)
		return
	}

	out, ok := sc.editItinerary(c, itinID, func(chain planner.Chain) (planner.Chain, planner.Edit, error) {
		return planner.AppendWaypoint(chain, stop), planner.Edit{Kind: planner.EditInsert}, nil
	})
	if !ok {
		return
	}

	sc.dispatchGenre(out)

	c.JSON(http.StatusCreated, gin.H{
		"stops":   out,
		"summary": planner.BuildSummary(out),
	})
}

type bulkAdoptInput struct {
	Stops []insertStopInput `json:"stops" binding:"required,min=1"`
}

// BulkAdoptStops appends many waypoints in one pass and recomputes the
// route and schedule exactly once, instead of once per stop.
func (sc *StopController) BulkAdoptStops(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input bulkAdoptInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stops := make([]models.Stop, 0, len(input.Stops))
	for i := range input.Stops {
		stop, err := input.Stops[i].toStop()
		if err != nil {
			respondPlannerError(c, err)
			return
		}
		stops = append(stops, stop)
	}

	out, ok := sc.editItinerary(c, itinID, func(chain planner.Chain) (planner.Chain, planner.Edit, error) {
		return planner.BulkAppendWaypoints(chain, stops), planner.Edit{Kind: planner.EditBulkAdopt}, nil
	})
	if !ok {
		return
	}

	sc.dispatchGenre(out)

	c.JSON(http.StatusCreated, gin.H{
		"stops":   out,
		"summary": planner.BuildSummary(out),
	})
}

// RemoveStop deletes a waypoint; later waypoints shift down one position
// and the full route and schedule are recomputed.
func (sc *StopController) RemoveStop(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	stopID, ok := paramUint(c, "stopID")
	if !ok {
		return
	}

	out, ok := sc.editItinerary(c, itinID, func(chain planner.Chain) (planner.Chain, planner.Edit, error) {
		wp, err := planner.FindWaypoint(chain, stopID)
		if err != nil {
			return nil, planner.Edit{}, err
		}
		mutated, err := planner.RemoveWaypointAt(chain, wp.Position)
		if err != nil {
			return nil, planner.Edit{}, err
		}
		return mutated, planner.Edit{Kind: planner.EditRemove}, nil
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stops":   out,
		"summary": planner.BuildSummary(out),
	})
}

type reorderInput struct {
	StopIDs []uint `json:"stop_ids" binding:"required"`
}

// ReorderStops atomically replaces the waypoint ordering. The submitted ID
// list must be an exact permutation of the current waypoints; otherwise the
// itinerary is left untouched and a validation error is returned.
func (sc *StopController) ReorderStops(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input reorderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, ok := sc.editItinerary(c, itinID, func(chain planner.Chain) (planner.Chain, planner.Edit, error) {
		mutated, err := planner.ReorderWaypoints(chain, input.StopIDs)
		if err != nil {
			return nil, planner.Edit{}, err
		}
		return mutated, planner.Edit{Kind: planner.EditReorder}, nil
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stops":   out,
		"summary": planner.BuildSummary(out),
	})
}

type patchStopInput struct {
	TollUsed        *bool   `json:"toll_used"`
	StayDurationMin *int    `json:"stay_duration_min"`
	Memo            *string `json:"memo"`
	Name            *string `json:"name"`
}

// classify maps the patch onto the strongest edit kind it contains: a toll
// toggle needs its leg recomputed, a stay change only shifts the schedule,
// and memo/name edits recompute nothing.
func (in *patchStopInput) classify(stopID uint) planner.Edit {
	switch {
	case in.TollUsed != nil:
		return planner.Edit{Kind: planner.EditToll, StopID: stopID}
	case in.StayDurationMin != nil:
		return planner.Edit{Kind: planner.EditStay, StopID: stopID}
	default:
		return planner.Edit{Kind: planner.EditMemo, StopID: stopID}
	}
}

// PatchStop edits a single stop's toll preference, stay duration or memo.
func (sc *StopController) PatchStop(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	stopID, ok := paramUint(c, "stopID")
	if !ok {
		return
	}

	var input patchStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.StayDurationMin != nil && *input.StayDurationMin < 0 {
		respondPlannerError(c, &planner.ValidationError{
			Field:   "stay_duration_min",
			Message: "must be zero or positive",
		})
		return
	}

	out, ok := sc.editItinerary(c, itinID, func(chain planner.Chain) (planner.Chain, planner.Edit, error) {
		mutated := append(planner.Chain(nil), chain...)

		target, err := findEditableStop(mutated, stopID, input)
		if err != nil {
			return nil, planner.Edit{}, err
		}

		if input.TollUsed != nil {
			target.TollUsed = *input.TollUsed
		}
		if input.StayDurationMin != nil {
			target.StayDurationMin = input.StayDurationMin
		}
		if input.Memo != nil {
			target.Memo = *input.Memo
		}
		if input.Name != nil {
			target.Name = *input.Name
		}

		return mutated, input.classify(stopID), nil
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stops":   out,
		"summary": planner.BuildSummary(out),
	})
}

// findEditableStop locates the patch target and validates the fields
// against the stop's kind: the goal owns no outgoing leg (no toll), and
// only waypoints have a stay.
func findEditableStop(chain planner.Chain, stopID uint, input patchStopInput) (*models.Stop, error) {
	for i := range chain {
		if chain[i].ID != stopID {
			continue
		}
		s := &chain[i]
		if input.TollUsed != nil && s.Kind == models.StopKindGoal {
			return nil, &planner.ValidationError{
				Field:   "toll_used",
				Message: "goal stop has no outgoing leg",
			}
		}
		if input.StayDurationMin != nil && !s.IsWaypoint() {
			return nil, &planner.ValidationError{
				Field:   "stay_duration_min",
				Message: "only waypoints have a stay duration",
			}
		}
		return s, nil
	}
	return nil, planner.ErrNotFound
}

// dispatchGenre classifies freshly inserted waypoints on a goroutine. The
// classifier is outside the edit's transaction boundary: it retries with
// backoff internally and its failures are logged and dropped.
func (sc *StopController) dispatchGenre(chain planner.Chain) {
	if !sc.Suggest.Enabled() {
		return
	}

	for _, s := range chain {
		if !s.IsWaypoint() || s.Genre != "" {
			continue
		}
		go func(stopID uint, name, address string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			genre, err := sc.Suggest.ClassifyGenre(ctx, name, address)
			if err != nil {
				logrus.WithError(err).WithField("stop_id", stopID).Warn("genre classification failed")
				return
			}
			if err := sc.DB.Model(&models.Stop{}).Where("id = ?", stopID).Update("genre", genre).Error; err != nil {
				logrus.WithError(err).WithField("stop_id", stopID).Warn("genre update failed")
			}
		}(s.ID, s.Name, s.Address)
	}
}
