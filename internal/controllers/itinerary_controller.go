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

// ItineraryController handles plan-level CRUD. Every mutation that touches
// the schedule goes through the recalculation engine; nothing here talks to
// the directions provider directly.
type ItineraryController struct {
	DB      *gorm.DB
	Engine  *planner.Engine
	Suggest *suggest.Client
}

func NewItineraryController(db *gorm.DB, engine *planner.Engine, sg *suggest.Client) *ItineraryController {
	return &ItineraryController{DB: db, Engine: engine, Suggest: sg}
}

type endpointInput struct {
	Name    string  `json:"name" binding:"required"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat" binding:"required"`
	Lng     float64 `json:"lng" binding:"required"`
}

type createItineraryInput struct {
	Title         string         `json:"title" binding:"required"`
	Memo          string         `json:"memo"`
	DepartureDate *time.Time     `json:"departure_date"`
	DepartureTime *time.Time     `json:"departure_time"` // schedule anchor
	TollUsed      bool           `json:"toll_used"`
	Start         *endpointInput `json:"start" binding:"required"`
	Goal          *endpointInput `json:"goal" binding:"required"`
}

// CreateItinerary creates the plan with its start and goal stops and runs
// one full recomputation so the start→goal leg and schedule are consistent
// from the first read.
func (ic *ItineraryController) CreateItinerary(c *gin.Context) {
	var input createItineraryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateItinerary: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	userID := authUserID(c)

	tx := ic.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}

	itin := models.Itinerary{
		UserID:        userID,
		Title:         input.Title,
		Memo:          input.Memo,
		DepartureDate: input.DepartureDate,
	}
	if err := tx.Create(&itin).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create itinerary failed: " + err.Error()})
		return
	}

	start := models.Stop{
		ItineraryID:   itin.ID,
		Kind:          models.StopKindStart,
		Name:          input.Start.Name,
		Address:       input.Start.Address,
		Lat:           input.Start.Lat,
		Lng:           input.Start.Lng,
		TollUsed:      input.TollUsed,
		DepartureTime: input.DepartureTime,
	}
	goal := models.Stop{
		ItineraryID: itin.ID,
		Kind:        models.StopKindGoal,
		Name:        input.Goal.Name,
		Address:     input.Goal.Address,
		Lat:         input.Goal.Lat,
		Lng:         input.Goal.Lng,
	}

	chain := planner.Chain{start, goal}
	out, err := ic.Engine.Apply(c.Request.Context(), planner.Edit{Kind: planner.EditBulkAdopt}, chain)
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return
	}

	if err := saveChain(tx, &itin, out); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create stops failed: " + err.Error()})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction commit failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"itinerary": itin,
		"stops":     out,
		"summary":   planner.BuildSummary(out),
	})
}

// ListItineraries returns the authenticated user's plans.
func (ic *ItineraryController) ListItineraries(c *gin.Context) {
	userID := authUserID(c)

	var itins []models.Itinerary
	if err := ic.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&itins).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"itineraries": itins})
}

// GetItinerary returns one plan with its ordered stops, schedule summary
// and the chain geometry as GeoJSON.
func (ic *ItineraryController) GetItinerary(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	itin, err := findOwnedItinerary(ic.DB, itinID, authUserID(c))
	if err != nil {
		respondPlannerError(c, err)
		return
	}

	chain, err := loadChain(ic.DB, itin.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	geometry, err := convertWKBToGeoJSON(itin.Geometry)
	if err != nil {
		logrus.WithError(err).Warn("GetItinerary: stored geometry is unreadable")
	}

	c.JSON(http.StatusOK, gin.H{
		"itinerary": itin,
		"stops":     chain,
		"summary":   planner.BuildSummary(chain),
		"geometry":  geometry,
	})
}

type updateItineraryInput struct {
	Title         *string    `json:"title"`
	Memo          *string    `json:"memo"`
	DepartureDate *time.Time `json:"departure_date"`
	DepartureTime *time.Time `json:"departure_time"` // schedule anchor
	ClearAnchor   bool       `json:"clear_departure_time"`
}

// UpdateItinerary edits plan metadata. A departure-time change is an
// anchor edit: the schedule stage re-runs, the route stage does not. Pure
// metadata edits skip recomputation entirely.
func (ic *ItineraryController) UpdateItinerary(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input updateItineraryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx := ic.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	if err := lockItinerary(tx, itinID); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	itin, err := findOwnedItinerary(tx, itinID, authUserID(c))
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return
	}

	if input.Title != nil {
		itin.Title = *input.Title
	}
	if input.Memo != nil {
		itin.Memo = *input.Memo
	}
	if input.DepartureDate != nil {
		itin.DepartureDate = input.DepartureDate
	}

	edit := planner.Edit{Kind: planner.EditMemo}
	chain, err := loadChain(tx, itin.ID)
	if err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if input.DepartureTime != nil || input.ClearAnchor {
		edit.Kind = planner.EditAnchor
		if input.ClearAnchor {
			chain.Start().DepartureTime = nil
		} else {
			chain.Start().DepartureTime = input.DepartureTime
		}
	}

	out, err := ic.Engine.Apply(c.Request.Context(), edit, chain)
	if err != nil {
		tx.Rollback()
		respondPlannerError(c, err)
		return
	}

	if err := saveChain(tx, itin, out); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction commit failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"itinerary": itin,
		"stops":     out,
		"summary":   planner.BuildSummary(out),
	})
}

// DeleteItinerary removes a plan and all of its stops.
func (ic *ItineraryController) DeleteItinerary(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	itin, err := findOwnedItinerary(ic.DB, itinID, authUserID(c))
	if err != nil {
		respondPlannerError(c, err)
		return
	}

	tx := ic.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}

	if err := tx.Where("itinerary_id = ?", itin.ID).Delete(&models.Stop{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete stops: " + err.Error()})
		return
	}
	if err := tx.Delete(itin).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete itinerary: " + err.Error()})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction commit failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Itinerary deleted successfully"})
}

// GetSuggestions asks the suggestion service for spots that fit the plan.
// The collaborator is best-effort: failures are logged and an empty list is
// returned rather than surfacing a provider error.
func (ic *ItineraryController) GetSuggestions(c *gin.Context) {
	itinID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	itin, err := findOwnedItinerary(ic.DB, itinID, authUserID(c))
	if err != nil {
		respondPlannerError(c, err)
		return
	}

	if !ic.Suggest.Enabled() {
		c.JSON(http.StatusOK, gin.H{"suggestions": []suggest.Suggestion{}})
		return
	}

	chain, err := loadChain(ic.DB, itin.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	names := make([]string, 0, len(chain))
	for _, s := range chain {
		names = append(names, s.Name)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	suggestions, err := ic.Suggest.GenerateSuggestions(ctx, itin.Title, names)
	if err != nil {
		logrus.WithError(err).Warn("GetSuggestions: suggestion service failed")
		suggestions = []suggest.Suggestion{}
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
