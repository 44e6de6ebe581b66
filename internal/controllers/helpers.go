package controllers

import (
	"encoding/binary"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"tripline/internal/models"
	"tripline/internal/planner"
)

// authUserID extracts the authenticated user from the JWT claims set by the
// middleware.
func authUserID(c *gin.Context) uint {
	return uint(c.MustGet("user_id").(float64))
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// findOwnedItinerary fetches the itinerary and enforces ownership. A plan
// belonging to someone else is indistinguishable from a missing one.
func findOwnedItinerary(db *gorm.DB, itineraryID, userID uint) (*models.Itinerary, error) {
	var itin models.Itinerary
	if err := db.Where("id = ? AND user_id = ?", itineraryID, userID).First(&itin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, planner.ErrNotFound
		}
		return nil, err
	}
	return &itin, nil
}

// loadChain reads the itinerary's stops and orders them into a chain.
func loadChain(db *gorm.DB, itineraryID uint) (planner.Chain, error) {
	var stops []models.Stop
	if err := db.Where("itinerary_id = ?", itineraryID).Order("position ASC").Find(&stops).Error; err != nil {
		return nil, err
	}
	return planner.NewChain(stops)
}

// lockItinerary takes the per-itinerary advisory lock for the duration of
// the transaction, serializing concurrent edits to the same plan.
func lockItinerary(tx *gorm.DB, itineraryID uint) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", int64(itineraryID)).Error
}

// saveChain persists every stop of the recomputed chain and refreshes the
// itinerary's stored geometry.
func saveChain(tx *gorm.DB, itin *models.Itinerary, chain planner.Chain) error {
	for i := range chain {
		chain[i].ItineraryID = itin.ID
		if err := tx.Save(&chain[i]).Error; err != nil {
			return err
		}
	}

	wkbGeom, err := chainGeometryWKB(chain)
	if err != nil {
		return err
	}
	itin.Geometry = wkbGeom
	return tx.Save(itin).Error
}

// chainGeometryWKB builds a WKB LINESTRING through the stop coordinates.
func chainGeometryWKB(chain planner.Chain) ([]byte, error) {
	coords := make([]geom.Coord, 0, len(chain))
	for _, s := range chain {
		coords = append(coords, geom.Coord{s.Lng, s.Lat})
	}
	line, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(line, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// respondPlannerError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, missing 404, provider failure 502 (safe to retry).
func respondPlannerError(c *gin.Context, err error) {
	var vErr *planner.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
		return
	}
	if errors.Is(err, planner.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var pErr *planner.ProviderError
	if errors.As(err, &pErr) {
		logrus.WithError(err).Error("directions provider call failed, edit rolled back")
		c.JSON(http.StatusBadGateway, gin.H{"error": "directions temporarily unavailable, please retry"})
		return
	}
	logrus.WithError(err).Error("unexpected edit failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
