package routes

import (
	"github.com/gin-gonic/gin"

	"tripline/internal/controllers"
	"tripline/internal/middleware"
)

func ItineraryRoutes(r *gin.Engine, ic *controllers.ItineraryController, sc *controllers.StopController) {
	itineraries := r.Group("/itineraries")
	itineraries.Use(middleware.RequireAuth())
	{
		itineraries.POST("", ic.CreateItinerary)
		itineraries.GET("", ic.ListItineraries)
		itineraries.GET("/:id", ic.GetItinerary)
		itineraries.PUT("/:id", ic.UpdateItinerary)
		itineraries.DELETE("/:id", ic.DeleteItinerary)
		itineraries.GET("/:id/suggestions", ic.GetSuggestions)

		itineraries.POST("/:id/stops", sc.InsertStop)
		itineraries.POST("/:id/stops/bulk", sc.BulkAdoptStops)
		itineraries.PUT("/:id/stops/reorder", sc.ReorderStops)
		itineraries.PATCH("/:id/stops/:stopID", sc.PatchStop)
		itineraries.DELETE("/:id/stops/:stopID", sc.RemoveStop)
	}
}
