package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"tripline/internal/controllers"
)

// SetupRouter wires every route group. Controllers arrive constructed so
// the router stays unaware of providers and database handles.
func SetupRouter(ac *controllers.AuthController, ic *controllers.ItineraryController, sc *controllers.StopController) *gin.Engine {
	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Request logging middleware
	r.Use(ginlog.SetLogger())

	AuthRoutes(r, ac)
	ItineraryRoutes(r, ic, sc)

	return r
}
