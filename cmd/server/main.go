package main

import (
	"log"
	"net/http"

	"tripline/internal/config"
	"tripline/internal/controllers"
	"tripline/internal/directions"
	"tripline/internal/logger"
	"tripline/internal/middleware"
	"tripline/internal/planner"
	"tripline/internal/routes"
	"tripline/internal/suggest"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// External collaborators, injected once at construction time
	provider := directions.NewGoogleProvider(config.GoogleAPIKey())
	engine := planner.NewEngine(provider)
	suggestClient := suggest.NewClient(config.SuggestBaseURL(), config.SuggestAPIKey())

	ac := controllers.NewAuthController(config.DB)
	ic := controllers.NewItineraryController(config.DB, engine, suggestClient)
	sc := controllers.NewStopController(config.DB, engine, suggestClient)

	// Setup Gin router
	r := routes.SetupRouter(ac, ic, sc)

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	addr := config.ServerAddr()
	log.Printf("🚀 Server running at %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
