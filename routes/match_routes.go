package routes

import (
	"pairup_server/controllers"
	"pairup_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for matchmaking operations under /api/match
func RegisterMatchRoutes(r *mux.Router, statusService *services.StatusService, queueService *services.QueueService) {
	controller := controllers.NewMatchController(statusService, queueService)

	matchRouter := r.PathPrefix("/api/match").Subrouter()

	matchRouter.HandleFunc("/request", controller.RequestMatch).Methods("POST")
	matchRouter.HandleFunc("/cancel", controller.CancelMatch).Methods("POST")
	matchRouter.HandleFunc("/heartbeat", controller.Heartbeat).Methods("POST")
	matchRouter.HandleFunc("/status", controller.GetStatus).Methods("GET")
}
