package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"pairup_server/routes"
	"pairup_server/services"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Initialize Redis client and store adapter
	log.Println("Initializing Redis client...")
	redisClient := services.InitializeRedisClient()
	redisService := &services.RedisService{Client: redisClient}
	log.Println("Redis client initialized.")

	// Initialize Services
	statusService := &services.StatusService{Redis: redisService}
	poolService := &services.PoolService{Redis: redisService}
	ledgerService := &services.LedgerService{Redis: redisService}
	queueService := &services.QueueService{Redis: redisService}
	notificationService := &services.NotificationService{Redis: redisService}

	questionServiceURL := os.Getenv("QUESTION_SERVICE_URL")
	if questionServiceURL == "" {
		questionServiceURL = "http://localhost:8081"
	}
	questionService := services.NewQuestionService(questionServiceURL)

	matchService := &services.MatchService{
		Redis:     redisService,
		Status:    statusService,
		Pools:     poolService,
		Ledger:    ledgerService,
		Queue:     queueService,
		Questions: questionService,
		Notifier:  notificationService,
	}

	// Start the matching worker; it runs for the process lifetime.
	go matchService.Run(context.Background())

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to PairUp")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Register routes
	routes.RegisterMatchRoutes(r, statusService, queueService)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
