package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/espaceclient/backend/docs"
	"github.com/espaceclient/backend/internal/config"
	"github.com/espaceclient/backend/internal/database"
	mW "github.com/espaceclient/backend/internal/middleware"
	"github.com/espaceclient/backend/internal/services"
)

// @title Espace Client API
// @version 1.0
// @description API for the online banking client portal
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("email.api_url", "EMAIL_API_URL")
	viper.BindEnv("email.service_id", "EMAIL_SERVICE_ID")
	viper.BindEnv("email.template_id", "EMAIL_TEMPLATE_ID")
	viper.BindEnv("email.public_key", "EMAIL_PUBLIC_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Espace Client API"
	docs.SwaggerInfo.Description = "API for the online banking client portal"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	virementCfg := config.LoadVirementConfig()

	authService := services.NewAuthService(db, redisClient)
	compteService := services.NewCompteService(db)
	beneficiaireService := services.NewBeneficiaireService(db)
	transactionService := services.NewTransactionService(db)
	notificationService := services.NewNotificationService(db)
	carteService := services.NewCarteService(db, notificationService)
	emailService := services.NewEmailService(db)
	virementService := services.NewVirementService(db, virementCfg, emailService, notificationService)
	sepaService := services.NewSepaService(db)
	ribService := services.NewRIBService(db, redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for card artwork
	r.Handle("/static/cartes/*", http.StripPrefix("/static/cartes/",
		mW.StaticFileServer("./static/cartes")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Post("/auth/logout", authService.Logout)
			r.Get("/auth/profil", authService.GetProfile)

			r.Get("/comptes", compteService.GetComptes)
			r.Get("/comptes/solde-total", compteService.GetSoldeTotal)
			r.Get("/comptes/rib-qr/{code}", ribService.ResolveRIB)
			r.Get("/comptes/{id}", compteService.GetCompte)
			r.Post("/comptes", compteService.CreateCompte)
			r.Put("/comptes/{id}", compteService.UpdateCompte)
			r.Delete("/comptes/{id}", compteService.DeleteCompte)
			r.Post("/comptes/{id}/rib-qr", ribService.GenerateRIBQR)

			r.Get("/beneficiaires", beneficiaireService.GetBeneficiaires)
			r.Get("/beneficiaires/recherche", beneficiaireService.SearchBeneficiaires)
			r.Get("/beneficiaires/{id}", beneficiaireService.GetBeneficiaire)
			r.Post("/beneficiaires", beneficiaireService.CreateBeneficiaire)
			r.Put("/beneficiaires/{id}", beneficiaireService.UpdateBeneficiaire)
			r.Delete("/beneficiaires/{id}", beneficiaireService.DeleteBeneficiaire)

			r.Get("/virements", virementService.GetVirements)
			r.Post("/virements", virementService.CreateVirement)
			r.Get("/virements/limite", virementService.GetLimite)
			r.Get("/virements/stats", virementService.GetStats)
			r.Get("/virements/{id}", virementService.GetVirement)
			r.Put("/virements/{id}/annuler", virementService.CancelVirement)
			r.Post("/virements/{id}/sepa", sepaService.GenerateSepa)
			r.Get("/virements/{id}/sepa/statut", sepaService.GetStatusReport)

			r.Get("/transactions", transactionService.GetTransactions)
			r.Get("/transactions/recentes", transactionService.GetRecentTransactions)
			r.Get("/transactions/recherche", transactionService.SearchTransactions)
			r.Get("/transactions/{id}", transactionService.GetTransaction)
			r.Post("/transactions", transactionService.CreateTransaction)
			r.Delete("/transactions/{id}", transactionService.DeleteTransaction)

			r.Get("/notifications", notificationService.GetNotifications)
			r.Get("/notifications/non-lues", notificationService.GetUnreadCount)
			r.Get("/notifications/{id}", notificationService.GetNotification)
			r.Post("/notifications", notificationService.CreateNotification)
			r.Put("/notifications/toutes-lues", notificationService.MarkAllAsRead)
			r.Put("/notifications/{id}/lue", notificationService.MarkAsRead)
			r.Delete("/notifications/lues", notificationService.DeleteReadNotifications)
			r.Delete("/notifications/{id}", notificationService.DeleteNotification)

			r.Get("/cartes", carteService.GetCartes)
			r.Get("/cartes/{id}", carteService.GetCarte)
			r.Post("/cartes", carteService.CreateCarte)
			r.Put("/cartes/{id}/plafonds", carteService.UpdatePlafonds)
			r.Put("/cartes/{id}/statut", carteService.ToggleStatut)
			r.Delete("/cartes/{id}", carteService.DeleteCarte)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
