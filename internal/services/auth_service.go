package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/espaceclient/backend/internal/models"
)

const (
	lockoutWindow      = 30 * time.Minute
	lockoutMaxFailures = 3
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	NumeroClient string `json:"numero_client" validate:"required,numeric,min=8" example:"3961515267"` // Client number
	CodeSecret   string `json:"code_secret" validate:"required,min=5" example:"52302"`                // Secret code
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token   string         `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Profile models.Profile `json:"profile"`                                                 // Client profile
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

// Login authenticates a client with their number and secret code
// @Summary Login client
// @Description Authenticate a client with numero_client and code_secret
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Invalid credentials"
// @Failure 423 {string} string "Account temporarily locked"
// @Failure 500 {string} string "Internal server error"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	log.Printf("[AUTH] Login request for client: %s", req.NumeroClient)

	// Lockout is evaluated before the credentials so a locked account
	// leaks nothing about whether the secret code was right.
	if err := s.checkLockout(req.NumeroClient); err != nil {
		if err == ErrCompteVerrouille {
			log.Printf("[AUTH] Account locked for client: %s", req.NumeroClient)
			s.sendErrorResponse(w, "Compte temporairement verrouillé. Réessayez dans 30 minutes.", http.StatusLocked, nil)
			return
		}
		log.Printf("[AUTH] Lockout check failed for %s: %v", req.NumeroClient, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	var profile models.Profile
	err := s.db.QueryRow(
		`SELECT id, nom, prenom, email, numero_client, code_secret, localisation, statut, derniere_connexion, date_creation
		 FROM profiles WHERE numero_client = $1`,
		req.NumeroClient,
	).Scan(&profile.ID, &profile.Nom, &profile.Prenom, &profile.Email, &profile.NumeroClient,
		&profile.CodeSecret, &profile.Localisation, &profile.Statut, &profile.DerniereConnexion, &profile.DateCreation)
	if err != nil {
		log.Printf("[AUTH] Client not found: %s", req.NumeroClient)
		s.recordAttempt(req.NumeroClient, r, models.TentativeFailed, "numéro client inconnu")
		s.sendErrorResponse(w, "Identifiants invalides", http.StatusUnauthorized, nil)
		return
	}

	if profile.CodeSecret != req.CodeSecret {
		log.Printf("[AUTH] %v for client: %s", ErrCodeSecretInvalide, req.NumeroClient)
		s.recordAttempt(req.NumeroClient, r, models.TentativeFailed, ErrCodeSecretInvalide.Error())
		s.sendErrorResponse(w, "Identifiants invalides", http.StatusUnauthorized, nil)
		return
	}

	if profile.Statut != models.ProfileStatutActive {
		log.Printf("[AUTH] Inactive profile for client: %s", req.NumeroClient)
		s.recordAttempt(req.NumeroClient, r, models.TentativeFailed, "profil inactif")
		s.sendErrorResponse(w, "Compte inactif. Contactez votre conseiller.", http.StatusForbidden, nil)
		return
	}

	s.recordAttempt(req.NumeroClient, r, models.TentativeSuccess, "")

	sessionID := uuid.New().String()
	if _, err := s.db.Exec(
		`INSERT INTO sessions_connexion (id, user_id, ip_address, user_agent, localisation, statut) VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, profile.ID, r.RemoteAddr, r.UserAgent(), profile.Localisation, models.SessionActive,
	); err != nil {
		log.Printf("[AUTH] Session creation failed for %s: %v", profile.ID, err)
	}

	if _, err := s.db.Exec(`UPDATE profiles SET derniere_connexion = NOW() WHERE id = $1`, profile.ID); err != nil {
		log.Printf("[AUTH] Failed to update last connection for %s: %v", profile.ID, err)
	}

	token, err := generateJWT(profile.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", profile.ID, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for client %s (ID: %s)", profile.NumeroClient, profile.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Profile: profile})
}

// checkLockout returns ErrCompteVerrouille when the client accumulated too
// many failed attempts inside the lookback window. A locked retry writes no
// attempt row of its own; an extra failed row here would roll the window
// forward and keep the account locked past the promised 30 minutes.
func (s *AuthService) checkLockout(numeroClient string) error {
	var failures int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tentatives_connexion
		 WHERE numero_client = $1 AND statut = $2 AND date_tentative > NOW() - INTERVAL '30 minutes'`,
		numeroClient, models.TentativeFailed,
	).Scan(&failures)
	if err != nil {
		return err
	}
	if failures >= lockoutMaxFailures {
		return ErrCompteVerrouille
	}
	return nil
}

func (s *AuthService) recordAttempt(numeroClient string, r *http.Request, statut, raison string) {
	_, err := s.db.Exec(
		`INSERT INTO tentatives_connexion (numero_client, ip_address, user_agent, statut, raison) VALUES ($1, $2, $3, $4, $5)`,
		numeroClient, r.RemoteAddr, r.UserAgent(), statut, raison,
	)
	if err != nil {
		log.Printf("[AUTH] Failed to record login attempt for %s: %v", numeroClient, err)
	}
}

// Logout revokes the bearer token and closes the client's open sessions
// @Summary Logout client
// @Description Logout client, blacklist token and close active sessions
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	if userID := r.Context().Value("userID"); userID != nil {
		_, err := s.db.Exec(
			`UPDATE sessions_connexion SET statut = $1, date_deconnexion = NOW() WHERE user_id = $2 AND statut = $3`,
			models.SessionClosed, userID, models.SessionActive,
		)
		if err != nil {
			log.Printf("[AUTH] Failed to close sessions for %v: %v", userID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Déconnexion réussie"})
}

// GetProfile returns the authenticated client's profile
// @Summary Get client profile
// @Description Get authenticated client's profile information
// @Tags auth
// @Produce json
// @Success 200 {object} models.Profile "Client profile"
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "Profile not found"
// @Failure 500 {string} string "Internal server error"
// @Router /auth/profil [get]
func (s *AuthService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		log.Printf("[AUTH] Unauthorized profile request - no user ID in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var profile models.Profile
	err := s.db.QueryRow(
		`SELECT id, nom, prenom, email, numero_client, localisation, statut, derniere_connexion, date_creation
		 FROM profiles WHERE id = $1`,
		userID,
	).Scan(&profile.ID, &profile.Nom, &profile.Prenom, &profile.Email, &profile.NumeroClient,
		&profile.Localisation, &profile.Statut, &profile.DerniereConnexion, &profile.DateCreation)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("[AUTH] Profile not found for ID: %v", userID)
			http.Error(w, "Profile not found", http.StatusNotFound)
		} else {
			log.Printf("[AUTH] Failed to fetch profile for ID %v: %v", userID, err)
			http.Error(w, "Failed to fetch profile", http.StatusInternalServerError)
		}
		return
	}

	log.Printf("[AUTH] Profile fetched for client %s", profile.NumeroClient)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func generateJWT(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
