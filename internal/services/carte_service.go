package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/espaceclient/backend/internal/models"
)

type CarteService struct {
	db        *sql.DB
	notifier  *NotificationService
	validator *ValidationHelper
}

func NewCarteService(db *sql.DB, notifier *NotificationService) *CarteService {
	return &CarteService{db: db, notifier: notifier, validator: NewValidationHelper()}
}

// PlafondsRequest adjusts the payment and withdrawal ceilings of a card
// @Description Card ceilings request structure
type PlafondsRequest struct {
	PlafondPaiement models.Montant `json:"plafond_paiement" validate:"required" example:"3000.00"`
	PlafondRetrait  models.Montant `json:"plafond_retrait" validate:"required" example:"1000.00"`
}

// CarteRequest is the payload for registering a card
// @Description Card request structure
type CarteRequest struct {
	Numero          string         `json:"numero" validate:"required" example:"4970 10** **** 3456"`
	Titulaire       string         `json:"titulaire" validate:"required" example:"PAOLA MARIE MADELEINE"`
	Type            string         `json:"type" validate:"required" example:"Visa Premier"`
	DateExpiration  string         `json:"date_expiration" validate:"required" example:"09/27"`
	PlafondPaiement models.Montant `json:"plafond_paiement" example:"3000.00"`
	PlafondRetrait  models.Montant `json:"plafond_retrait" example:"1000.00"`
	CompteID        *int64         `json:"compte_id" example:"1"`
}

const carteColumns = `id, numero, titulaire, type, date_expiration, plafond_paiement, plafond_retrait, statut, compte_id, user_id, date_creation`

func scanCarte(row interface{ Scan(...any) error }, c *models.Carte) error {
	return row.Scan(&c.ID, &c.Numero, &c.Titulaire, &c.Type, &c.DateExpiration,
		&c.PlafondPaiement, &c.PlafondRetrait, &c.Statut, &c.CompteID, &c.UserID, &c.DateCreation)
}

// GetCartes lists the client's cards
// @Summary List cards
// @Description Get all cards belonging to the authenticated client
// @Tags cartes
// @Produce json
// @Success 200 {array} models.Carte "Cards"
// @Failure 401 {string} string "Unauthorized"
// @Router /cartes [get]
func (s *CarteService) GetCartes(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.Query(
		`SELECT `+carteColumns+` FROM cartes WHERE user_id = $1 ORDER BY date_creation`,
		userID,
	)
	if err != nil {
		log.Printf("[CARTE] Failed to list cards for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch cards", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cartes := []models.Carte{}
	for rows.Next() {
		var c models.Carte
		if err := scanCarte(rows, &c); err != nil {
			log.Printf("[CARTE] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch cards", http.StatusInternalServerError, nil)
			return
		}
		cartes = append(cartes, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cartes)
}

// GetCarte returns a single card
// @Summary Get card
// @Description Get one card by ID, scoped to the authenticated client
// @Tags cartes
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} models.Carte "Card"
// @Failure 404 {string} string "Card not found"
// @Router /cartes/{id} [get]
func (s *CarteService) GetCarte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	carteID := chi.URLParam(r, "id")

	var c models.Carte
	err := scanCarte(s.db.QueryRow(
		`SELECT `+carteColumns+` FROM cartes WHERE id = $1 AND user_id = $2`,
		carteID, userID,
	), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Carte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[CARTE] Failed to fetch card %s: %v", carteID, err)
			SendErrorResponse(w, "Failed to fetch card", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// UpdatePlafonds changes a card's ceilings
// @Summary Update card ceilings
// @Description Update payment and withdrawal ceilings of a card
// @Tags cartes
// @Accept json
// @Produce json
// @Param id path int true "Card ID"
// @Param request body PlafondsRequest true "Ceilings request"
// @Success 200 {object} models.Carte "Updated card"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Card not found"
// @Router /cartes/{id}/plafonds [put]
func (s *CarteService) UpdatePlafonds(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	carteID := chi.URLParam(r, "id")

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PlafondsRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if req.PlafondPaiement <= 0 || req.PlafondRetrait <= 0 {
		SendErrorResponse(w, "Les plafonds doivent être positifs", http.StatusBadRequest, nil)
		return
	}

	var c models.Carte
	err := scanCarte(s.db.QueryRow(
		`UPDATE cartes SET plafond_paiement = $1, plafond_retrait = $2
		 WHERE id = $3 AND user_id = $4
		 RETURNING `+carteColumns,
		req.PlafondPaiement, req.PlafondRetrait, carteID, userID,
	), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Carte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[CARTE] Ceiling update failed for %s: %v", carteID, err)
			SendErrorResponse(w, "Failed to update card", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// ToggleStatut blocks an active card or unblocks a blocked one
// @Summary Toggle card status
// @Description Switch a card between active and blocked
// @Tags cartes
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} models.Carte "Updated card"
// @Failure 404 {string} string "Card not found"
// @Router /cartes/{id}/statut [put]
func (s *CarteService) ToggleStatut(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	carteID := chi.URLParam(r, "id")

	var c models.Carte
	err := scanCarte(s.db.QueryRow(
		`UPDATE cartes SET statut = CASE WHEN statut = $1 THEN $2 ELSE $1 END
		 WHERE id = $3 AND user_id = $4
		 RETURNING `+carteColumns,
		models.CarteStatutActive, models.CarteStatutBloquee, carteID, userID,
	), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Carte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[CARTE] Status toggle failed for %s: %v", carteID, err)
			SendErrorResponse(w, "Failed to update card", http.StatusInternalServerError, nil)
		}
		return
	}

	if c.Statut == models.CarteStatutBloquee {
		s.notifier.createNotification(c.UserID, "Carte bloquée",
			"Votre carte se terminant par "+lastDigits(c.Numero)+" a été bloquée.", models.NotificationSecurity)
	} else {
		s.notifier.createNotification(c.UserID, "Carte débloquée",
			"Votre carte se terminant par "+lastDigits(c.Numero)+" est de nouveau active.", models.NotificationInfo)
	}

	log.Printf("[CARTE] Card %d is now %s", c.ID, c.Statut)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// CreateCarte registers a new card for the client
// @Summary Create card
// @Description Register a new card for the authenticated client
// @Tags cartes
// @Accept json
// @Produce json
// @Param request body CarteRequest true "Card request"
// @Success 201 {object} models.Carte "Created card"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Router /cartes [post]
func (s *CarteService) CreateCarte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CarteRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var c models.Carte
	err := scanCarte(s.db.QueryRow(
		`INSERT INTO cartes (numero, titulaire, type, date_expiration, plafond_paiement, plafond_retrait, statut, compte_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+carteColumns,
		req.Numero, req.Titulaire, req.Type, req.DateExpiration,
		req.PlafondPaiement, req.PlafondRetrait, models.CarteStatutActive, req.CompteID, userID,
	), &c)
	if err != nil {
		log.Printf("[CARTE] Creation failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to create card", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CARTE] Card %d created for %v", c.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// DeleteCarte removes a card
// @Summary Delete card
// @Description Delete a card, scoped to the authenticated client
// @Tags cartes
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Card not found"
// @Router /cartes/{id} [delete]
func (s *CarteService) DeleteCarte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	carteID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`DELETE FROM cartes WHERE id = $1 AND user_id = $2`, carteID, userID)
	if err != nil {
		log.Printf("[CARTE] Deletion failed for %s: %v", carteID, err)
		SendErrorResponse(w, "Failed to delete card", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Carte introuvable", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Carte supprimée"})
}

func lastDigits(numero string) string {
	if len(numero) <= 4 {
		return numero
	}
	return numero[len(numero)-4:]
}
