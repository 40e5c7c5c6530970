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

type CompteService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCompteService(db *sql.DB) *CompteService {
	return &CompteService{db: db, validator: NewValidationHelper()}
}

// CompteRequest is the payload for opening or updating an account
// @Description Account request structure
type CompteRequest struct {
	Type    string `json:"type" validate:"required" example:"Compte Courant"`
	Numero  string `json:"numero" validate:"required" example:"00012345678"`
	IBAN    string `json:"iban" validate:"required,min=15" example:"FR7630004000031234567890143"`
	Devise  string `json:"devise" example:"EUR"`
	Couleur string `json:"couleur" example:"#008854"`
}

const compteColumns = `id, type, numero, solde, devise, couleur, iban, statut, limite_credit, user_id, date_creation`

func scanCompte(row interface{ Scan(...any) error }, c *models.Compte) error {
	return row.Scan(&c.ID, &c.Type, &c.Numero, &c.Solde, &c.Devise, &c.Couleur,
		&c.IBAN, &c.Statut, &c.LimiteCredit, &c.UserID, &c.DateCreation)
}

// SoldeTotalResponse aggregates the balances of a client's accounts
// @Description Total balance structure
type SoldeTotalResponse struct {
	SoldeTotal models.Montant `json:"solde_total"` // Sum of active account balances
	Devise     string         `json:"devise" example:"EUR"`
	Comptes    int            `json:"comptes" example:"2"` // Number of accounts counted
}

// GetComptes lists the authenticated client's accounts
// @Summary List accounts
// @Description Get all accounts belonging to the authenticated client
// @Tags comptes
// @Produce json
// @Success 200 {array} models.Compte "Accounts"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /comptes [get]
func (s *CompteService) GetComptes(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.Query(
		`SELECT `+compteColumns+` FROM comptes WHERE user_id = $1 ORDER BY date_creation`,
		userID,
	)
	if err != nil {
		log.Printf("[COMPTE] Failed to list accounts for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	comptes := []models.Compte{}
	for rows.Next() {
		var c models.Compte
		if err := scanCompte(rows, &c); err != nil {
			log.Printf("[COMPTE] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
			return
		}
		comptes = append(comptes, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(comptes)
}

// GetCompte returns one account of the authenticated client
// @Summary Get account
// @Description Get a single account by ID, scoped to the authenticated client
// @Tags comptes
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Compte "Account"
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "Account not found"
// @Router /comptes/{id} [get]
func (s *CompteService) GetCompte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	compteID := chi.URLParam(r, "id")

	var c models.Compte
	err := scanCompte(s.db.QueryRow(
		`SELECT `+compteColumns+` FROM comptes WHERE id = $1 AND user_id = $2`,
		compteID, userID,
	), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Compte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[COMPTE] Failed to fetch account %s: %v", compteID, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// GetSoldeTotal sums the balances of the client's active accounts
// @Summary Get total balance
// @Description Sum the balances of the authenticated client's active accounts
// @Tags comptes
// @Produce json
// @Success 200 {object} SoldeTotalResponse "Total balance"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /comptes/solde-total [get]
func (s *CompteService) GetSoldeTotal(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var resp SoldeTotalResponse
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(solde), 0)::text, COUNT(*) FROM comptes WHERE user_id = $1 AND statut = $2`,
		userID, models.CompteStatutActive,
	).Scan(&resp.SoldeTotal, &resp.Comptes)
	if err != nil {
		log.Printf("[COMPTE] Failed to compute total balance for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to compute balance", http.StatusInternalServerError, nil)
		return
	}
	resp.Devise = models.CompteDeviseDefaut

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateCompte opens a new account for the client
// @Summary Create account
// @Description Open a new account with a zero balance
// @Tags comptes
// @Accept json
// @Produce json
// @Param request body CompteRequest true "Account request"
// @Success 201 {object} models.Compte "Created account"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Router /comptes [post]
func (s *CompteService) CreateCompte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CompteRequest
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

	if req.Devise == "" {
		req.Devise = models.CompteDeviseDefaut
	}
	if req.Couleur == "" {
		req.Couleur = models.CompteCouleurDefaut
	}

	var c models.Compte
	err := scanCompte(s.db.QueryRow(
		`INSERT INTO comptes (type, numero, devise, couleur, iban, statut, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+compteColumns,
		req.Type, req.Numero, req.Devise, req.Couleur, req.IBAN,
		models.CompteStatutActive, userID,
	), &c)
	if err != nil {
		log.Printf("[COMPTE] Creation failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[COMPTE] Account %d created for %v", c.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// UpdateCompte changes an account's display attributes
// @Summary Update account
// @Description Update type, numero, IBAN, currency and color of an account
// @Tags comptes
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body CompteRequest true "Account request"
// @Success 200 {object} models.Compte "Updated account"
// @Failure 404 {string} string "Account not found"
// @Router /comptes/{id} [put]
func (s *CompteService) UpdateCompte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	compteID := chi.URLParam(r, "id")

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CompteRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.Devise == "" {
		req.Devise = models.CompteDeviseDefaut
	}
	if req.Couleur == "" {
		req.Couleur = models.CompteCouleurDefaut
	}

	var c models.Compte
	err := scanCompte(s.db.QueryRow(
		`UPDATE comptes SET type = $1, numero = $2, devise = $3, couleur = $4, iban = $5
		 WHERE id = $6 AND user_id = $7
		 RETURNING `+compteColumns,
		req.Type, req.Numero, req.Devise, req.Couleur, req.IBAN, compteID, userID,
	), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Compte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[COMPTE] Update failed for %s: %v", compteID, err)
			SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// DeleteCompte closes and removes an account
// @Summary Delete account
// @Description Delete an account, scoped to the authenticated client
// @Tags comptes
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Account not found"
// @Router /comptes/{id} [delete]
func (s *CompteService) DeleteCompte(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	compteID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`DELETE FROM comptes WHERE id = $1 AND user_id = $2`, compteID, userID)
	if err != nil {
		log.Printf("[COMPTE] Deletion failed for %s: %v", compteID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Compte introuvable", http.StatusNotFound, nil)
		return
	}

	log.Printf("[COMPTE] Account %s deleted for %v", compteID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Compte supprimé"})
}
