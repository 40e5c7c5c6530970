package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/espaceclient/backend/internal/models"
)

type BeneficiaireService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewBeneficiaireService(db *sql.DB) *BeneficiaireService {
	return &BeneficiaireService{db: db, validator: NewValidationHelper()}
}

// BeneficiaireRequest is the payload for creating or updating a payee
// @Description Beneficiary request structure
type BeneficiaireRequest struct {
	Nom    string  `json:"nom" validate:"required,min=2" example:"DUPONT"`
	Prenom string  `json:"prenom" validate:"required,min=2" example:"Jean"`
	Email  *string `json:"email" validate:"omitempty,email" example:"jean.dupont@example.com"`
	IBAN   string  `json:"iban" validate:"required,min=15" example:"FR7630006000011234567890189"`
	BIC    string  `json:"bic" validate:"required,min=8,max=11" example:"BNPAFRPP"`
	Banque *string `json:"banque" example:"BNP Paribas"`
	Alias  *string `json:"alias" example:"Loyer"`
	Type   string  `json:"type" example:"particulier"`
}

const beneficiaireColumns = `id, nom, prenom, email, iban, bic, banque, alias, type, user_id, date_creation`

func scanBeneficiaire(row interface{ Scan(...any) error }, b *models.Beneficiaire) error {
	return row.Scan(&b.ID, &b.Nom, &b.Prenom, &b.Email, &b.IBAN, &b.BIC,
		&b.Banque, &b.Alias, &b.Type, &b.UserID, &b.DateCreation)
}

// GetBeneficiaires lists the client's saved payees
// @Summary List beneficiaries
// @Description Get all beneficiaries of the authenticated client
// @Tags beneficiaires
// @Produce json
// @Success 200 {array} models.Beneficiaire "Beneficiaries"
// @Failure 401 {string} string "Unauthorized"
// @Router /beneficiaires [get]
func (s *BeneficiaireService) GetBeneficiaires(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.Query(
		`SELECT `+beneficiaireColumns+` FROM beneficiaires WHERE user_id = $1 ORDER BY nom, prenom`,
		userID,
	)
	if err != nil {
		log.Printf("[BENEF] Failed to list beneficiaries for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch beneficiaries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	beneficiaires := []models.Beneficiaire{}
	for rows.Next() {
		var b models.Beneficiaire
		if err := scanBeneficiaire(rows, &b); err != nil {
			log.Printf("[BENEF] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch beneficiaries", http.StatusInternalServerError, nil)
			return
		}
		beneficiaires = append(beneficiaires, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(beneficiaires)
}

// GetBeneficiaire returns a single payee
// @Summary Get beneficiary
// @Description Get one beneficiary by ID, scoped to the authenticated client
// @Tags beneficiaires
// @Produce json
// @Param id path int true "Beneficiary ID"
// @Success 200 {object} models.Beneficiaire "Beneficiary"
// @Failure 404 {string} string "Beneficiary not found"
// @Router /beneficiaires/{id} [get]
func (s *BeneficiaireService) GetBeneficiaire(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	beneficiaireID := chi.URLParam(r, "id")

	var b models.Beneficiaire
	err := scanBeneficiaire(s.db.QueryRow(
		`SELECT `+beneficiaireColumns+` FROM beneficiaires WHERE id = $1 AND user_id = $2`,
		beneficiaireID, userID,
	), &b)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Bénéficiaire introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[BENEF] Failed to fetch beneficiary %s: %v", beneficiaireID, err)
			SendErrorResponse(w, "Failed to fetch beneficiary", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

// SearchBeneficiaires filters payees by name, alias or IBAN
// @Summary Search beneficiaries
// @Description Case-insensitive search over nom, prenom, alias and IBAN
// @Tags beneficiaires
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {array} models.Beneficiaire "Matching beneficiaries"
// @Failure 401 {string} string "Unauthorized"
// @Router /beneficiaires/recherche [get]
func (s *BeneficiaireService) SearchBeneficiaires(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		s.GetBeneficiaires(w, r)
		return
	}
	pattern := "%" + term + "%"

	rows, err := s.db.Query(
		`SELECT `+beneficiaireColumns+` FROM beneficiaires
		 WHERE user_id = $1 AND (nom ILIKE $2 OR prenom ILIKE $2 OR alias ILIKE $2 OR iban ILIKE $2)
		 ORDER BY nom, prenom`,
		userID, pattern,
	)
	if err != nil {
		log.Printf("[BENEF] Search failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to search beneficiaries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	beneficiaires := []models.Beneficiaire{}
	for rows.Next() {
		var b models.Beneficiaire
		if err := scanBeneficiaire(rows, &b); err != nil {
			log.Printf("[BENEF] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to search beneficiaries", http.StatusInternalServerError, nil)
			return
		}
		beneficiaires = append(beneficiaires, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(beneficiaires)
}

// CreateBeneficiaire registers a new payee
// @Summary Create beneficiary
// @Description Register a new beneficiary for the authenticated client
// @Tags beneficiaires
// @Accept json
// @Produce json
// @Param request body BeneficiaireRequest true "Beneficiary request"
// @Success 201 {object} models.Beneficiaire "Created beneficiary"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Router /beneficiaires [post]
func (s *BeneficiaireService) CreateBeneficiaire(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req BeneficiaireRequest
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

	if req.Type == "" {
		req.Type = models.BeneficiaireTypeDefaut
	}

	var b models.Beneficiaire
	err := s.db.QueryRow(
		`INSERT INTO beneficiaires (nom, prenom, email, iban, bic, banque, alias, type, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+beneficiaireColumns,
		req.Nom, req.Prenom, req.Email, strings.ReplaceAll(req.IBAN, " ", ""), req.BIC,
		req.Banque, req.Alias, req.Type, userID,
	).Scan(&b.ID, &b.Nom, &b.Prenom, &b.Email, &b.IBAN, &b.BIC,
		&b.Banque, &b.Alias, &b.Type, &b.UserID, &b.DateCreation)
	if err != nil {
		log.Printf("[BENEF] Creation failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to create beneficiary", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BENEF] Beneficiary %d created for %v", b.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(b)
}

// UpdateBeneficiaire modifies an existing payee
// @Summary Update beneficiary
// @Description Update a beneficiary, scoped to the authenticated client
// @Tags beneficiaires
// @Accept json
// @Produce json
// @Param id path int true "Beneficiary ID"
// @Param request body BeneficiaireRequest true "Beneficiary request"
// @Success 200 {object} models.Beneficiaire "Updated beneficiary"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Beneficiary not found"
// @Router /beneficiaires/{id} [put]
func (s *BeneficiaireService) UpdateBeneficiaire(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	beneficiaireID := chi.URLParam(r, "id")

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req BeneficiaireRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.Type == "" {
		req.Type = models.BeneficiaireTypeDefaut
	}

	var b models.Beneficiaire
	err := s.db.QueryRow(
		`UPDATE beneficiaires SET nom = $1, prenom = $2, email = $3, iban = $4, bic = $5, banque = $6, alias = $7, type = $8
		 WHERE id = $9 AND user_id = $10
		 RETURNING `+beneficiaireColumns,
		req.Nom, req.Prenom, req.Email, strings.ReplaceAll(req.IBAN, " ", ""), req.BIC,
		req.Banque, req.Alias, req.Type, beneficiaireID, userID,
	).Scan(&b.ID, &b.Nom, &b.Prenom, &b.Email, &b.IBAN, &b.BIC,
		&b.Banque, &b.Alias, &b.Type, &b.UserID, &b.DateCreation)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Bénéficiaire introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[BENEF] Update failed for %s: %v", beneficiaireID, err)
			SendErrorResponse(w, "Failed to update beneficiary", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

// DeleteBeneficiaire removes a payee
// @Summary Delete beneficiary
// @Description Delete a beneficiary, scoped to the authenticated client
// @Tags beneficiaires
// @Produce json
// @Param id path int true "Beneficiary ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Beneficiary not found"
// @Router /beneficiaires/{id} [delete]
func (s *BeneficiaireService) DeleteBeneficiaire(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	beneficiaireID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`DELETE FROM beneficiaires WHERE id = $1 AND user_id = $2`, beneficiaireID, userID)
	if err != nil {
		log.Printf("[BENEF] Deletion failed for %s: %v", beneficiaireID, err)
		SendErrorResponse(w, "Failed to delete beneficiary", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Bénéficiaire introuvable", http.StatusNotFound, nil)
		return
	}

	log.Printf("[BENEF] Beneficiary %s deleted for %v", beneficiaireID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Bénéficiaire supprimé"})
}
