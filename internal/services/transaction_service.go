package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/espaceclient/backend/internal/models"
)

type TransactionService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db, validator: NewValidationHelper()}
}

// TransactionRequest is the payload for recording a ledger entry
// @Description Transaction request structure
type TransactionRequest struct {
	Type         string         `json:"type" validate:"required,oneof=credit debit virement_sortant" example:"debit"`
	Montant      models.Montant `json:"montant" validate:"required" example:"42.50"`
	Description  string         `json:"description" validate:"required" example:"Carrefour Paris 15"`
	Categorie    string         `json:"categorie" example:"Courses"`
	CompteID     int64          `json:"compte_id" validate:"required" example:"1"`
	Icone        string         `json:"icone" example:"fas fa-shopping-cart"`
	Localisation string         `json:"localisation" example:"Paris, France"`
	Reference    string         `json:"reference" example:"VIR-12345678-ABCD"`
}

const transactionColumns = `id, type, montant, description, categorie, date_transaction, heure_transaction::text, icone, localisation, statut, reference, compte_id, user_id, date_creation`

func scanTransaction(row interface{ Scan(...any) error }, t *models.Transaction) error {
	return row.Scan(&t.ID, &t.Type, &t.Montant, &t.Description, &t.Categorie,
		&t.DateTransaction, &t.HeureTransaction, &t.Icone, &t.Localisation,
		&t.Statut, &t.Reference, &t.CompteID, &t.UserID, &t.DateCreation)
}

func (s *TransactionService) queryTransactions(w http.ResponseWriter, query string, args ...any) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[TRANSACTION] Query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			log.Printf("[TRANSACTION] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetTransactions lists the client's ledger entries, newest first
// @Summary List transactions
// @Description Get the authenticated client's transactions, optionally capped by limit
// @Tags transactions
// @Produce json
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {array} models.Transaction "Transactions"
// @Failure 401 {string} string "Unauthorized"
// @Router /transactions [get]
func (s *TransactionService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	s.queryTransactions(w,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 ORDER BY date_transaction DESC, heure_transaction DESC LIMIT $2`,
		userID, limit,
	)
}

// GetRecentTransactions returns the five most recent entries
// @Summary Recent transactions
// @Description Get the five most recent transactions for the dashboard
// @Tags transactions
// @Produce json
// @Success 200 {array} models.Transaction "Recent transactions"
// @Failure 401 {string} string "Unauthorized"
// @Router /transactions/recentes [get]
func (s *TransactionService) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s.queryTransactions(w,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 ORDER BY date_transaction DESC, heure_transaction DESC LIMIT 5`,
		userID,
	)
}

// GetTransaction returns a single ledger entry
// @Summary Get transaction
// @Description Get one transaction by ID, scoped to the authenticated client
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} models.Transaction "Transaction"
// @Failure 404 {string} string "Transaction not found"
// @Router /transactions/{id} [get]
func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "id")

	var t models.Transaction
	err := scanTransaction(s.db.QueryRow(
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`,
		transactionID, userID,
	), &t)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[TRANSACTION] Failed to fetch transaction %s: %v", transactionID, err)
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

// SearchTransactions filters entries by description, category or location,
// optionally restricted to a single transaction type
// @Summary Search transactions
// @Description Case-insensitive search over description, categorie and localisation
// @Tags transactions
// @Produce json
// @Param q query string true "Search term"
// @Param type query string false "Transaction type filter"
// @Success 200 {array} models.Transaction "Matching transactions"
// @Failure 401 {string} string "Unauthorized"
// @Router /transactions/recherche [get]
func (s *TransactionService) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	typeFilter := strings.TrimSpace(r.URL.Query().Get("type"))
	if term == "" && typeFilter == "" {
		s.GetTransactions(w, r)
		return
	}
	pattern := "%" + term + "%"

	if typeFilter != "" {
		s.queryTransactions(w,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE user_id = $1 AND (description ILIKE $2 OR categorie ILIKE $2 OR localisation ILIKE $2) AND type = $3
			 ORDER BY date_transaction DESC, heure_transaction DESC`,
			userID, pattern, typeFilter,
		)
		return
	}

	s.queryTransactions(w,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND (description ILIKE $2 OR categorie ILIKE $2 OR localisation ILIKE $2)
		 ORDER BY date_transaction DESC, heure_transaction DESC`,
		userID, pattern,
	)
}

// CreateTransaction records a ledger entry
// @Summary Create transaction
// @Description Record a transaction against one of the client's accounts
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body TransactionRequest true "Transaction request"
// @Success 201 {object} models.Transaction "Created transaction"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "Account not found"
// @Router /transactions [post]
func (s *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TransactionRequest
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

	// Ownership check keeps one client from writing into another's ledger.
	var compteOwner string
	err := s.db.QueryRow(`SELECT user_id FROM comptes WHERE id = $1`, req.CompteID).Scan(&compteOwner)
	if err != nil || compteOwner != userID.(string) {
		SendErrorResponse(w, "Compte introuvable", http.StatusNotFound, nil)
		return
	}

	if req.Categorie == "" {
		req.Categorie = models.TransactionCategorieDefaut
	}
	if req.Icone == "" {
		req.Icone = models.TransactionIconeDefaut
	}
	if req.Localisation == "" {
		req.Localisation = models.TransactionLocalisationDefaut
	}

	now := time.Now()
	row := s.db.QueryRow(
		`INSERT INTO transactions (type, montant, description, categorie, date_transaction, heure_transaction, icone, localisation, statut, reference, compte_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+transactionColumns,
		req.Type, req.Montant, req.Description, req.Categorie, now, now.Format("15:04:05"),
		req.Icone, req.Localisation, models.TransactionStatutCompleted, req.Reference, req.CompteID, userID,
	)
	var t models.Transaction
	if err := scanTransaction(row, &t); err != nil {
		log.Printf("[TRANSACTION] Creation failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to create transaction", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[TRANSACTION] Transaction %d created for %v", t.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(t)
}

// DeleteTransaction removes a ledger entry
// @Summary Delete transaction
// @Description Delete a transaction, scoped to the authenticated client
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Transaction not found"
// @Router /transactions/{id} [delete]
func (s *TransactionService) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, transactionID, userID)
	if err != nil {
		log.Printf("[TRANSACTION] Deletion failed for %s: %v", transactionID, err)
		SendErrorResponse(w, "Failed to delete transaction", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Transaction introuvable", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Transaction supprimée"})
}
