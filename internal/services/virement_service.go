package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/espaceclient/backend/internal/config"
	"github.com/espaceclient/backend/internal/models"
)

type VirementService struct {
	db        *sql.DB
	cfg       *config.VirementConfig
	email     *EmailService
	notifier  *NotificationService
	validator *ValidationHelper
}

func NewVirementService(db *sql.DB, cfg *config.VirementConfig, email *EmailService, notifier *NotificationService) *VirementService {
	return &VirementService{
		db:        db,
		cfg:       cfg,
		email:     email,
		notifier:  notifier,
		validator: NewValidationHelper(),
	}
}

// VirementRequest is the payload for initiating a transfer
// @Description Transfer request structure
type VirementRequest struct {
	Montant          models.Montant `json:"montant" validate:"required" example:"150.00"`
	BeneficiaireID   *int64         `json:"beneficiaire_id" example:"3"`
	IBANDestinataire string         `json:"iban_destinataire" example:"FR7630006000011234567890189"`
	Motif            string         `json:"motif" example:"Loyer septembre"`
	CompteSourceID   int64          `json:"compte_source_id" validate:"required" example:"1"`
}

// VirementResponse carries the orchestration outcome
// @Description Transfer response structure
type VirementResponse struct {
	Virement    models.Virement     `json:"virement"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Statut      string              `json:"statut" example:"en_validation"`
}

const virementColumns = `id, montant, beneficiaire_id, COALESCE(iban_destinataire, ''), COALESCE(motif, ''), compte_source_id, user_id, statut, reference, date_virement, date_annulation`

func scanVirement(row interface{ Scan(...any) error }, v *models.Virement) error {
	return row.Scan(&v.ID, &v.Montant, &v.BeneficiaireID, &v.IBANDestinataire, &v.Motif,
		&v.CompteSourceID, &v.UserID, &v.Statut, &v.Reference, &v.DateVirement, &v.DateAnnulation)
}

// CreateVirement runs the full transfer sequence
// @Summary Create transfer
// @Description Validate, persist and process an outbound transfer
// @Tags virements
// @Accept json
// @Produce json
// @Param request body VirementRequest true "Transfer request"
// @Success 201 {object} VirementResponse "Transfer created"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Failure 402 {string} string "Insufficient balance"
// @Failure 404 {string} string "Account or beneficiary not found"
// @Failure 422 {string} string "Daily limit exceeded"
// @Failure 500 {string} string "Internal server error"
// @Router /virements [post]
func (s *VirementService) CreateVirement(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	uid := userID.(string)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req VirementRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[VIREMENT] Invalid request: %v", err)
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

	log.Printf("[VIREMENT] Transfer request from %s: %s EUR to account %d", uid, req.Montant, req.CompteSourceID)

	// Step 1: form-level validation.
	if req.Montant <= 0 {
		SendErrorResponse(w, "Le montant doit être positif", http.StatusBadRequest, nil)
		return
	}
	plafond := models.MontantFromEuros(s.cfg.PlafondMontant)
	if req.Montant > plafond {
		SendErrorResponse(w, fmt.Sprintf("Le montant dépasse le plafond de %d €", s.cfg.PlafondMontant), http.StatusBadRequest, nil)
		return
	}

	ibanDestinataire := strings.ReplaceAll(req.IBANDestinataire, " ", "")
	var beneficiaireEmail *string
	if req.BeneficiaireID != nil {
		var benefIBAN string
		err := s.db.QueryRow(
			`SELECT iban, email FROM beneficiaires WHERE id = $1 AND user_id = $2`,
			*req.BeneficiaireID, uid,
		).Scan(&benefIBAN, &beneficiaireEmail)
		if err != nil {
			SendErrorResponse(w, "Bénéficiaire introuvable", http.StatusNotFound, nil)
			return
		}
		ibanDestinataire = benefIBAN
	} else if len(ibanDestinataire) < s.cfg.IBANMinLength {
		SendErrorResponse(w, "IBAN destinataire invalide", http.StatusBadRequest, nil)
		return
	}

	var compte models.Compte
	err := s.db.QueryRow(
		`SELECT id, solde, iban, statut, user_id FROM comptes WHERE id = $1 AND user_id = $2`,
		req.CompteSourceID, uid,
	).Scan(&compte.ID, &compte.Solde, &compte.IBAN, &compte.Statut, &compte.UserID)
	if err != nil {
		SendErrorResponse(w, "Compte source introuvable", http.StatusNotFound, nil)
		return
	}
	if compte.Solde < req.Montant {
		log.Printf("[VIREMENT] Insufficient balance on account %d: %s < %s", compte.ID, compte.Solde, req.Montant)
		SendErrorResponse(w, "Solde insuffisant", http.StatusPaymentRequired, nil)
		return
	}

	// Step 2: daily aggregate against processed transfers since local midnight.
	limite, err := s.verifierLimite(uid, req.Montant)
	if err != nil {
		if err == ErrLimiteDepassee {
			log.Printf("[VIREMENT] %v for %s: %s + %s > %s", err, uid, limite.TotalJour, req.Montant, limite.LimiteJour)
			SendErrorResponse(w,
				fmt.Sprintf("Limite quotidienne dépassée. Il vous reste %s € disponibles aujourd'hui.", limite.Reste),
				http.StatusUnprocessableEntity, nil)
			return
		}
		log.Printf("[VIREMENT] Daily limit check failed for %s: %v", uid, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	// Step 3: persist the transfer row.
	reference := generateReference()
	var virement models.Virement
	err = scanVirement(s.db.QueryRow(
		`INSERT INTO virements (montant, beneficiaire_id, iban_destinataire, motif, compte_source_id, user_id, statut, reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+virementColumns,
		req.Montant, req.BeneficiaireID, ibanDestinataire, req.Motif, req.CompteSourceID, uid,
		models.VirementEnValidation, reference,
	), &virement)
	if err != nil {
		log.Printf("[VIREMENT] Persist failed for %s: %v", uid, err)
		SendErrorResponse(w, "Failed to create transfer", http.StatusInternalServerError, nil)
		return
	}

	transaction, err := s.processVirement(&virement, beneficiaireEmail)
	if err != nil {
		log.Printf("[VIREMENT] Processing failed for %s: %v", virement.Reference, err)
		// The transfer row already exists; surface the failure to the client
		// through a warning notification and an error email, both best-effort.
		s.notifier.createNotification(uid, "Virement en échec",
			fmt.Sprintf("Le traitement de votre virement %s a rencontré une erreur. Nos équipes ont été prévenues.", virement.Reference),
			models.NotificationWarning)
		s.email.SendErrorEmail(uid, virement.Reference, err)
		if err == ErrSoldeInsuffisant {
			SendErrorResponse(w, "Solde insuffisant", http.StatusPaymentRequired, nil)
			return
		}
		SendErrorResponse(w, "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[VIREMENT] Transfer %s processed for %s", virement.Reference, uid)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(VirementResponse{
		Virement:    virement,
		Transaction: transaction,
		Statut:      virement.Statut,
	})
}

// processVirement runs the post-persist steps in order. Steps are
// independently failable and nothing compensates a committed step when a
// later one fails; the debit in particular is last-writer-wins.
func (s *VirementService) processVirement(virement *models.Virement, beneficiaireEmail *string) (*models.Transaction, error) {
	// Step 4: re-read against fresh data.
	var fresh models.Virement
	if err := scanVirement(s.db.QueryRow(
		`SELECT `+virementColumns+` FROM virements WHERE id = $1`, virement.ID,
	), &fresh); err != nil {
		return nil, fmt.Errorf("re-reading transfer %s: %w", virement.Reference, err)
	}

	var solde models.Montant
	if err := s.db.QueryRow(
		`SELECT solde FROM comptes WHERE id = $1`, fresh.CompteSourceID,
	).Scan(&solde); err != nil {
		return nil, fmt.Errorf("re-reading account %d: %w", fresh.CompteSourceID, err)
	}
	if solde < fresh.Montant {
		return nil, ErrSoldeInsuffisant
	}

	// Step 5: debit.
	newSolde := solde - fresh.Montant
	if _, err := s.db.Exec(
		`UPDATE comptes SET solde = $1 WHERE id = $2`, newSolde, fresh.CompteSourceID,
	); err != nil {
		return nil, fmt.Errorf("debiting account %d: %w", fresh.CompteSourceID, err)
	}
	log.Printf("[VIREMENT] Account %d debited: %s -> %s", fresh.CompteSourceID, solde, newSolde)

	// Step 6: outbound email, best-effort.
	if err := s.email.SendVirementEmail(&fresh, beneficiaireEmail); err != nil {
		log.Printf("[VIREMENT] Email dispatch failed for %s: %v", fresh.Reference, err)
	}

	// Step 7: ledger entry. The user's motif doubles as the description.
	description := fresh.Motif
	if description == "" {
		description = fmt.Sprintf("Virement %s", fresh.Reference)
	}
	now := time.Now()
	row := s.db.QueryRow(
		`INSERT INTO transactions (type, montant, description, categorie, date_transaction, heure_transaction, icone, localisation, statut, reference, compte_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+transactionColumns,
		models.TransactionVirementSortant, fresh.Montant,
		description, models.TransactionCategorieDefaut,
		now, now.Format("15:04:05"), models.TransactionIconeDefaut, models.TransactionLocalisationDefaut,
		models.TransactionStatutEnAttente, fresh.Reference, fresh.CompteSourceID, fresh.UserID,
	)
	var transaction models.Transaction
	if err := scanTransaction(row, &transaction); err != nil {
		return nil, fmt.Errorf("recording transaction for %s: %w", fresh.Reference, err)
	}

	// Step 8: compliance fee warning.
	s.notifier.createNotification(fresh.UserID, "Frais de conformité requis",
		fmt.Sprintf("Votre virement %s est en cours de validation. Des frais de conformité de 9 893 € seront exigés lors de la réactivation de votre compte.", fresh.Reference),
		models.NotificationWarning)

	*virement = fresh
	return &transaction, nil
}

// verifierLimite checks the requested amount against the daily headroom and
// returns ErrLimiteDepassee when it would push the day's total past the cap.
func (s *VirementService) verifierLimite(userID string, montant models.Montant) (*models.LimiteVirement, error) {
	limite, err := s.limiteQuotidienne(userID)
	if err != nil {
		return nil, err
	}
	if limite.TotalJour+montant > limite.LimiteJour {
		return limite, ErrLimiteDepassee
	}
	return limite, nil
}

// limiteQuotidienne sums the user's processed transfers since local midnight.
func (s *VirementService) limiteQuotidienne(userID string) (*models.LimiteVirement, error) {
	n := time.Now()
	minuit := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())

	var total models.Montant
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(montant), 0)::text FROM virements
		 WHERE user_id = $1 AND statut = $2 AND date_virement >= $3`,
		userID, models.VirementTraite, minuit,
	).Scan(&total)
	if err != nil {
		return nil, err
	}

	limite := models.MontantFromEuros(s.cfg.PlafondQuotidien)
	return &models.LimiteVirement{
		TotalJour:  total,
		LimiteJour: limite,
		Reste:      limite - total,
		Autorise:   total < limite,
	}, nil
}

// GetVirements lists the client's transfers, newest first
// @Summary List transfers
// @Description Get all transfers of the authenticated client
// @Tags virements
// @Produce json
// @Success 200 {array} models.Virement "Transfers"
// @Failure 401 {string} string "Unauthorized"
// @Router /virements [get]
func (s *VirementService) GetVirements(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.Query(
		`SELECT `+virementColumns+` FROM virements WHERE user_id = $1 ORDER BY date_virement DESC`,
		userID,
	)
	if err != nil {
		log.Printf("[VIREMENT] Failed to list transfers for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transfers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	virements := []models.Virement{}
	for rows.Next() {
		var v models.Virement
		if err := scanVirement(rows, &v); err != nil {
			log.Printf("[VIREMENT] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch transfers", http.StatusInternalServerError, nil)
			return
		}
		virements = append(virements, v)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(virements)
}

// GetVirement returns one transfer
// @Summary Get transfer
// @Description Get a single transfer by ID, scoped to the authenticated client
// @Tags virements
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} models.Virement "Transfer"
// @Failure 404 {string} string "Transfer not found"
// @Router /virements/{id} [get]
func (s *VirementService) GetVirement(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	virementID := chi.URLParam(r, "id")

	var v models.Virement
	err := scanVirement(s.db.QueryRow(
		`SELECT `+virementColumns+` FROM virements WHERE id = $1 AND user_id = $2`,
		virementID, userID,
	), &v)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Virement introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[VIREMENT] Failed to fetch transfer %s: %v", virementID, err)
			SendErrorResponse(w, "Failed to fetch transfer", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// CancelVirement cancels a transfer still awaiting validation
// @Summary Cancel transfer
// @Description Cancel a transfer that is still en_validation. The debit is not reversed.
// @Tags virements
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} models.Virement "Cancelled transfer"
// @Failure 404 {string} string "Transfer not found or not cancellable"
// @Router /virements/{id}/annuler [put]
func (s *VirementService) CancelVirement(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	virementID := chi.URLParam(r, "id")

	var v models.Virement
	err := scanVirement(s.db.QueryRow(
		`UPDATE virements SET statut = $1, date_annulation = NOW()
		 WHERE id = $2 AND user_id = $3 AND statut = $4
		 RETURNING `+virementColumns,
		models.VirementAnnule, virementID, userID, models.VirementEnValidation,
	), &v)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Virement introuvable ou non annulable", http.StatusNotFound, nil)
		} else {
			log.Printf("[VIREMENT] Cancellation failed for %s: %v", virementID, err)
			SendErrorResponse(w, "Failed to cancel transfer", http.StatusInternalServerError, nil)
		}
		return
	}

	s.notifier.createNotification(v.UserID, "Virement annulé",
		fmt.Sprintf("Votre virement %s a été annulé.", v.Reference), models.NotificationInfo)

	log.Printf("[VIREMENT] Transfer %s cancelled", v.Reference)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// GetLimite reports the client's remaining daily headroom
// @Summary Get daily limit
// @Description Report the client's daily transfer headroom
// @Tags virements
// @Produce json
// @Success 200 {object} models.LimiteVirement "Daily limit"
// @Failure 401 {string} string "Unauthorized"
// @Router /virements/limite [get]
func (s *VirementService) GetLimite(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limite, err := s.limiteQuotidienne(userID.(string))
	if err != nil {
		log.Printf("[VIREMENT] Limit lookup failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to compute limit", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(limite)
}

// GetStats aggregates the client's transfer history by status
// @Summary Transfer statistics
// @Description Aggregate the client's transfers by status
// @Tags virements
// @Produce json
// @Success 200 {object} models.VirementStats "Statistics"
// @Failure 401 {string} string "Unauthorized"
// @Router /virements/stats [get]
func (s *VirementService) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var stats models.VirementStats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(montant), 0)::text,
		        COUNT(*) FILTER (WHERE statut = $2),
		        COUNT(*) FILTER (WHERE statut = $3),
		        COUNT(*) FILTER (WHERE statut = $4)
		 FROM virements WHERE user_id = $1`,
		userID, models.VirementEnValidation, models.VirementTraite, models.VirementAnnule,
	).Scan(&stats.Total, &stats.TotalMontant, &stats.EnValidation, &stats.Traites, &stats.Annules)
	if err != nil {
		log.Printf("[VIREMENT] Stats lookup failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to compute statistics", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// MarkTraite finalizes a transfer. No route calls it yet; settlement is
// expected to move here once a back-office process exists.
func (s *VirementService) MarkTraite(virementID int64) error {
	res, err := s.db.Exec(
		`UPDATE virements SET statut = $1 WHERE id = $2 AND statut = $3`,
		models.VirementTraite, virementID, models.VirementEnValidation,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func generateReference() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("VIR-%08d-%s", time.Now().Unix()%100000000, suffix)
}
