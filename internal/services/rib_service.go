package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/espaceclient/backend/internal/models"
)

// RIBService shares account banking details (RIB) as short-lived QR codes.
// The encoded payload lives in redis for five minutes and is consumed on
// first scan.
type RIBService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewRIBService(db *sql.DB, redisClient *redis.Client) *RIBService {
	return &RIBService{db: db, redis: redisClient}
}

// RIBResponse carries the QR share payload
// @Description RIB QR share structure
type RIBResponse struct {
	Code    string `json:"code"`     // Opaque code encoded in the QR image
	QRImage string `json:"qr_image"` // Base64 PNG
	Expire  int    `json:"expire_secondes" example:"300"`
}

// GenerateRIBQR shares an account's RIB as a QR code
// @Summary Share RIB as QR
// @Description Generate a short-lived QR code carrying the account's RIB
// @Tags comptes
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} RIBResponse "QR share"
// @Failure 404 {string} string "Account not found"
// @Failure 503 {string} string "Sharing unavailable"
// @Router /comptes/{id}/rib-qr [post]
func (s *RIBService) GenerateRIBQR(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if s.redis == nil {
		SendErrorResponse(w, "Partage RIB indisponible", http.StatusServiceUnavailable, nil)
		return
	}

	compteID := chi.URLParam(r, "id")

	var c models.Compte
	var titulaire string
	err := s.db.QueryRow(
		`SELECT c.id, c.numero, c.iban, c.devise, p.nom || ' ' || p.prenom
		 FROM comptes c JOIN profiles p ON p.id = c.user_id
		 WHERE c.id = $1 AND c.user_id = $2`,
		compteID, userID,
	).Scan(&c.ID, &c.Numero, &c.IBAN, &c.Devise, &titulaire)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Compte introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[RIB] Failed to fetch account %s: %v", compteID, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	payload := map[string]any{
		"titulaire": titulaire,
		"iban":      c.IBAN,
		"numero":    c.Numero,
		"devise":    c.Devise,
		"timestamp": time.Now().Unix(),
		"nonce":     generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		SendErrorResponse(w, "Failed to build share", http.StatusInternalServerError, nil)
		return
	}

	code := base64.URLEncoding.EncodeToString(jsonData)
	key := fmt.Sprintf("rib:%s", code)
	if err := s.redis.Set(r.Context(), key, jsonData, 5*time.Minute).Err(); err != nil {
		log.Printf("[RIB] Failed to store share for account %d: %v", c.ID, err)
		SendErrorResponse(w, "Partage RIB indisponible", http.StatusServiceUnavailable, nil)
		return
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to build QR code", http.StatusInternalServerError, nil)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to encode QR code", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[RIB] QR share generated for account %d", c.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RIBResponse{
		Code:    code,
		QRImage: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Expire:  300,
	})
}

// ResolveRIBQR consumes a scanned share code and returns the RIB.
func (s *RIBService) ResolveRIBQR(ctx context.Context, code string) (map[string]any, error) {
	key := fmt.Sprintf("rib:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired share code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

// ResolveRIB consumes a share code scanned by another device
// @Summary Resolve RIB share
// @Description Resolve a scanned share code into the account's RIB; single use
// @Tags comptes
// @Produce json
// @Param code path string true "Share code"
// @Success 200 {object} map[string]interface{} "RIB details"
// @Failure 404 {string} string "Invalid or expired share code"
// @Router /comptes/rib-qr/{code} [get]
func (s *RIBService) ResolveRIB(w http.ResponseWriter, r *http.Request) {
	if s.redis == nil {
		SendErrorResponse(w, "Partage RIB indisponible", http.StatusServiceUnavailable, nil)
		return
	}

	code := chi.URLParam(r, "code")
	result, err := s.ResolveRIBQR(r.Context(), code)
	if err != nil {
		SendErrorResponse(w, "Code de partage invalide ou expiré", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
