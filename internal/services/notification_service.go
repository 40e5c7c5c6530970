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

type NotificationService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewNotificationService(db *sql.DB) *NotificationService {
	return &NotificationService{db: db, validator: NewValidationHelper()}
}

// NotificationRequest is the payload for pushing a notification
// @Description Notification request structure
type NotificationRequest struct {
	Titre   string `json:"titre" validate:"required" example:"Virement effectué"`
	Message string `json:"message" validate:"required" example:"Votre virement de 100 € a été pris en compte."`
	Type    string `json:"type" validate:"omitempty,oneof=info warning security" example:"info"`
}

const notificationColumns = `id, user_id, titre, message, type, lu, date_creation`

// GetNotifications lists the client's notifications, newest first
// @Summary List notifications
// @Description Get all notifications of the authenticated client
// @Tags notifications
// @Produce json
// @Success 200 {array} models.Notification "Notifications"
// @Failure 401 {string} string "Unauthorized"
// @Router /notifications [get]
func (s *NotificationService) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.Query(
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY date_creation DESC`,
		userID,
	)
	if err != nil {
		log.Printf("[NOTIF] Failed to list notifications for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Titre, &n.Message, &n.Type, &n.Lu, &n.DateCreation); err != nil {
			log.Printf("[NOTIF] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
			return
		}
		notifications = append(notifications, n)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notifications)
}

// GetNotification returns a single notification
// @Summary Get notification
// @Description Get one notification by ID, scoped to the authenticated client
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} models.Notification "Notification"
// @Failure 404 {string} string "Notification not found"
// @Router /notifications/{id} [get]
func (s *NotificationService) GetNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID := chi.URLParam(r, "id")

	var n models.Notification
	err := s.db.QueryRow(
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	).Scan(&n.ID, &n.UserID, &n.Titre, &n.Message, &n.Type, &n.Lu, &n.DateCreation)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Notification introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[NOTIF] Failed to fetch notification %s: %v", notificationID, err)
			SendErrorResponse(w, "Failed to fetch notification", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(n)
}

// GetUnreadCount counts the client's unread notifications
// @Summary Unread notification count
// @Description Count unread notifications for the badge
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int "Unread count"
// @Failure 401 {string} string "Unauthorized"
// @Router /notifications/non-lues [get]
func (s *NotificationService) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND lu = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		log.Printf("[NOTIF] Failed to count unread for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to count notifications", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"non_lues": count})
}

// CreateNotification pushes a notification to the client
// @Summary Create notification
// @Description Push a notification for the authenticated client
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body NotificationRequest true "Notification request"
// @Success 201 {object} models.Notification "Created notification"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Router /notifications [post]
func (s *NotificationService) CreateNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req NotificationRequest
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
		req.Type = models.NotificationInfo
	}

	var n models.Notification
	err := s.db.QueryRow(
		`INSERT INTO notifications (user_id, titre, message, type) VALUES ($1, $2, $3, $4)
		 RETURNING `+notificationColumns,
		userID, req.Titre, req.Message, req.Type,
	).Scan(&n.ID, &n.UserID, &n.Titre, &n.Message, &n.Type, &n.Lu, &n.DateCreation)
	if err != nil {
		log.Printf("[NOTIF] Creation failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to create notification", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(n)
}

// MarkAsRead marks one notification as read
// @Summary Mark notification read
// @Description Mark a single notification as read
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]string "Marked read"
// @Failure 404 {string} string "Notification not found"
// @Router /notifications/{id}/lue [put]
func (s *NotificationService) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID := chi.URLParam(r, "id")

	res, err := s.db.Exec(
		`UPDATE notifications SET lu = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		log.Printf("[NOTIF] Mark read failed for %s: %v", notificationID, err)
		SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Notification introuvable", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Notification marquée comme lue"})
}

// MarkAllAsRead marks every notification of the client as read
// @Summary Mark all notifications read
// @Description Mark all of the client's notifications as read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]string "Marked read"
// @Failure 401 {string} string "Unauthorized"
// @Router /notifications/toutes-lues [put]
func (s *NotificationService) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := s.db.Exec(
		`UPDATE notifications SET lu = TRUE WHERE user_id = $1 AND lu = FALSE`,
		userID,
	); err != nil {
		log.Printf("[NOTIF] Mark all read failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Toutes les notifications marquées comme lues"})
}

// DeleteNotification removes one notification
// @Summary Delete notification
// @Description Delete a single notification
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Notification not found"
// @Router /notifications/{id} [delete]
func (s *NotificationService) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		log.Printf("[NOTIF] Deletion failed for %s: %v", notificationID, err)
		SendErrorResponse(w, "Failed to delete notification", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Notification introuvable", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Notification supprimée"})
}

// DeleteReadNotifications purges notifications already read
// @Summary Delete read notifications
// @Description Delete every notification the client has already read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64 "Number deleted"
// @Failure 401 {string} string "Unauthorized"
// @Router /notifications/lues [delete]
func (s *NotificationService) DeleteReadNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	res, err := s.db.Exec(`DELETE FROM notifications WHERE user_id = $1 AND lu = TRUE`, userID)
	if err != nil {
		log.Printf("[NOTIF] Purge failed for %v: %v", userID, err)
		SendErrorResponse(w, "Failed to delete notifications", http.StatusInternalServerError, nil)
		return
	}

	deleted, _ := res.RowsAffected()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"supprimees": deleted})
}

// createNotification inserts a notification outside an HTTP handler.
// Failures are logged and swallowed so a missing notification never
// blocks the operation that triggered it.
func (s *NotificationService) createNotification(userID, titre, message, typ string) {
	if _, err := s.db.Exec(
		`INSERT INTO notifications (user_id, titre, message, type) VALUES ($1, $2, $3, $4)`,
		userID, titre, message, typ,
	); err != nil {
		log.Printf("[NOTIF] Background notification failed for %s: %v", userID, err)
	}
}
