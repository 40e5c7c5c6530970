package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/espaceclient/backend/internal/models"
)

func TestNotificationService_GetUnreadCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	r := authed(httptest.NewRequest("GET", "/notifications/non-lues", nil))
	w := httptest.NewRecorder()
	service.GetUnreadCount(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, 4, resp["non_lues"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationService_CreateNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db)

	t.Run("type defaults to info", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(testUserID, "Titre", "Message", models.NotificationInfo).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "titre", "message", "type", "lu", "date_creation"}).
				AddRow(1, testUserID, "Titre", "Message", models.NotificationInfo, false, time.Now()))

		body, _ := json.Marshal(NotificationRequest{Titre: "Titre", Message: "Message"})
		r := authed(httptest.NewRequest("POST", "/notifications", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateNotification(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var n models.Notification
		json.Unmarshal(w.Body.Bytes(), &n)
		assert.Equal(t, models.NotificationInfo, n.Type)
		assert.False(t, n.Lu)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown type fails validation", func(t *testing.T) {
		body, _ := json.Marshal(NotificationRequest{Titre: "Titre", Message: "Message", Type: "urgent"})
		r := authed(httptest.NewRequest("POST", "/notifications", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateNotification(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNotificationService_MarkAllAsRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db)

	mock.ExpectExec("UPDATE notifications SET lu").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	r := authed(httptest.NewRequest("PUT", "/notifications/toutes-lues", nil))
	w := httptest.NewRecorder()
	service.MarkAllAsRead(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationService_DeleteReadNotifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db)

	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	r := authed(httptest.NewRequest("DELETE", "/notifications/lues", nil))
	w := httptest.NewRecorder()
	service.DeleteReadNotifications(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int64
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, int64(2), resp["supprimees"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
