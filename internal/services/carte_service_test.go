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

func carteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "numero", "titulaire", "type", "date_expiration", "plafond_paiement",
		"plafond_retrait", "statut", "compte_id", "user_id", "date_creation",
	})
}

func TestCarteService_ToggleStatut(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCarteService(db, NewNotificationService(db))

	t.Run("active card is blocked with a security notification", func(t *testing.T) {
		mock.ExpectQuery("UPDATE cartes SET statut").
			WillReturnRows(carteRows().AddRow(
				1, "4970 10** **** 3456", "PAOLA MARIE MADELEINE", "Visa Premier", "09/27",
				"3000.00", "1000.00", models.CarteStatutBloquee, 1, testUserID, time.Now()))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(testUserID, "Carte bloquée", sqlmock.AnyArg(), models.NotificationSecurity).
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := authed(httptest.NewRequest("PUT", "/cartes/1/statut", nil))
		w := httptest.NewRecorder()
		service.ToggleStatut(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var c models.Carte
		json.Unmarshal(w.Body.Bytes(), &c)
		assert.Equal(t, models.CarteStatutBloquee, c.Statut)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocked card is reactivated", func(t *testing.T) {
		mock.ExpectQuery("UPDATE cartes SET statut").
			WillReturnRows(carteRows().AddRow(
				1, "4970 10** **** 3456", "PAOLA MARIE MADELEINE", "Visa Premier", "09/27",
				"3000.00", "1000.00", models.CarteStatutActive, 1, testUserID, time.Now()))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(testUserID, "Carte débloquée", sqlmock.AnyArg(), models.NotificationInfo).
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := authed(httptest.NewRequest("PUT", "/cartes/1/statut", nil))
		w := httptest.NewRecorder()
		service.ToggleStatut(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCarteService_UpdatePlafonds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCarteService(db, NewNotificationService(db))

	t.Run("ceilings are updated", func(t *testing.T) {
		mock.ExpectQuery("UPDATE cartes SET plafond_paiement").
			WillReturnRows(carteRows().AddRow(
				1, "4970 10** **** 3456", "PAOLA MARIE MADELEINE", "Visa Premier", "09/27",
				"5000.00", "1500.00", models.CarteStatutActive, 1, testUserID, time.Now()))

		body, _ := json.Marshal(PlafondsRequest{
			PlafondPaiement: models.MontantFromEuros(5000),
			PlafondRetrait:  models.MontantFromEuros(1500),
		})
		r := authed(httptest.NewRequest("PUT", "/cartes/1/plafonds", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.UpdatePlafonds(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var c models.Carte
		json.Unmarshal(w.Body.Bytes(), &c)
		assert.Equal(t, models.MontantFromEuros(5000), c.PlafondPaiement)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive ceiling rejected", func(t *testing.T) {
		body, _ := json.Marshal(PlafondsRequest{
			PlafondPaiement: -models.MontantFromEuros(5),
			PlafondRetrait:  models.MontantFromEuros(1500),
		})
		r := authed(httptest.NewRequest("PUT", "/cartes/1/plafonds", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.UpdatePlafonds(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCarteService_CreateCarte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCarteService(db, NewNotificationService(db))

	t.Run("card is registered active", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO cartes").
			WillReturnRows(carteRows().AddRow(
				2, "5132 45** **** 7890", "PAOLA MARIE MADELEINE", "Mastercard", "03/28",
				"3000.00", "1000.00", models.CarteStatutActive, nil, testUserID, time.Now()))

		body, _ := json.Marshal(CarteRequest{
			Numero:          "5132 45** **** 7890",
			Titulaire:       "PAOLA MARIE MADELEINE",
			Type:            "Mastercard",
			DateExpiration:  "03/28",
			PlafondPaiement: models.MontantFromEuros(3000),
			PlafondRetrait:  models.MontantFromEuros(1000),
		})
		r := authed(httptest.NewRequest("POST", "/cartes", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateCarte(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var c models.Carte
		json.Unmarshal(w.Body.Bytes(), &c)
		assert.Equal(t, models.CarteStatutActive, c.Statut)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing holder fails validation", func(t *testing.T) {
		body, _ := json.Marshal(CarteRequest{
			Numero:         "5132 45** **** 7890",
			Type:           "Mastercard",
			DateExpiration: "03/28",
		})
		r := authed(httptest.NewRequest("POST", "/cartes", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateCarte(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCarteService_DeleteCarte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCarteService(db, NewNotificationService(db))

	t.Run("missing card", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM cartes").
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := authed(httptest.NewRequest("DELETE", "/cartes/99", nil))
		w := httptest.NewRecorder()
		service.DeleteCarte(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLastDigits(t *testing.T) {
	assert.Equal(t, "3456", lastDigits("4970 10** **** 3456"))
	assert.Equal(t, "123", lastDigits("123"))
}
