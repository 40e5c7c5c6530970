package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/espaceclient/backend/internal/models"
)

func compteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "numero", "solde", "devise", "couleur", "iban", "statut",
		"limite_credit", "user_id", "date_creation",
	})
}

func TestCompteService_GetComptes(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	mock.ExpectQuery("FROM comptes WHERE user_id").
		WithArgs(testUserID).
		WillReturnRows(compteRows().
			AddRow(1, "Compte Courant", "00012345678", "152430.50", "EUR", "#008854",
				"FR7630004000031234567890143", models.CompteStatutActive, nil, testUserID, time.Now()).
			AddRow(2, "Livret A", "00098765432", "22950.00", "EUR", "#e4003a",
				"FR7630004000039876543210977", models.CompteStatutActive, nil, testUserID, time.Now()))

	r := authed(httptest.NewRequest("GET", "/comptes", nil))
	w := httptest.NewRecorder()
	service.GetComptes(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var comptes []models.Compte
	json.Unmarshal(w.Body.Bytes(), &comptes)
	assert.Len(t, comptes, 2)
	assert.Equal(t, models.Montant(15243050), comptes[0].Solde)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompteService_GetSoldeTotal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(testUserID, models.CompteStatutActive).
		WillReturnRows(sqlmock.NewRows([]string{"total", "count"}).AddRow("175380.50", 2))

	r := authed(httptest.NewRequest("GET", "/comptes/solde-total", nil))
	w := httptest.NewRecorder()
	service.GetSoldeTotal(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SoldeTotalResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, models.Montant(17538050), resp.SoldeTotal)
	assert.Equal(t, 2, resp.Comptes)
	assert.Equal(t, "EUR", resp.Devise)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompteService_GetCompte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("FROM comptes WHERE id").
			WillReturnError(sql.ErrNoRows)

		r := authed(httptest.NewRequest("GET", "/comptes/99", nil))
		w := httptest.NewRecorder()
		service.GetCompte(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/comptes/1", nil)
		w := httptest.NewRecorder()
		service.GetCompte(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCompteService_CreateCompte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	t.Run("defaults fill currency and color", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO comptes").
			WithArgs("Livret A", "00098765432", models.CompteDeviseDefaut, models.CompteCouleurDefaut,
				"FR7630004000039876543210977", models.CompteStatutActive, testUserID).
			WillReturnRows(compteRows().AddRow(
				3, "Livret A", "00098765432", "0.00", models.CompteDeviseDefaut, models.CompteCouleurDefaut,
				"FR7630004000039876543210977", models.CompteStatutActive, nil, testUserID, time.Now()))

		body, _ := json.Marshal(CompteRequest{
			Type:   "Livret A",
			Numero: "00098765432",
			IBAN:   "FR7630004000039876543210977",
		})
		r := authed(httptest.NewRequest("POST", "/comptes", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateCompte(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var c models.Compte
		json.Unmarshal(w.Body.Bytes(), &c)
		assert.Equal(t, models.CompteDeviseDefaut, c.Devise)
		assert.Equal(t, models.Montant(0), c.Solde)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short IBAN fails validation", func(t *testing.T) {
		body, _ := json.Marshal(CompteRequest{
			Type:   "Livret A",
			Numero: "00098765432",
			IBAN:   "FR76",
		})
		r := authed(httptest.NewRequest("POST", "/comptes", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.CreateCompte(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCompteService_UpdateCompte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("UPDATE comptes SET").
			WillReturnError(sql.ErrNoRows)

		body, _ := json.Marshal(CompteRequest{
			Type:   "Compte Courant",
			Numero: "00012345678",
			IBAN:   "FR7630004000031234567890143",
		})
		r := authed(httptest.NewRequest("PUT", "/comptes/99", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()
		service.UpdateCompte(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompteService_DeleteCompte(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCompteService(db)

	t.Run("existing account deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM comptes").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := authed(httptest.NewRequest("DELETE", "/comptes/1", nil))
		w := httptest.NewRecorder()
		service.DeleteCompte(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM comptes").
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := authed(httptest.NewRequest("DELETE", "/comptes/99", nil))
		w := httptest.NewRecorder()
		service.DeleteCompte(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
