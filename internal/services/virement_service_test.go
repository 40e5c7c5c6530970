package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/espaceclient/backend/internal/config"
	"github.com/espaceclient/backend/internal/models"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

func newTestVirementService(db *sql.DB) *VirementService {
	cfg := &config.VirementConfig{PlafondMontant: 100000, PlafondQuotidien: 100000, IBANMinLength: 20}
	return NewVirementService(db, cfg, NewEmailService(db), NewNotificationService(db))
}

func authed(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "userID", testUserID))
}

func virementRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "montant", "beneficiaire_id", "iban_destinataire", "motif",
		"compte_source_id", "user_id", "statut", "reference", "date_virement", "date_annulation",
	})
}

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "montant", "description", "categorie", "date_transaction",
		"heure_transaction", "icone", "localisation", "statut", "reference",
		"compte_id", "user_id", "date_creation",
	})
}

func postVirement(service *VirementService, req VirementRequest) *httptest.ResponseRecorder {
	body, _ := json.Marshal(req)
	r := authed(httptest.NewRequest("POST", "/virements", bytes.NewBuffer(body)))
	w := httptest.NewRecorder()
	service.CreateVirement(w, r)
	return w
}

func TestVirementService_CreateVirement(t *testing.T) {
	manualIBAN := "FR7630006000011234567890189"

	t.Run("successful transfer debits exactly the amount", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		// Balance 200, transfer 100.
		mock.ExpectQuery("FROM comptes WHERE id").
			WithArgs(int64(1), testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "solde", "iban", "statut", "user_id"}).
				AddRow(1, "200.00", "FR7630004000031234567890143", "active", testUserID))
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0.00"))
		mock.ExpectQuery("INSERT INTO virements").
			WillReturnRows(virementRows().AddRow(
				7, "100.00", nil, manualIBAN, "Loyer", 1, testUserID,
				models.VirementEnValidation, "VIR-12345678-ABCD", time.Now(), nil))
		mock.ExpectQuery("FROM virements WHERE id").
			WithArgs(int64(7)).
			WillReturnRows(virementRows().AddRow(
				7, "100.00", nil, manualIBAN, "Loyer", 1, testUserID,
				models.VirementEnValidation, "VIR-12345678-ABCD", time.Now(), nil))
		mock.ExpectQuery("SELECT solde FROM comptes").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"solde"}).AddRow("200.00"))
		mock.ExpectExec("UPDATE comptes SET solde").
			WithArgs("100.00", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// The motif carries over as the ledger description.
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(models.TransactionVirementSortant, sqlmock.AnyArg(), "Loyer",
				models.TransactionCategorieDefaut, sqlmock.AnyArg(), sqlmock.AnyArg(),
				models.TransactionIconeDefaut, models.TransactionLocalisationDefaut,
				models.TransactionStatutEnAttente, "VIR-12345678-ABCD", int64(1), testUserID).
			WillReturnRows(transactionRows().AddRow(
				3, models.TransactionVirementSortant, "100.00", "Loyer",
				models.TransactionCategorieDefaut, time.Now(), "10:15:00",
				models.TransactionIconeDefaut, models.TransactionLocalisationDefaut,
				models.TransactionStatutEnAttente, "VIR-12345678-ABCD", 1, testUserID, time.Now()))
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := postVirement(service, VirementRequest{
			Montant:          models.MontantFromEuros(100),
			IBANDestinataire: manualIBAN,
			Motif:            "Loyer",
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp VirementResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, models.VirementEnValidation, resp.Statut)
		assert.NotNil(t, resp.Transaction)
		assert.Equal(t, "Loyer", resp.Transaction.Description)
		assert.Equal(t, resp.Virement.Reference, resp.Transaction.Reference)
		assert.Equal(t, models.TransactionStatutEnAttente, resp.Transaction.Statut)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rejected before any write", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		// Balance 50, transfer 100.
		mock.ExpectQuery("FROM comptes WHERE id").
			WithArgs(int64(1), testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "solde", "iban", "statut", "user_id"}).
				AddRow(1, "50.00", "FR7630004000031234567890143", "active", testUserID))

		w := postVirement(service, VirementRequest{
			Montant:          models.MontantFromEuros(100),
			IBANDestinataire: manualIBAN,
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("daily limit boundary is accepted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		// Same-day total 99900, transfer 100: exactly the ceiling.
		mock.ExpectQuery("FROM comptes WHERE id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "solde", "iban", "statut", "user_id"}).
				AddRow(1, "150000.00", "FR7630004000031234567890143", "active", testUserID))
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("99900.00"))
		mock.ExpectQuery("INSERT INTO virements").
			WillReturnRows(virementRows().AddRow(
				8, "100.00", nil, manualIBAN, "", 1, testUserID,
				models.VirementEnValidation, "VIR-12345678-EFGH", time.Now(), nil))
		mock.ExpectQuery("FROM virements WHERE id").
			WillReturnRows(virementRows().AddRow(
				8, "100.00", nil, manualIBAN, "", 1, testUserID,
				models.VirementEnValidation, "VIR-12345678-EFGH", time.Now(), nil))
		mock.ExpectQuery("SELECT solde FROM comptes").
			WillReturnRows(sqlmock.NewRows([]string{"solde"}).AddRow("150000.00"))
		mock.ExpectExec("UPDATE comptes SET solde").
			WithArgs("149900.00", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnRows(transactionRows().AddRow(
				4, models.TransactionVirementSortant, "100.00", "Virement VIR-12345678-EFGH",
				models.TransactionCategorieDefaut, time.Now(), "10:15:00",
				models.TransactionIconeDefaut, models.TransactionLocalisationDefaut,
				models.TransactionStatutEnAttente, "VIR-12345678-EFGH", 1, testUserID, time.Now()))
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := postVirement(service, VirementRequest{
			Montant:          models.MontantFromEuros(100),
			IBANDestinataire: manualIBAN,
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("daily limit exceeded by one cent", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		mock.ExpectQuery("FROM comptes WHERE id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "solde", "iban", "statut", "user_id"}).
				AddRow(1, "150000.00", "FR7630004000031234567890143", "active", testUserID))
		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("99900.01"))

		w := postVirement(service, VirementRequest{
			Montant:          models.MontantFromEuros(100),
			IBANDestinataire: manualIBAN,
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		w := postVirement(service, VirementRequest{
			Montant:          -models.MontantFromEuros(10),
			IBANDestinataire: manualIBAN,
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short manual IBAN rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		w := postVirement(service, VirementRequest{
			Montant:          models.MontantFromEuros(10),
			IBANDestinataire: "FR76",
			CompteSourceID:   1,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated request", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestVirementService(db)

		body, _ := json.Marshal(VirementRequest{Montant: models.MontantFromEuros(10), CompteSourceID: 1})
		r := httptest.NewRequest("POST", "/virements", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		service.CreateVirement(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestVirementService_CancelVirement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := newTestVirementService(db)

	t.Run("pending transfer is cancelled", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("UPDATE virements SET statut").
			WillReturnRows(virementRows().AddRow(
				7, "100.00", nil, "FR7630006000011234567890189", "", 1, testUserID,
				models.VirementAnnule, "VIR-12345678-ABCD", now, now))
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := authed(httptest.NewRequest("PUT", "/virements/7/annuler", nil))
		w := httptest.NewRecorder()
		service.CancelVirement(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var v models.Virement
		json.Unmarshal(w.Body.Bytes(), &v)
		assert.Equal(t, models.VirementAnnule, v.Statut)
		assert.NotNil(t, v.DateAnnulation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already cancelled transfer is not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE virements SET statut").
			WillReturnError(sql.ErrNoRows)

		r := authed(httptest.NewRequest("PUT", "/virements/7/annuler", nil))
		w := httptest.NewRecorder()
		service.CancelVirement(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVirementService_GetLimite(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := newTestVirementService(db)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("2500.00"))

	r := authed(httptest.NewRequest("GET", "/virements/limite", nil))
	w := httptest.NewRecorder()
	service.GetLimite(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var limite models.LimiteVirement
	json.Unmarshal(w.Body.Bytes(), &limite)
	assert.Equal(t, models.MontantFromEuros(2500), limite.TotalJour)
	assert.Equal(t, models.MontantFromEuros(97500), limite.Reste)
	assert.True(t, limite.Autorise)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVirementService_VerifierLimite(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := newTestVirementService(db)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("99950.00"))

	limite, err := service.verifierLimite(testUserID, models.MontantFromEuros(100))
	assert.ErrorIs(t, err, ErrLimiteDepassee)
	assert.Equal(t, models.MontantFromEuros(50), limite.Reste)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVirementService_MarkTraite(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := newTestVirementService(db)

	t.Run("pending transfer is finalized", func(t *testing.T) {
		mock.ExpectExec("UPDATE virements SET statut").
			WithArgs(models.VirementTraite, int64(7), models.VirementEnValidation).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.MarkTraite(7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already finalized transfer", func(t *testing.T) {
		mock.ExpectExec("UPDATE virements SET statut").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, service.MarkTraite(7), ErrNotFound)
	})
}

func TestGenerateReference(t *testing.T) {
	pattern := regexp.MustCompile(`^VIR-\d{8}-[A-Z]{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		ref := generateReference()
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1)
}
