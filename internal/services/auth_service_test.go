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
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/espaceclient/backend/internal/models"
)

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "nom", "prenom", "email", "numero_client", "code_secret",
		"localisation", "statut", "derniere_connexion", "date_creation",
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)

	service := NewAuthService(db, nil)

	login := func(numeroClient, codeSecret string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(LoginRequest{NumeroClient: numeroClient, CodeSecret: codeSecret})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		service.Login(w, r)
		return w
	}

	t.Run("successful login", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("3961515267", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("FROM profiles WHERE numero_client").
			WithArgs("3961515267").
			WillReturnRows(profileRows().AddRow(
				"11111111-1111-1111-1111-111111111111", "MARIE MADELEINE", "PAOLA",
				"paola.mariemadeleine@example.com", "3961515267", "52302",
				"Paris, France", models.ProfileStatutActive, nil, time.Now()))
		mock.ExpectExec("INSERT INTO tentatives_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO sessions_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE profiles SET derniere_connexion").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := login("3961515267", "52302")

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "3961515267", response.Profile.NumeroClient)
		assert.Empty(t, response.Profile.CodeSecret)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locked out after three failures", func(t *testing.T) {
		// Even with the correct secret code the attempt stops at the lockout
		// check, and no further attempt row is written: the failure count may
		// only age out, never refresh itself.
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("3961515267", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		w := login("3961515267", "52302")

		assert.Equal(t, http.StatusLocked, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("two failures do not lock", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("3961515267", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery("FROM profiles WHERE numero_client").
			WithArgs("3961515267").
			WillReturnRows(profileRows().AddRow(
				"11111111-1111-1111-1111-111111111111", "MARIE MADELEINE", "PAOLA",
				"paola.mariemadeleine@example.com", "3961515267", "52302",
				"Paris, France", models.ProfileStatutActive, nil, time.Now()))
		mock.ExpectExec("INSERT INTO tentatives_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO sessions_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE profiles SET derniere_connexion").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := login("3961515267", "52302")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong secret code records a failed attempt", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("3961515267", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("FROM profiles WHERE numero_client").
			WithArgs("3961515267").
			WillReturnRows(profileRows().AddRow(
				"11111111-1111-1111-1111-111111111111", "MARIE MADELEINE", "PAOLA",
				"paola.mariemadeleine@example.com", "3961515267", "52302",
				"Paris, France", models.ProfileStatutActive, nil, time.Now()))
		mock.ExpectExec("INSERT INTO tentatives_connexion").
			WithArgs("3961515267", sqlmock.AnyArg(), sqlmock.AnyArg(), models.TentativeFailed, "code secret invalide").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := login("3961515267", "99999")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive profile is refused", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("3961515267", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("FROM profiles WHERE numero_client").
			WithArgs("3961515267").
			WillReturnRows(profileRows().AddRow(
				"11111111-1111-1111-1111-111111111111", "MARIE MADELEINE", "PAOLA",
				"paola.mariemadeleine@example.com", "3961515267", "52302",
				"Paris, France", models.ProfileStatutInactif, nil, time.Now()))
		mock.ExpectExec("INSERT INTO tentatives_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := login("3961515267", "52302")

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown client number", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("1234567890", models.TentativeFailed).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("FROM profiles WHERE numero_client").
			WithArgs("1234567890").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO tentatives_connexion").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := login("1234567890", "52302")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation rejects non-numeric client number", func(t *testing.T) {
		w := login("abcdefgh", "52302")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_CheckLockout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("3961515267", models.TentativeFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	assert.ErrorIs(t, service.checkLockout("3961515267"), ErrCompteVerrouille)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("3961515267", models.TentativeFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	assert.NoError(t, service.checkLockout("3961515267"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateJWT(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)

	token, err := generateJWT("11111111-1111-1111-1111-111111111111")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}
