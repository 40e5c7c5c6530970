package main

import (
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/espaceclient/backend/internal/database"
	"github.com/espaceclient/backend/internal/models"
)

// Provisions the demo client with accounts, a card, a beneficiary and some
// ledger history. Also emits an identity-provider seed file carrying an
// argon2id hash of the secret code, for environments where login is
// federated instead of checked against the profiles table.
func main() {
	seedPath := flag.String("seed-out", "provision_seed.json", "path of the identity-provider seed file")
	flag.Parse()

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")

	db := database.InitDatabase()
	defer db.Close()

	userID, err := provisionProfile(db)
	if err != nil {
		log.Fatalf("Failed to provision profile: %v", err)
	}

	if err := provisionComptes(db, userID); err != nil {
		log.Fatalf("Failed to provision accounts: %v", err)
	}

	if err := writeSeedFile(*seedPath, userID); err != nil {
		log.Fatalf("Failed to write seed file: %v", err)
	}

	log.Printf("Provisioning complete for client 3961515267 (ID: %s)", userID)
}

func provisionProfile(db *sql.DB) (string, error) {
	var userID string
	err := db.QueryRow(`SELECT id FROM profiles WHERE numero_client = $1`, "3961515267").Scan(&userID)
	if err == nil {
		log.Printf("Profile already provisioned (ID: %s)", userID)
		return userID, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	userID = uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO profiles (id, nom, prenom, email, numero_client, code_secret, localisation, statut)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, "MARIE MADELEINE", "PAOLA", "paola.mariemadeleine@example.com",
		"3961515267", "52302", "Paris, France", models.ProfileStatutActive,
	)
	if err != nil {
		return "", err
	}

	log.Printf("Profile created for PAOLA MARIE MADELEINE (ID: %s)", userID)
	return userID, nil
}

func provisionComptes(db *sql.DB, userID string) error {
	var existing int
	if err := db.QueryRow(`SELECT COUNT(*) FROM comptes WHERE user_id = $1`, userID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		log.Printf("Accounts already provisioned (%d found)", existing)
		return nil
	}

	var courantID int64
	err := db.QueryRow(
		`INSERT INTO comptes (type, numero, solde, devise, couleur, iban, statut, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		"Compte Courant", "00012345678", models.MontantFromEuros(152430)+50, // 152430.50
		models.CompteDeviseDefaut, models.CompteCouleurDefaut,
		"FR7630004000031234567890143", models.CompteStatutActive, userID,
	).Scan(&courantID)
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO comptes (type, numero, solde, devise, couleur, iban, statut, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		"Livret A", "00098765432", models.MontantFromEuros(22950),
		models.CompteDeviseDefaut, "#e4003a",
		"FR7630004000039876543210977", models.CompteStatutActive, userID,
	)
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO cartes (numero, titulaire, type, date_expiration, plafond_paiement, plafond_retrait, statut, compte_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		"4970 10** **** 3456", "PAOLA MARIE MADELEINE", "Visa Premier", "09/27",
		models.MontantFromEuros(3000), models.MontantFromEuros(1000),
		models.CarteStatutActive, courantID, userID,
	)
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO beneficiaires (nom, prenom, email, iban, bic, banque, alias, type, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		"DUPONT", "Jean", "jean.dupont@example.com",
		"FR7630006000011234567890189", "AGRIFRPP", "Crédit Agricole", "Loyer",
		models.BeneficiaireTypeDefaut, userID,
	)
	if err != nil {
		return err
	}

	now := time.Now()
	demoTransactions := []struct {
		typ         string
		montant     models.Montant
		description string
		categorie   string
		icone       string
		daysAgo     int
	}{
		{models.TransactionCredit, models.MontantFromEuros(2450), "Salaire", "Revenus", "fas fa-building", 3},
		{models.TransactionDebit, 6890, "Carrefour Paris 15", "Courses", "fas fa-shopping-cart", 2}, // 68.90
		{models.TransactionDebit, 1250, "SNCF Connect", "Transport", "fas fa-train", 1},             // 12.50
	}
	for _, tx := range demoTransactions {
		date := now.AddDate(0, 0, -tx.daysAgo)
		_, err = db.Exec(
			`INSERT INTO transactions (type, montant, description, categorie, date_transaction, heure_transaction, icone, localisation, statut, compte_id, user_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			tx.typ, tx.montant, tx.description, tx.categorie, date, date.Format("15:04:05"),
			tx.icone, "Paris, France", models.TransactionStatutCompleted, courantID, userID,
		)
		if err != nil {
			return err
		}
	}

	_, err = db.Exec(
		`INSERT INTO notifications (user_id, titre, message, type) VALUES ($1, $2, $3, $4)`,
		userID, "Bienvenue",
		"Bienvenue sur votre espace client. Retrouvez vos comptes, cartes et virements depuis votre tableau de bord.",
		models.NotificationInfo,
	)
	if err != nil {
		return err
	}

	log.Println("Accounts, card, beneficiary and demo history created")
	return nil
}

// writeSeedFile emits the identity-provider record. The hash uses the same
// argon2id encoding as the provider expects: base64(salt)$base64(hash).
func writeSeedFile(path, userID string) error {
	hash, err := hashCodeSecret("52302")
	if err != nil {
		return err
	}

	seed := map[string]any{
		"id":            userID,
		"email":         "paola.mariemadeleine@example.com",
		"password_hash": hash,
		"metadata": map[string]string{
			"nom":           "MARIE MADELEINE",
			"prenom":        "PAOLA",
			"numero_client": "3961515267",
		},
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func hashCodeSecret(code string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(code), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}
