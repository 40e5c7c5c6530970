package models

import "time"

// Beneficiaire is a saved payee with bank routing details.
type Beneficiaire struct {
	ID           int64     `json:"id" db:"id"`
	Nom          string    `json:"nom" db:"nom"`
	Prenom       string    `json:"prenom" db:"prenom"`
	Email        *string   `json:"email" db:"email"`
	IBAN         string    `json:"iban" db:"iban"`
	BIC          string    `json:"bic" db:"bic"`
	Banque       *string   `json:"banque" db:"banque"`
	Alias        *string   `json:"alias" db:"alias"`
	Type         string    `json:"type" db:"type"`
	UserID       string    `json:"user_id" db:"user_id"`
	DateCreation time.Time `json:"date_creation" db:"date_creation"`
}

const BeneficiaireTypeDefaut = "particulier"
