package models

import "time"

// Compte is a bank account owned by exactly one profile.
type Compte struct {
	ID           int64     `json:"id" db:"id"`
	Type         string    `json:"type" db:"type"`
	Numero       string    `json:"numero" db:"numero"`
	Solde        Montant   `json:"solde" db:"solde"`
	Devise       string    `json:"devise" db:"devise"`
	Couleur      string    `json:"couleur" db:"couleur"`
	IBAN         string    `json:"iban" db:"iban"`
	Statut       string    `json:"statut" db:"statut"`
	LimiteCredit *Montant  `json:"limite_credit" db:"limite_credit"`
	UserID       string    `json:"user_id" db:"user_id"`
	DateCreation time.Time `json:"date_creation" db:"date_creation"`
}

const (
	CompteStatutActive = "active"
	CompteStatutFerme  = "ferme"

	CompteDeviseDefaut  = "EUR"
	CompteCouleurDefaut = "#008854"
)
