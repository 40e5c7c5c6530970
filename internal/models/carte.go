package models

import "time"

// Carte is a display card attached to a profile. It has no transactional
// lifecycle beyond create/update/delete and status toggling.
type Carte struct {
	ID              int64     `json:"id" db:"id"`
	Numero          string    `json:"numero" db:"numero"`
	Titulaire       string    `json:"titulaire" db:"titulaire"`
	Type            string    `json:"type" db:"type"`
	DateExpiration  string    `json:"date_expiration" db:"date_expiration"`
	PlafondPaiement Montant   `json:"plafond_paiement" db:"plafond_paiement"`
	PlafondRetrait  Montant   `json:"plafond_retrait" db:"plafond_retrait"`
	Statut          string    `json:"statut" db:"statut"`
	CompteID        *int64    `json:"compte_id" db:"compte_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	DateCreation    time.Time `json:"date_creation" db:"date_creation"`
}

const (
	CarteStatutActive  = "active"
	CarteStatutBloquee = "bloquee"
)
