package models

import "time"

// Transaction is an immutable ledger entry recording money movement against
// an account. Only statut is ever updated after creation.
type Transaction struct {
	ID               int64     `json:"id" db:"id"`
	Type             string    `json:"type" db:"type"`
	Montant          Montant   `json:"montant" db:"montant"`
	Description      string    `json:"description" db:"description"`
	Categorie        string    `json:"categorie" db:"categorie"`
	DateTransaction  time.Time `json:"date_transaction" db:"date_transaction"`
	HeureTransaction string    `json:"heure_transaction" db:"heure_transaction"`
	Icone            string    `json:"icone" db:"icone"`
	Localisation     string    `json:"localisation" db:"localisation"`
	Statut           string    `json:"statut" db:"statut"`
	Reference        string    `json:"reference" db:"reference"`
	CompteID         int64     `json:"compte_id" db:"compte_id"`
	UserID           string    `json:"user_id" db:"user_id"`
	DateCreation     time.Time `json:"date_creation" db:"date_creation"`
}

const (
	TransactionCredit          = "credit"
	TransactionDebit           = "debit"
	TransactionVirementSortant = "virement_sortant"

	TransactionStatutCompleted = "completed"
	TransactionStatutEnAttente = "en_attente"

	TransactionCategorieDefaut    = "Transfert"
	TransactionIconeDefaut        = "fas fa-exchange-alt"
	TransactionLocalisationDefaut = "Virement bancaire"
)
