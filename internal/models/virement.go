package models

import "time"

// Virement is a user-initiated outbound transfer request. Its lifecycle is
// distinct from the ledger Transaction it eventually produces:
// en_validation -> (traite | annule).
type Virement struct {
	ID               int64      `json:"id" db:"id"`
	Montant          Montant    `json:"montant" db:"montant"`
	BeneficiaireID   *int64     `json:"beneficiaire_id" db:"beneficiaire_id"`
	IBANDestinataire string     `json:"iban_destinataire" db:"iban_destinataire"`
	Motif            string     `json:"motif" db:"motif"`
	CompteSourceID   int64      `json:"compte_source_id" db:"compte_source_id"`
	UserID           string     `json:"user_id" db:"user_id"`
	Statut           string     `json:"statut" db:"statut"`
	Reference        string     `json:"reference" db:"reference"`
	DateVirement     time.Time  `json:"date_virement" db:"date_virement"`
	DateAnnulation   *time.Time `json:"date_annulation" db:"date_annulation"`
}

const (
	VirementEnValidation = "en_validation"
	VirementTraite       = "traite"
	VirementAnnule       = "annule"
)

// LimiteVirement reports daily-limit headroom for a user.
type LimiteVirement struct {
	TotalJour  Montant `json:"total_jour"`
	LimiteJour Montant `json:"limite_jour"`
	Reste      Montant `json:"reste"`
	Autorise   bool    `json:"autorise"`
}

// VirementStats aggregates a user's transfer history by status.
type VirementStats struct {
	Total        int     `json:"total"`
	TotalMontant Montant `json:"total_montant"`
	EnValidation int     `json:"en_validation"`
	Traites      int     `json:"traites"`
	Annules      int     `json:"annules"`
}
