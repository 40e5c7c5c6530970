package models

import "time"

// Profile is the identity and credential record of a registered client.
// The code secret is compared verbatim at login; it never leaves the server.
type Profile struct {
	ID                string     `json:"id" db:"id"`
	Nom               string     `json:"nom" db:"nom"`
	Prenom            string     `json:"prenom" db:"prenom"`
	Email             string     `json:"email" db:"email"`
	NumeroClient      string     `json:"numero_client" db:"numero_client"`
	CodeSecret        string     `json:"-" db:"code_secret"`
	Localisation      string     `json:"localisation" db:"localisation"`
	Statut            string     `json:"statut" db:"statut"`
	DerniereConnexion *time.Time `json:"derniere_connexion" db:"derniere_connexion"`
	DateCreation      time.Time  `json:"date_creation" db:"date_creation"`
}

const (
	ProfileStatutActive  = "active"
	ProfileStatutInactif = "inactif"
)

// TentativeConnexion is one audit row of a login attempt, used to
// approximate lockout over a 30 minute lookback window.
type TentativeConnexion struct {
	ID            int64     `json:"id" db:"id"`
	NumeroClient  string    `json:"numero_client" db:"numero_client"`
	IPAddress     string    `json:"ip_address" db:"ip_address"`
	UserAgent     string    `json:"user_agent" db:"user_agent"`
	Statut        string    `json:"statut" db:"statut"`
	Raison        string    `json:"raison" db:"raison"`
	DateTentative time.Time `json:"date_tentative" db:"date_tentative"`
}

const (
	TentativeFailed  = "failed"
	TentativeSuccess = "success"
)

// SessionConnexion is the audit row written on every successful login.
type SessionConnexion struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	IPAddress       string     `json:"ip_address" db:"ip_address"`
	UserAgent       string     `json:"user_agent" db:"user_agent"`
	Localisation    string     `json:"localisation" db:"localisation"`
	Statut          string     `json:"statut" db:"statut"`
	DateConnexion   time.Time  `json:"date_connexion" db:"date_connexion"`
	DateDeconnexion *time.Time `json:"date_deconnexion" db:"date_deconnexion"`
}

const (
	SessionActive = "active"
	SessionClosed = "closed"
)
