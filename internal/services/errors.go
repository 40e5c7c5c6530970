package services

import "errors"

var (
	ErrNotFound           = errors.New("ressource introuvable")
	ErrCodeSecretInvalide = errors.New("code secret invalide")
	ErrCompteVerrouille   = errors.New("compte temporairement verrouillé")
	ErrSoldeInsuffisant   = errors.New("solde insuffisant")
	ErrLimiteDepassee     = errors.New("limite quotidienne dépassée")
)
