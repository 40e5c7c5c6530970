package services

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/espaceclient/backend/internal/models"
)

// SepaService renders transfers as ISO 20022 messages for downstream
// clearing. Only pacs.008 (credit transfer) and pacs.002 (status report)
// are produced.
type SepaService struct {
	db *sql.DB
}

func NewSepaService(db *sql.DB) *SepaService {
	return &SepaService{db: db}
}

// GenerateSepa renders a transfer as a pacs.008 message
// @Summary Generate SEPA message
// @Description Render a transfer as an ISO 20022 pacs.008 XML document
// @Tags virements
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {string} string "Transfer not found"
// @Failure 500 {object} map[string]string
// @Router /virements/{id}/sepa [post]
func (s *SepaService) GenerateSepa(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	virementID := chi.URLParam(r, "id")

	var v models.Virement
	err := scanVirement(s.db.QueryRow(
		`SELECT `+virementColumns+` FROM virements WHERE id = $1 AND user_id = $2`,
		virementID, userID,
	), &v)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Virement introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[SEPA] Failed to fetch transfer %s: %v", virementID, err)
			SendErrorResponse(w, "Failed to fetch transfer", http.StatusInternalServerError, nil)
		}
		return
	}

	var expediteur, sourceIBAN, benefNom, benefBIC string
	if err := s.db.QueryRow(
		`SELECT p.nom || ' ' || p.prenom, c.iban FROM profiles p
		 JOIN comptes c ON c.id = $2 WHERE p.id = $1`,
		v.UserID, v.CompteSourceID,
	).Scan(&expediteur, &sourceIBAN); err != nil {
		log.Printf("[SEPA] Failed to resolve sender for %s: %v", v.Reference, err)
		SendErrorResponse(w, "Failed to build message", http.StatusInternalServerError, nil)
		return
	}
	if v.BeneficiaireID != nil {
		if err := s.db.QueryRow(
			`SELECT nom || ' ' || prenom, bic FROM beneficiaires WHERE id = $1`, *v.BeneficiaireID,
		).Scan(&benefNom, &benefBIC); err != nil {
			log.Printf("[SEPA] Failed to resolve beneficiary for %s: %v", v.Reference, err)
			SendErrorResponse(w, "Failed to build message", http.StatusInternalServerError, nil)
			return
		}
	}

	doc := s.createPacs008(&v, expediteur, sourceIBAN, benefNom, benefBIC)
	xmlData, err := convertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[SEPA] pacs.008 generated for transfer %s", v.Reference)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "converted",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

// GetStatusReport renders a transfer's current state as a pacs.002 report
// @Summary Generate SEPA status report
// @Description Render a transfer's status as an ISO 20022 pacs.002 XML document
// @Tags virements
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {string} string "Transfer not found"
// @Router /virements/{id}/sepa/statut [get]
func (s *SepaService) GetStatusReport(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	virementID := chi.URLParam(r, "id")

	var v models.Virement
	err := scanVirement(s.db.QueryRow(
		`SELECT `+virementColumns+` FROM virements WHERE id = $1 AND user_id = $2`,
		virementID, userID,
	), &v)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Virement introuvable", http.StatusNotFound, nil)
		} else {
			log.Printf("[SEPA] Failed to fetch transfer %s: %v", virementID, err)
			SendErrorResponse(w, "Failed to fetch transfer", http.StatusInternalServerError, nil)
		}
		return
	}

	doc := s.createPacs002(&v)
	xmlData, err := convertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "reported",
		"messageType": "pacs.002.001.08",
		"xml":         xmlData,
	})
}

// createPacs008 builds a FIToFICustomerCreditTransfer from a transfer row.
func (s *SepaService) createPacs008(v *models.Virement, expediteur, sourceIBAN, benefNom, benefBIC string) *pacs_v08.FIToFICustomerCreditTransferV08 {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := v.DateVirement

	if benefBIC == "" {
		benefBIC = "NOTPROVIDED"
	}

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(models.CompteDeviseDefaut),
				Value: v.Montant.Euros(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(fmt.Sprintf("%d", v.ID))}[0],
					EndToEndId: common.Max35Text(v.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(v.Reference)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(models.CompteDeviseDefaut),
					Value: v.Montant.Euros(),
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("ESPCFRPP")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(expediteur)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(benefBIC)}[0],
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(benefNom)}[0],
				},
			},
		},
	}
}

// createPacs002 maps the transfer lifecycle onto external status codes:
// en_validation -> ACCP, traite -> ACSC, annule -> RJCT.
func (s *SepaService) createPacs002(v *models.Virement) *pacs_v08.FIToFIPaymentStatusReportV08 {
	status := "ACCP"
	switch v.Statut {
	case models.VirementTraite:
		status = "ACSC"
	case models.VirementAnnule:
		status = "RJCT"
	}

	return &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(time.Now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(fmt.Sprintf("%d", v.ID))}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(v.Reference)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(v.Reference)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}
}

// convertToXML marshals an ISO 20022 document to an XML string.
func convertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
