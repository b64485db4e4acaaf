package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/usecase"
)

// numeric accepts a JSON number or a numeric string and keeps its text so
// validation can report the exact field that failed to coerce.
type numeric string

func (n *numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return errors.New("expected a number or a numeric string")
	}
	*n = numeric(num.String())
	return nil
}

type ligneRequest struct {
	Nom          string  `json:"nom"`
	PrixUnitaire numeric `json:"prixUnitaire"`
	Quantite     numeric `json:"quantite"`
	Description  string  `json:"description"`
}

type entrepriseDTO struct {
	Nom       string `json:"nom"`
	Logo      string `json:"logo"`
	Adresse   string `json:"adresse"`
	Telephone string `json:"telephone"`
	Email     string `json:"email"`
}

type factureRequest struct {
	Produits   []ligneRequest `json:"produits"`
	Entreprise entrepriseDTO  `json:"entreprise"`
	Devise     string         `json:"devise"`
	Remarques  string         `json:"remarques"`
	TauxTVA    numeric        `json:"tauxTVA"`
}

func (r factureRequest) lines() []usecase.LineInput {
	out := make([]usecase.LineInput, 0, len(r.Produits))
	for _, p := range r.Produits {
		out = append(out, usecase.LineInput{
			Name:        p.Nom,
			UnitPrice:   string(p.PrixUnitaire),
			Quantity:    string(p.Quantite),
			Description: p.Description,
		})
	}
	return out
}

func (r factureRequest) issueInput() usecase.IssueInput {
	return usecase.IssueInput{
		Lines: r.lines(),
		Issuer: domain.Issuer{
			Name:    r.Entreprise.Nom,
			Address: r.Entreprise.Adresse,
			Phone:   r.Entreprise.Telephone,
			Email:   r.Entreprise.Email,
			Logo:    r.Entreprise.Logo,
		},
		Currency: r.Devise,
		Notes:    r.Remarques,
		TaxRate:  string(r.TauxTVA),
	}
}

type produitRequest struct {
	Nom          *string  `json:"nom"`
	PrixUnitaire *numeric `json:"prixUnitaire"`
	Description  *string  `json:"description"`
}

func (r produitRequest) upsertInput() usecase.UpsertInput {
	in := usecase.UpsertInput{Description: r.Description}
	if r.Nom != nil {
		in.Name = *r.Nom
	}
	if r.PrixUnitaire != nil {
		in.UnitPrice = string(*r.PrixUnitaire)
	}
	return in
}

func (r produitRequest) updateInput() usecase.UpdateInput {
	in := usecase.UpdateInput{Name: r.Nom, Description: r.Description}
	if r.Nom != nil && *r.Nom == "" {
		// an empty name keeps the stored one
		in.Name = nil
	}
	if r.PrixUnitaire != nil {
		s := string(*r.PrixUnitaire)
		in.UnitPrice = &s
	}
	return in
}

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type ligneDTO struct {
	Nom          string      `json:"nom"`
	PrixUnitaire json.Number `json:"prixUnitaire"`
	Quantite     int         `json:"quantite"`
	Description  string      `json:"description"`
	Total        json.Number `json:"total"`
}

type tvaDTO struct {
	Taux    json.Number `json:"taux"`
	Montant json.Number `json:"montant"`
}

type factureDTO struct {
	ID           string        `json:"_id"`
	Numero       string        `json:"numero"`
	Date         time.Time     `json:"date"`
	Entreprise   entrepriseDTO `json:"entreprise"`
	Produits     []ligneDTO    `json:"produits"`
	SousTotal    json.Number   `json:"sousTotal"`
	TVA          tvaDTO        `json:"tva"`
	TotalGeneral json.Number   `json:"totalGeneral"`
	Devise       string        `json:"devise"`
	Remarques    string        `json:"remarques"`
}

func toLignes(lines []domain.LineItem) []ligneDTO {
	out := make([]ligneDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, ligneDTO{
			Nom:          l.Name,
			PrixUnitaire: num(l.UnitPrice),
			Quantite:     l.Quantity,
			Description:  l.Description,
			Total:        num(l.LineTotal),
		})
	}
	return out
}

func toFacture(inv *domain.Invoice) factureDTO {
	return factureDTO{
		ID:     inv.ID,
		Numero: inv.Number,
		Date:   inv.IssuedAt,
		Entreprise: entrepriseDTO{
			Nom:       inv.Issuer.Name,
			Logo:      inv.Issuer.Logo,
			Adresse:   inv.Issuer.Address,
			Telephone: inv.Issuer.Phone,
			Email:     inv.Issuer.Email,
		},
		Produits:     toLignes(inv.Lines),
		SousTotal:    num(inv.Subtotal),
		TVA:          tvaDTO{Taux: num(inv.Tax.Rate), Montant: num(inv.Tax.Amount)},
		TotalGeneral: num(inv.GrandTotal),
		Devise:       inv.Currency,
		Remarques:    inv.Notes,
	}
}

func toFactures(invs []domain.Invoice) []factureDTO {
	out := make([]factureDTO, 0, len(invs))
	for i := range invs {
		out = append(out, toFacture(&invs[i]))
	}
	return out
}

type apercuDTO struct {
	Produits     []ligneDTO  `json:"produits"`
	SousTotal    json.Number `json:"sousTotal"`
	TVA          tvaDTO      `json:"tva"`
	TotalGeneral json.Number `json:"totalGeneral"`
}

func toApercu(lines []domain.LineItem, t domain.Totals) apercuDTO {
	return apercuDTO{
		Produits:     toLignes(lines),
		SousTotal:    num(t.Subtotal),
		TVA:          tvaDTO{Taux: num(t.Tax.Rate), Montant: num(t.Tax.Amount)},
		TotalGeneral: num(t.GrandTotal),
	}
}

type produitDTO struct {
	ID                  string      `json:"_id"`
	Nom                 string      `json:"nom"`
	PrixUnitaire        json.Number `json:"prixUnitaire"`
	Description         string      `json:"description"`
	NbUtilisations      int         `json:"nbUtilisations"`
	DerniereUtilisation time.Time   `json:"derniereUtilisation"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

func toProduit(e *domain.CatalogEntry) produitDTO {
	return produitDTO{
		ID:                  e.ID,
		Nom:                 e.Name,
		PrixUnitaire:        num(e.UnitPrice),
		Description:         e.Description,
		NbUtilisations:      e.UsageCount,
		DerniereUtilisation: e.LastUsedAt,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toProduits(entries []domain.CatalogEntry) []produitDTO {
	out := make([]produitDTO, 0, len(entries))
	for i := range entries {
		out = append(out, toProduit(&entries[i]))
	}
	return out
}
