package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ona79/facturation-app/pkg/usecase"
)

func (s *Server) listFactures(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.List(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération des factures", err)
		return
	}
	ok(w, http.StatusOK, toFactures(invoices))
}

func (s *Server) getFacture(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération de la facture", err)
		return
	}
	ok(w, http.StatusOK, toFacture(inv))
}

func (s *Server) getFactureByNumero(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.GetByNumber(r.Context(), mux.Vars(r)["numero"])
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération de la facture", err)
		return
	}
	ok(w, http.StatusOK, toFacture(inv))
}

func (s *Server) createFacture(w http.ResponseWriter, r *http.Request) {
	var req factureRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Requête invalide", err)
		return
	}
	inv, err := s.issuer.Issue(r.Context(), req.issueInput())
	if err != nil {
		s.writeError(w, r, "Erreur lors de la création de la facture", err)
		return
	}
	ok(w, http.StatusCreated, toFacture(inv))
}

func (s *Server) previewFacture(w http.ResponseWriter, r *http.Request) {
	var req factureRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Requête invalide", err)
		return
	}
	lines, totals, err := usecase.Preview(req.lines(), string(req.TauxTVA))
	if err != nil {
		s.writeError(w, r, "Erreur lors du calcul de la facture", err)
		return
	}
	ok(w, http.StatusOK, toApercu(lines, totals))
}

func (s *Server) facturePDF(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération de la facture", err)
		return
	}
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, inv); err != nil {
		s.writeError(w, r, "Erreur lors de la génération du PDF", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "Facture_"+inv.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) deleteFacture(w http.ResponseWriter, r *http.Request) {
	if err := s.invoices.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, "Erreur lors de la suppression", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Facture supprimée avec succès"})
}
