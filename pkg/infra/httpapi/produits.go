package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ona79/facturation-app/pkg/usecase"
)

func (s *Server) listProduits(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération des produits", err)
		return
	}
	ok(w, http.StatusOK, toProduits(entries))
}

func (s *Server) searchProduits(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		s.writeError(w, r, "Erreur lors de la recherche", err)
		return
	}
	ok(w, http.StatusOK, toProduits(entries))
}

func (s *Server) recentProduits(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.Recent(r.Context(), usecase.DefaultRecentLimit)
	if err != nil {
		s.writeError(w, r, "Erreur lors de la récupération des produits récents", err)
		return
	}
	ok(w, http.StatusOK, toProduits(entries))
}

func (s *Server) upsertProduit(w http.ResponseWriter, r *http.Request) {
	var req produitRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Requête invalide", err)
		return
	}
	entry, err := s.catalog.Upsert(r.Context(), req.upsertInput())
	if err != nil {
		s.writeError(w, r, "Erreur lors de la création/mise à jour du produit", err)
		return
	}
	ok(w, http.StatusCreated, toProduit(entry))
}

func (s *Server) updateProduit(w http.ResponseWriter, r *http.Request) {
	var req produitRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Requête invalide", err)
		return
	}
	entry, err := s.catalog.Update(r.Context(), mux.Vars(r)["id"], req.updateInput())
	if err != nil {
		s.writeError(w, r, "Erreur lors de la mise à jour", err)
		return
	}
	ok(w, http.StatusOK, toProduit(entry))
}

func (s *Server) deleteProduit(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, "Erreur lors de la suppression", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Produit supprimé avec succès"})
}
