package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, message string, err error) {
	body := envelope{Success: false, Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}

// writeError maps domain errors onto status codes. Store internals are
// logged, not returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoLineItems):
		fail(w, http.StatusBadRequest, "Au moins un produit est requis", err)
	case errors.As(err, &verr):
		fail(w, http.StatusBadRequest, "Données invalides", verr)
	case errors.Is(err, domain.ErrInvoiceNotFound):
		fail(w, http.StatusNotFound, "Facture non trouvée", nil)
	case errors.Is(err, domain.ErrProductNotFound):
		fail(w, http.StatusNotFound, "Produit non trouvé", nil)
	case domain.IsConflict(err):
		fail(w, http.StatusConflict, message, err)
	case domain.IsUnavailable(err):
		s.logger.Error("store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		fail(w, http.StatusServiceUnavailable, "Base de données non disponible", domain.ErrStoreUnavailable)
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		fail(w, http.StatusInternalServerError, message, nil)
	}
}
