package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/usecase"
)

const maxBodyBytes = 1 << 20

// InvoiceRenderer turns a finalized invoice into a printable document.
type InvoiceRenderer interface {
	Render(w io.Writer, inv *domain.Invoice) error
}

// Server exposes the invoicing use cases as a JSON API.
type Server struct {
	issuer   *usecase.InvoiceIssuer
	invoices *usecase.InvoiceQueries
	catalog  *usecase.CatalogService
	renderer InvoiceRenderer
	logger   *zap.Logger
	origin   string
	clock    domain.Clock
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFrontendOrigin sets the single origin allowed by CORS.
func WithFrontendOrigin(origin string) Option {
	return func(s *Server) { s.origin = origin }
}

func WithClock(c domain.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func NewServer(
	issuer *usecase.InvoiceIssuer,
	invoices *usecase.InvoiceQueries,
	catalog *usecase.CatalogService,
	renderer InvoiceRenderer,
	opts ...Option,
) *Server {
	s := &Server{
		issuer:   issuer,
		invoices: invoices,
		catalog:  catalog,
		renderer: renderer,
		logger:   zap.NewNop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API wrapped in recovery, logging and CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)

	r.HandleFunc("/api/factures", s.listFactures).Methods(http.MethodGet)
	r.HandleFunc("/api/factures", s.createFacture).Methods(http.MethodPost)
	r.HandleFunc("/api/factures/apercu", s.previewFacture).Methods(http.MethodPost)
	r.HandleFunc("/api/factures/numero/{numero}", s.getFactureByNumero).Methods(http.MethodGet)
	r.HandleFunc("/api/factures/{id}/pdf", s.facturePDF).Methods(http.MethodGet)
	r.HandleFunc("/api/factures/{id}", s.getFacture).Methods(http.MethodGet)
	r.HandleFunc("/api/factures/{id}", s.deleteFacture).Methods(http.MethodDelete)

	r.HandleFunc("/api/produits", s.listProduits).Methods(http.MethodGet)
	r.HandleFunc("/api/produits", s.upsertProduit).Methods(http.MethodPost)
	r.HandleFunc("/api/produits/recherche", s.searchProduits).Methods(http.MethodGet)
	r.HandleFunc("/api/produits/recents", s.recentProduits).Methods(http.MethodGet)
	r.HandleFunc("/api/produits/{id}", s.updateProduit).Methods(http.MethodPut)
	r.HandleFunc("/api/produits/{id}", s.deleteProduit).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusNotFound, "Route non trouvée", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusMethodNotAllowed, "Méthode non autorisée", nil)
	})

	return s.recoverPanics(s.logRequests(s.cors(r)))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{true, "API Facturation opérationnelle", s.clock().UTC().Format(time.RFC3339)})
}

var errMalformedBody = errors.New("malformed JSON body")

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Join(errMalformedBody, err)
	}
	return nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
