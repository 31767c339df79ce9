// Package server exposes the storefront cart over HTTP for thin UI shells.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"goflare.io/storefront"
	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/models"
	"goflare.io/storefront/pricing"
)

type Server struct {
	svc      storefront.Service
	currency string
	now      func() time.Time
	logger   *zap.Logger
}

type Options struct {
	CurrencySymbol string
	Gatherer       prometheus.Gatherer
	Now            func() time.Time
}

func New(svc storefront.Service, opts Options, logger *zap.Logger) http.Handler {
	s := &Server{
		svc:      svc,
		currency: opts.CurrencySymbol,
		now:      opts.Now,
		logger:   logger,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleGetCart)
		r.Delete("/", s.handleClearCart)
		r.Get("/total", s.handleGetTotal)
		r.Route("/items/{id}", func(r chi.Router) {
			r.Put("/", s.handleSetQuantity)
			r.Delete("/", s.handleRemoveItem)
			r.Post("/increment", s.handleIncrement)
			r.Post("/decrement", s.handleDecrement)
		})
	})
	r.Route("/products/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetProduct)
		r.Post("/wishlist", s.handleToggleWishlist)
	})
	r.Get("/checkout/availability", s.handleCheckoutAvailability)

	return r
}

type totalResponse struct {
	Total     string `json:"total"`
	Formatted string `json:"formatted"`
	ItemCount int64  `json:"item_count"`
}

type setQuantityRequest struct {
	Count *int64 `json:"count"`
}

type wishlistResponse struct {
	InWishlist bool `json:"in_wishlist"`
}

type checkoutResponse struct {
	Allowed bool `json:"allowed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.CartView(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notModified(w, r, view.Version) {
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetTotal(w http.ResponseWriter, r *http.Request) {
	ledger, version, err := s.svc.ReadLedgerVersion(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notModified(w, r, version) {
		return
	}
	total := cart.Total(ledger)
	s.writeJSON(w, http.StatusOK, totalResponse{
		Total:     total.String(),
		Formatted: pricing.Format(total, s.currency),
		ItemCount: cart.ItemCount(ledger),
	})
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.svc.Increment)
}

func (s *Server) handleDecrement(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.svc.Decrement)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.svc.RemoveItem)
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if req.Count == nil || *req.Count < 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "count must be a non-negative integer"})
		return
	}

	if _, err := s.svc.SetQuantity(r.Context(), id, *req.Count); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetCart(w, r)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearCart(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	card, err := s.svc.ProductCard(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleToggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	in, err := s.svc.ToggleWishlist(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wishlistResponse{InWishlist: in})
}

func (s *Server) handleCheckoutAvailability(w http.ResponseWriter, r *http.Request) {
	allowed, err := s.svc.CanCheckout(r.Context(), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, checkoutResponse{Allowed: allowed})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id models.ProductID) (models.CartLedger, error)) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	if _, err := fn(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetCart(w, r)
}

// notModified sets the ETag of a cart read and answers 304 when the client
// already holds that version. Only safe reads are revalidated.
func (s *Server) notModified(w http.ResponseWriter, r *http.Request, version uint64) bool {
	etag := `"` + strconv.FormatUint(version, 10) + `"`
	w.Header().Set("ETag", etag)
	if r.Method != http.MethodGet || r.Header.Get("If-None-Match") != etag {
		return false
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

func (s *Server) productID(w http.ResponseWriter, r *http.Request) (models.ProductID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return 0, false
	}
	return models.ProductID(id), true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
	case cart.IsStorageFailure(err):
		s.logger.Error("Cart storage unavailable", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "cart storage unavailable"})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
