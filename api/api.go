// CLAUDE:SUMMARY HTTP API for skuprobe: trigger collections, read products with price history, inspect attempt diagnostics.
// Package api exposes the skuprobe HTTP API.
//
// Routes:
//
//	GET  /healthz
//	POST /api/collect                 {"url": "..."} → collected record
//	GET  /api/products?limit=N
//	GET  /api/products/{goods_id}?include_history=1
//	GET  /api/attempts?limit=N
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skuwatch/skuprobe/store"
)

// CollectFunc runs a full page collection and returns the persisted
// record. Wired to collector.CollectPage in production.
type CollectFunc func(ctx context.Context, pageURL string) (*store.Product, error)

// Service is the HTTP API service.
type Service struct {
	store   *store.Store
	collect CollectFunc
	logger  *slog.Logger
}

// New creates the API service. collect may be nil; POST /api/collect
// then returns 503.
func New(st *store.Store, collect CollectFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, collect: collect, logger: logger}
}

// Router builds the chi router for the service.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/collect", s.handleCollect)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{goods_id}", s.handleGetProduct)
		r.Get("/attempts", s.handleListAttempts)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CollectRequest is the body for POST /api/collect.
type CollectRequest struct {
	URL string `json:"url"`
}

func (s *Service) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collect == nil {
		http.Error(w, "collection not available", http.StatusServiceUnavailable)
		return
	}

	var req CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	rec, err := s.collect(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("api: collect failed", "url", req.URL, "error", err)
		http.Error(w, "collection failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Service) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("api: list products failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []*store.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// ProductResponse is a product with optional price history attached.
type ProductResponse struct {
	*store.Product
	History []*store.PricePoint `json:"history,omitempty"`
}

func (s *Service) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	goodsID := chi.URLParam(r, "goods_id")

	p, err := s.store.GetProduct(r.Context(), goodsID)
	if err != nil {
		s.logger.Error("api: get product failed", "goods_id", goodsID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}

	resp := ProductResponse{Product: p}
	if r.URL.Query().Get("include_history") != "" {
		hist, err := s.store.PriceHistory(r.Context(), goodsID, 0)
		if err != nil {
			s.logger.Error("api: price history failed", "goods_id", goodsID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		resp.History = hist
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.store.RecentAttempts(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("api: list attempts failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []*store.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
