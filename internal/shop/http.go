// Package shop exposes the catalog and the cart to storefront UIs as a JSON
// API. Cart changes are also pushed over a websocket.
package shop

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/storage"
	"Storefront/pkg/kit"
)

// Catalog is the read side of the remote product catalog.
type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int) (catalog.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error)
}

type Server struct {
	Catalog Catalog
	Cart    *cart.Store
	Storage storage.Storage
	Log     *zap.Logger
	// Limiter throttles catalog routes per client IP; nil disables it.
	Limiter *kit.IPRateLimiter
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz)

	r.Group(func(pr chi.Router) {
		if s.Limiter != nil {
			pr.Use(s.Limiter.Middleware)
		}
		pr.Get("/products", s.listProducts)
		pr.Get("/products/{id}", s.getProduct)
		pr.Get("/products/category/{category}", s.listByCategory)
	})

	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.getCart)
		cr.Get("/ws", s.cartFeed)

		cr.Group(func(mr chi.Router) {
			mr.Use(s.requireReady)
			mr.Post("/items", s.addItem)
			mr.Patch("/items/{id}", s.updateItem)
			mr.Delete("/items/{id}", s.removeItem)
			mr.Post("/items/{id}/increment", s.incrementItem)
			mr.Post("/items/{id}/decrement", s.decrementItem)
			mr.Delete("/", s.clearCart)
			mr.Post("/checkout", s.checkout)
		})
	})

	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.Cart.State() != cart.StateReady {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart not ready", nil)
		return
	}

	if s.Storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Storage.Ping(ctx); err != nil {
			s.logger().Warn("readyz failed: storage", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "storage not ready", nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// requireReady answers 503 until the persisted cart has been loaded.
func (s *Server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Cart.State() != cart.StateReady {
			w.Header().Set("Retry-After", "1")
			kit.WriteError(w, r, http.StatusServiceUnavailable, "cart not ready", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.ListProducts(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := s.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) listByCategory(w http.ResponseWriter, r *http.Request) {
	category, err := kit.PathParam(r, "category")
	if err != nil || category == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "bad category", nil)
		return
	}

	products, err := s.Catalog.ListProductsByCategory(r.Context(), category)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	retry := map[string]any{"retryable": true}

	switch {
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "catalog timeout", retry)
	case errors.Is(err, catalog.ErrDecode):
		s.logger().Warn("catalog decode error", zap.Error(err))
		kit.WriteError(w, r, http.StatusBadGateway, "catalog returned malformed data", retry)
	case errors.Is(err, catalog.ErrNetwork):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog unavailable", retry)
	default:
		s.logger().Error("catalog call failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
