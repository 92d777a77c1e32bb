package shop

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/pkg/kit"
)

type cartResponse struct {
	cart.Cart
	Count    int `json:"count"`
	Quantity int `json:"quantity"`
}

func newCartResponse(c cart.Cart) cartResponse {
	return cartResponse{Cart: c, Count: c.Count(), Quantity: c.Quantity()}
}

type addItemReq struct {
	ProductID int  `json:"product_id" validate:"gt=0"`
	Quantity  *int `json:"quantity" validate:"omitempty,gt=0"`
}

type updateItemReq struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// Receipt is what the checkout stub hands back. Nothing is charged or
// stored.
type Receipt struct {
	ID        string      `json:"id"`
	Items     []cart.Item `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.Cart()))
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid item", map[string]any{"cause": err.Error()})
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	p, err := s.Catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.AddToCart(p, qty)))
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req updateItemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "quantity required", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.UpdateQuantity(id, *req.Quantity)))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.RemoveFromCart(id)))
}

func (s *Server) incrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.Increment(id)))
}

func (s *Server) decrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.Decrement(id)))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, newCartResponse(s.Cart.ClearCart()))
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	c := s.Cart.Cart()
	if len(c.Items) == 0 {
		kit.WriteError(w, r, http.StatusConflict, "cart is empty", nil)
		return
	}

	rc := Receipt{
		ID:        "chk_" + uuid.NewString(),
		Items:     c.Items,
		Total:     c.Total,
		CreatedAt: time.Now().UTC(),
	}
	s.logger().Info("checkout stub", zap.String("receipt_id", rc.ID), zap.Int("items", len(rc.Items)), zap.Float64("total", rc.Total))

	kit.WriteJSON(w, http.StatusOK, rc)
}
