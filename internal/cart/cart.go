// Package cart holds the shopping cart value and the store that owns it.
package cart

import (
	"math"

	"github.com/shopspring/decimal"

	"Storefront/internal/catalog"
)

// Item is a full product snapshot plus a quantity. A cart holds at most one
// item per product id.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Cart keeps items in first-add order. Total is derived from the items and
// is recomputed by every operation in this package.
type Cart struct {
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
}

func Empty() Cart {
	return Cart{Items: []Item{}, Total: 0}
}

// Count is the number of distinct products in the cart.
func (c Cart) Count() int { return len(c.Items) }

// Quantity is the number of units across all items.
func (c Cart) Quantity() int {
	n := 0
	for _, it := range c.Items {
		n = addQuantity(n, it.Quantity)
	}
	return n
}

func (c Cart) Find(productID int) (Item, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

func (c Cart) Clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items, Total: c.Total}
}

func (c Cart) index(productID int) int {
	for i, it := range c.Items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

// The operations below never modify the receiver; they return the next
// cart and whether anything changed.

func (c Cart) add(p catalog.Product, quantity int) (Cart, bool) {
	if quantity <= 0 {
		return c, false
	}

	next := c.Clone()
	if i := next.index(p.ID); i >= 0 {
		sum := addQuantity(next.Items[i].Quantity, quantity)
		if sum == next.Items[i].Quantity {
			return c, false
		}
		next.Items[i].Quantity = sum
	} else {
		next.Items = append(next.Items, Item{Product: p, Quantity: quantity})
	}
	return next.withTotal(), true
}

func (c Cart) remove(productID int) (Cart, bool) {
	i := c.index(productID)
	if i < 0 {
		return c, false
	}

	items := make([]Item, 0, len(c.Items)-1)
	items = append(items, c.Items[:i]...)
	items = append(items, c.Items[i+1:]...)
	return Cart{Items: items}.withTotal(), true
}

func (c Cart) setQuantity(productID, quantity int) (Cart, bool) {
	if quantity <= 0 {
		return c.remove(productID)
	}

	i := c.index(productID)
	if i < 0 || c.Items[i].Quantity == quantity {
		return c, false
	}

	next := c.Clone()
	next.Items[i].Quantity = quantity
	return next.withTotal(), true
}

func (c Cart) clear() (Cart, bool) {
	if len(c.Items) == 0 && c.Total == 0 {
		return c, false
	}
	return Empty(), true
}

// normalize repairs a cart read from storage: it merges duplicate products,
// drops non-positive quantities and recomputes the total.
func (c Cart) normalize() Cart {
	out := Empty()
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			continue
		}
		if i := out.index(it.Product.ID); i >= 0 {
			out.Items[i].Quantity = addQuantity(out.Items[i].Quantity, it.Quantity)
			continue
		}
		out.Items = append(out.Items, it)
	}
	return out.withTotal()
}

// addQuantity adds two non-negative quantities, saturating at math.MaxInt
// instead of wrapping.
func addQuantity(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func (c Cart) withTotal() Cart {
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.Total = total(c.Items)
	return c
}

// total sums price*quantity in decimal so that e.g. 9.99*3 is exactly 29.97.
func total(items []Item) float64 {
	sum := decimal.Zero
	for _, it := range items {
		line := decimal.NewFromFloat(it.Product.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		sum = sum.Add(line)
	}
	f, _ := sum.Float64()
	return f
}
