package cart

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"Storefront/internal/catalog"
)

func product(id int, price float64) catalog.Product {
	return catalog.Product{
		ID:       id,
		Title:    "product",
		Price:    price,
		Category: "electronics",
		Image:    "https://example.com/p.jpg",
		Rating:   catalog.Rating{Rate: 4.2, Count: 10},
	}
}

// sumOf totals in integer cents; every test price has at most two decimals.
func sumOf(c Cart) float64 {
	var cents int64
	for _, it := range c.Items {
		cents += int64(math.Round(it.Product.Price*100)) * int64(it.Quantity)
	}
	return float64(cents) / 100
}

func TestCart_AddAccumulatesAndKeepsOrder(t *testing.T) {
	c := Empty()

	c, changed := c.add(product(1, 9.99), 1)
	require.True(t, changed)
	c, _ = c.add(product(2, 5), 1)
	c, _ = c.add(product(1, 9.99), 2)

	require.Len(t, c.Items, 2)
	require.Equal(t, 1, c.Items[0].Product.ID)
	require.Equal(t, 3, c.Items[0].Quantity)
	require.Equal(t, 2, c.Items[1].Product.ID)
	require.Equal(t, 34.97, c.Total)
}

func TestCart_AddNonPositiveIsIgnored(t *testing.T) {
	c, _ := Empty().add(product(1, 2), 2)

	for _, q := range []int{0, -1, -5} {
		next, changed := c.add(product(1, 2), q)
		require.False(t, changed)
		require.Equal(t, c, next)

		next, changed = c.add(product(7, 2), q)
		require.False(t, changed)
		require.Len(t, next.Items, 1)
	}
}

func TestCart_AddSaturatesAtMaxInt(t *testing.T) {
	p := product(1, 9.99)

	c, changed := Empty().add(p, math.MaxInt-1)
	require.True(t, changed)

	c, changed = c.add(p, 1)
	require.True(t, changed)
	require.Equal(t, math.MaxInt, c.Items[0].Quantity)

	next, changed := c.add(p, 2)
	require.False(t, changed, "a saturated item cannot grow")
	require.Equal(t, c, next)
	require.Equal(t, math.MaxInt, next.Items[0].Quantity)
	require.Greater(t, next.Total, 0.0)

	c, _ = c.add(product(2, 1), math.MaxInt)
	require.Equal(t, math.MaxInt, c.Quantity())
}

func TestCart_NormalizeSaturatesMergedQuantities(t *testing.T) {
	stored := Cart{Items: []Item{
		{Product: product(4, 1), Quantity: math.MaxInt},
		{Product: product(4, 1), Quantity: math.MaxInt},
	}}

	c := stored.normalize()
	require.Len(t, c.Items, 1)
	require.Equal(t, math.MaxInt, c.Items[0].Quantity)
	require.Greater(t, c.Total, 0.0)
}

func TestCart_OperationsDoNotMutateReceiver(t *testing.T) {
	c, _ := Empty().add(product(1, 1.5), 2)
	before := c.Clone()

	_, _ = c.add(product(1, 1.5), 1)
	_, _ = c.setQuantity(1, 10)
	_, _ = c.remove(1)

	require.Equal(t, before, c)
}

func TestCart_UpdateQuantityNonPositiveRemoves(t *testing.T) {
	for _, q := range []int{0, -5} {
		c, _ := Empty().add(product(1, 3), 2)
		c, _ = c.add(product(2, 4), 1)

		next, changed := c.setQuantity(1, q)
		require.True(t, changed)
		require.Len(t, next.Items, 1)
		require.Equal(t, 2, next.Items[0].Product.ID)
		require.Equal(t, 4.0, next.Total)

		same, changed := next.setQuantity(99, q)
		require.False(t, changed)
		require.Equal(t, next, same)
	}
}

func TestCart_RemoveMissingIsNoop(t *testing.T) {
	c, _ := Empty().add(product(1, 3), 2)

	next, changed := c.remove(42)
	require.False(t, changed)
	require.Equal(t, c.Items, next.Items)
	require.Equal(t, c.Total, next.Total)
}

func TestCart_Invariants_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prices := []float64{0, 0.1, 9.99, 5, 109.95, 22.3, 695}

	c := Empty()
	for i := 0; i < 2000; i++ {
		id := rng.Intn(len(prices)) + 1
		switch rng.Intn(5) {
		case 0, 1:
			c, _ = c.add(product(id, prices[id-1]), rng.Intn(4))
		case 2:
			c, _ = c.remove(id)
		case 3:
			c, _ = c.setQuantity(id, rng.Intn(6)-2)
		case 4:
			if rng.Intn(20) == 0 {
				c, _ = c.clear()
			}
		}

		seen := map[int]bool{}
		for _, it := range c.Items {
			require.False(t, seen[it.Product.ID], "duplicate product id %d", it.Product.ID)
			seen[it.Product.ID] = true
			require.GreaterOrEqual(t, it.Quantity, 1)
		}
		require.Equal(t, sumOf(c), c.Total)
	}
}

func TestCart_JSONShapeAndRoundTrip(t *testing.T) {
	c, _ := Empty().add(product(1, 9.99), 3)
	c, _ = c.add(product(2, 5), 1)

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Contains(t, raw, "items")
	require.Equal(t, 34.97, raw["total"])

	first := raw["items"].([]any)[0].(map[string]any)
	require.EqualValues(t, 3, first["quantity"])
	prod := first["product"].(map[string]any)
	for _, k := range []string{"id", "title", "price", "description", "category", "image", "rating"} {
		require.Contains(t, prod, k)
	}

	var back Cart
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, c, back)
}

func TestCart_EmptyMarshalsItemsAsArray(t *testing.T) {
	b, err := json.Marshal(Empty())
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[],"total":0}`, string(b))
}

func TestCart_NormalizeRepairsStoredValue(t *testing.T) {
	stored := Cart{
		Items: []Item{
			{Product: product(1, 2), Quantity: 1},
			{Product: product(2, 3), Quantity: 0},
			{Product: product(1, 2), Quantity: 2},
		},
		Total: 12345,
	}

	got := stored.normalize()
	require.Len(t, got.Items, 1)
	require.Equal(t, 3, got.Items[0].Quantity)
	require.Equal(t, 6.0, got.Total)
}

func TestCart_CountAndQuantity(t *testing.T) {
	c, _ := Empty().add(product(1, 1), 2)
	c, _ = c.add(product(2, 1), 3)

	require.Equal(t, 2, c.Count())
	require.Equal(t, 5, c.Quantity())

	it, ok := c.Find(2)
	require.True(t, ok)
	require.Equal(t, 3, it.Quantity)

	_, ok = c.Find(3)
	require.False(t, ok)
}
