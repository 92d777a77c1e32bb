package catalog

import "context"

// Store backs the local catalog server.
type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	Get(ctx context.Context, id int) (Product, bool, error)
}

func NewStore() Store {
	return NewMemStore(FixtureProducts()...)
}

// FixtureProducts is a small catalog shaped like the public fake store API.
func FixtureProducts() []Product {
	return []Product{
		{
			ID:          1,
			Title:       "Fjallraven - Foldsack No. 1 Backpack, Fits 15 Laptops",
			Price:       109.95,
			Description: "Your perfect pack for everyday use and walks in the forest.",
			Category:    "men's clothing",
			Image:       "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg",
			Rating:      Rating{Rate: 3.9, Count: 120},
		},
		{
			ID:          2,
			Title:       "Mens Casual Premium Slim Fit T-Shirts",
			Price:       22.3,
			Description: "Slim-fitting style, contrast raglan long sleeve.",
			Category:    "men's clothing",
			Image:       "https://fakestoreapi.com/img/71-3HjGNDUL._AC_SY879._SX._UX._SY._UY_.jpg",
			Rating:      Rating{Rate: 4.1, Count: 259},
		},
		{
			ID:          5,
			Title:       "John Hardy Women's Legends Naga Gold & Silver Dragon Station Chain Bracelet",
			Price:       695,
			Description: "From our Legends Collection, the Naga was inspired by the mythical water dragon.",
			Category:    "jewelery",
			Image:       "https://fakestoreapi.com/img/71pWzhdJNwL._AC_UL640_QL65_ML3_.jpg",
			Rating:      Rating{Rate: 4.6, Count: 400},
		},
		{
			ID:          9,
			Title:       "WD 2TB Elements Portable External Hard Drive - USB 3.0",
			Price:       64,
			Description: "USB 3.0 and USB 2.0 compatibility, fast data transfers.",
			Category:    "electronics",
			Image:       "https://fakestoreapi.com/img/61IBBVJvSDL._AC_SY879_.jpg",
			Rating:      Rating{Rate: 3.3, Count: 203},
		},
		{
			ID:          18,
			Title:       "MBJ Women's Solid Short Sleeve Boat Neck V",
			Price:       9.85,
			Description: "95% rayon, 5% spandex, made in USA or imported.",
			Category:    "women's clothing",
			Image:       "https://fakestoreapi.com/img/71z3kpMAYsL._AC_UY879_.jpg",
			Rating:      Rating{Rate: 4.7, Count: 130},
		},
	}
}
