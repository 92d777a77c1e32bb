package catalog

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// Rating is informational; rate is on a 0-5 scale.
type Rating struct {
	Rate  float64 `json:"rate" validate:"gte=0"`
	Count int     `json:"count" validate:"gte=0"`
}

type Product struct {
	ID          int     `json:"id" validate:"gt=0"`
	Title       string  `json:"title"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func productValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the shape constraints a catalog payload must satisfy.
func (p Product) Validate() error {
	return productValidator().Struct(p)
}
