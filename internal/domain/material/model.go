package material

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a material/shape combination priced per kg in weight bands.
type Category struct {
	ID        int64
	Material  string
	Shape     string
	Active    bool
	CreatedAt time.Time
}

// Tier is one weight band of a category. MaxWeightKg nil = open-ended.
type Tier struct {
	ID          int64
	CategoryID  int64
	MinWeightKg decimal.Decimal
	MaxWeightKg *decimal.Decimal
	PricePerKg  decimal.Decimal
}
