package part

import (
	"time"

	"github.com/shopspring/decimal"
)

type Part struct {
	ID        int64
	PartNo    string
	Name      string
	Customer  string
	Active    bool
	CreatedAt time.Time
}

// Operation is one routing step of a part. Seq is unique per part and defines
// the routing order. WorkCenterID is nullable in the schema; a missing
// reference blocks cost aggregation rather than understating the estimate.
type Operation struct {
	ID           int64
	PartID       int64
	Seq          int
	WorkCenterID *int64
	SetupMin     decimal.Decimal
	OpMin        decimal.Decimal
}
