package workcenter

import (
	"time"

	"github.com/promdetal/costing/internal/costing"
)

// WorkCenter is a machine or manual station with an hourly cost rate split
// into amortization, labor, tooling and administrative overhead components.
type WorkCenter struct {
	ID        int64
	Name      string
	Rates     costing.WorkCenterRates
	Active    bool
	Priority  int
	CreatedAt time.Time
}
