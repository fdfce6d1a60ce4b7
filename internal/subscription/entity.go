// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"
)

// Subscription is the local mirror of a provider subscription. Rows are
// never deleted; lifecycle deletion flips the status instead.
type Subscription struct {
	ID                 int64      `db:"id"`
	SubscriptionID     string     `db:"subscription_id"`
	CustomerID         string     `db:"customer_id"`
	Status             string     `db:"status"`
	CurrentPeriodStart *time.Time `db:"current_period_start"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end"`
	CancelAtPeriodEnd  bool       `db:"cancel_at_period_end"`
	PriceID            string     `db:"price_id"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

const StatusCanceled = "canceled"
