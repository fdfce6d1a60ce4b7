// AngelaMos | 2026
// entity.go

package organization

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
	StatusInactive = "inactive"
)

type Organization struct {
	ID                string     `db:"id"`
	Name              string     `db:"name"`
	Slug              string     `db:"slug"`
	SlugHistory       StringList `db:"slug_history"`
	Status            string     `db:"status"`
	OwnerID           string     `db:"owner_id"`
	PlanID            string     `db:"plan_id"`
	PlanName          string     `db:"plan_name"`
	SubscriptionID    string     `db:"subscription_id"`
	CustomerID        string     `db:"stripe_customer_id"`
	CheckoutSessionID string     `db:"checkout_session_id"`
	PlanStart         *time.Time `db:"plan_start"`
	PlanEnd           *time.Time `db:"plan_end"`
	TrialStart        *time.Time `db:"trial_start"`
	TrialEnd          *time.Time `db:"trial_end"`
	AddOns            AddOnList  `db:"addons"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	DeletedAt         *time.Time `db:"deleted_at"`
}

func (o *Organization) IsDeleted() bool {
	return o.DeletedAt != nil
}

// AddOn is one purchased add-on, keyed by its provider subscription id.
type AddOn struct {
	PlanID         string     `json:"plan_id"`
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	PurchasedAt    time.Time  `json:"purchased_at"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
}

// AddOnList is stored as a jsonb column.
type AddOnList []AddOn

func (a AddOnList) Value() (driver.Value, error) {
	if a == nil {
		a = AddOnList{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *AddOnList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = AddOnList{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("scan addons: unsupported type %T", src)
	}
}

// Find returns the add-on with the given provider subscription id.
func (a AddOnList) Find(subscriptionID string) (AddOn, bool) {
	for _, addon := range a {
		if addon.SubscriptionID == subscriptionID {
			return addon, true
		}
	}
	return AddOn{}, false
}

// StringList is stored as a jsonb column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
}
