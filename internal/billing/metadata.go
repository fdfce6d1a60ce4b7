// AngelaMos | 2026
// metadata.go

package billing

import (
	"fmt"
)

// Checkout session metadata carries exactly one of two payload shapes:
// a new-signup payload (owner + organization details, password already
// hashed) or an existing-organization reference (org id + purchase kind).
// The webhook side branches on which shape is populated.
const (
	metaFirstName    = "first_name"
	metaLastName     = "last_name"
	metaEmail        = "email"
	metaPasswordHash = "password_hash"
	metaOrgName      = "org_name"
	metaOrgSlug      = "org_slug"
	metaPlanID       = "plan_id"
	metaPlanName     = "plan_name"
	metaOrgID        = "org_id"
	metaPurchase     = "purchase"
)

const (
	PurchaseAddOn = "addon"
	PurchasePlan  = "plan"
)

// SignupMetadata is the new-signup shape.
type SignupMetadata struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	OrgName      string
	OrgSlug      string
	PlanID       string
	PlanName     string
}

func (m SignupMetadata) ToMap() map[string]string {
	return map[string]string{
		metaFirstName:    m.FirstName,
		metaLastName:     m.LastName,
		metaEmail:        m.Email,
		metaPasswordHash: m.PasswordHash,
		metaOrgName:      m.OrgName,
		metaOrgSlug:      m.OrgSlug,
		metaPlanID:       m.PlanID,
		metaPlanName:     m.PlanName,
	}
}

// TenantMetadata is the existing-organization shape.
type TenantMetadata struct {
	OrgID    string
	Purchase string
	PlanID   string
	PlanName string
}

func (m TenantMetadata) ToMap() map[string]string {
	return map[string]string{
		metaOrgID:    m.OrgID,
		metaPurchase: m.Purchase,
		metaPlanID:   m.PlanID,
		metaPlanName: m.PlanName,
	}
}

// CheckoutMetadata is the decoded union; exactly one of Signup or Tenant
// is set.
type CheckoutMetadata struct {
	Signup *SignupMetadata
	Tenant *TenantMetadata
}

func (m CheckoutMetadata) IsSignup() bool {
	return m.Signup != nil
}

// ParseCheckoutMetadata decodes a session's metadata map. The presence of
// org_id selects the existing-tenant shape; otherwise the full signup
// payload is required.
func ParseCheckoutMetadata(meta map[string]string) (CheckoutMetadata, error) {
	if orgID := meta[metaOrgID]; orgID != "" {
		purchase := meta[metaPurchase]
		if purchase != PurchaseAddOn && purchase != PurchasePlan {
			return CheckoutMetadata{}, fmt.Errorf(
				"parse checkout metadata: invalid purchase kind %q", purchase,
			)
		}
		if meta[metaPlanID] == "" {
			return CheckoutMetadata{}, fmt.Errorf(
				"parse checkout metadata: missing plan_id",
			)
		}

		return CheckoutMetadata{
			Tenant: &TenantMetadata{
				OrgID:    orgID,
				Purchase: purchase,
				PlanID:   meta[metaPlanID],
				PlanName: meta[metaPlanName],
			},
		}, nil
	}

	signup := SignupMetadata{
		FirstName:    meta[metaFirstName],
		LastName:     meta[metaLastName],
		Email:        meta[metaEmail],
		PasswordHash: meta[metaPasswordHash],
		OrgName:      meta[metaOrgName],
		OrgSlug:      meta[metaOrgSlug],
		PlanID:       meta[metaPlanID],
		PlanName:     meta[metaPlanName],
	}

	for key, value := range map[string]string{
		metaEmail:        signup.Email,
		metaPasswordHash: signup.PasswordHash,
		metaOrgName:      signup.OrgName,
		metaOrgSlug:      signup.OrgSlug,
		metaPlanID:       signup.PlanID,
	} {
		if value == "" {
			return CheckoutMetadata{}, fmt.Errorf(
				"parse checkout metadata: missing %s", key,
			)
		}
	}

	return CheckoutMetadata{Signup: &signup}, nil
}
