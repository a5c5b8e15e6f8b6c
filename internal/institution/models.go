// Package institution manages the referring sites cases arrive from. Each
// institution carries the turnaround window its referrals are vetted against.
package institution

import (
	"strings"
	"time"

	"vettinghub/internal/sla"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// Institution is a referring site within one organisation. Names are unique
// per organisation, not platform-wide.
type Institution struct {
	ID        domain.InstitutionID
	OrgID     domain.OrgID
	Name      string
	SLAHours  int
	CreatedAt time.Time
}

// New validates and constructs an institution. A zero slaHours takes the
// platform default; otherwise the window must sit in [1, 999] hours.
func New(id domain.InstitutionID, orgID domain.OrgID, name string, slaHours int, now time.Time) (*Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "institution name is required")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "institution name is too long")
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "institution requires an organisation")
	}
	if slaHours == 0 {
		slaHours = sla.DefaultHours
	}
	if slaHours < 1 || slaHours > 999 {
		return nil, dErrors.New(dErrors.CodeValidation, "sla hours must be between 1 and 999")
	}
	return &Institution{
		ID:        id,
		OrgID:     orgID,
		Name:      name,
		SLAHours:  slaHours,
		CreatedAt: now,
	}, nil
}

// SetSLA updates the turnaround window.
func (i *Institution) SetSLA(hours int) error {
	if hours < 1 || hours > 999 {
		return dErrors.New(dErrors.CodeValidation, "sla hours must be between 1 and 999")
	}
	i.SLAHours = hours
	return nil
}
