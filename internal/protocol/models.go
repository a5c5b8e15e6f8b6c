// Package protocol maintains the catalogue of scan protocols an organisation
// vets against. Approvals name a catalogue entry; the vet form offers the
// active list. Entries are deactivated, never deleted, so past decisions keep
// resolving.
package protocol

import (
	"strings"
	"time"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// DefaultNames is the catalogue a fresh organisation starts with.
var DefaultNames = []string{
	"CT Head (standard)",
	"CT Head (stroke)",
	"CT C-Spine",
	"CT Chest",
	"CT Abdomen/Pelvis",
	"CT KUB",
	"MRI Brain",
	"MRI Spine",
	"XR Chest",
}

// Protocol is one catalogue entry. Names are unique per organisation.
type Protocol struct {
	ID        domain.ProtocolID
	OrgID     domain.OrgID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// New validates and constructs an active catalogue entry.
func New(id domain.ProtocolID, orgID domain.OrgID, name string, now time.Time) (*Protocol, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "protocol name is required")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "protocol name is too long")
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "protocol requires an organisation")
	}
	return &Protocol{
		ID:        id,
		OrgID:     orgID,
		Name:      name,
		Active:    true,
		CreatedAt: now,
	}, nil
}
