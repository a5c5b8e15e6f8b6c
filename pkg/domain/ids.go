// Package domain defines the typed identifiers shared across the vetting hub.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-entity assignment (an OrgID can never be passed where a UserID is
// expected). CaseID is the one exception: it is the human-readable,
// date-prefixed identifier printed on referral paperwork.
package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	dErrors "vettinghub/pkg/domainerrors"
)

type (
	// OrgID identifies an organisation (tenant boundary).
	OrgID uuid.UUID
	// UserID identifies a platform user account.
	UserID uuid.UUID
	// MembershipID identifies an (org, user) membership row.
	MembershipID uuid.UUID
	// InstitutionID identifies a referring site within an organisation.
	InstitutionID uuid.UUID
	// ProtocolID identifies a catalogue protocol within an organisation.
	ProtocolID uuid.UUID
	// EventID identifies a single immutable case event.
	EventID uuid.UUID
)

func (id OrgID) String() string         { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id MembershipID) String() string  { return uuid.UUID(id).String() }
func (id InstitutionID) String() string { return uuid.UUID(id).String() }
func (id ProtocolID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id InstitutionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseOrgID parses and validates an organisation ID.
func ParseOrgID(raw string) (OrgID, error) {
	parsed, err := parseUUID(raw)
	return OrgID(parsed), err
}

// ParseUserID parses and validates a user ID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	return UserID(parsed), err
}

// ParseInstitutionID parses and validates an institution ID.
func ParseInstitutionID(raw string) (InstitutionID, error) {
	parsed, err := parseUUID(raw)
	return InstitutionID(parsed), err
}

// CaseID is the human-readable case identifier, format YYYYMMDD-XXXX where the
// prefix is the UTC submission date and the suffix is drawn from A-Z0-9. The
// store enforces uniqueness; callers retry generation on collision.
type CaseID string

const caseIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCaseID generates a case identifier for the given submission time.
func NewCaseID(now time.Time) CaseID {
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(caseIDCharset))))
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; nothing sensible to do but stop.
			panic(fmt.Sprintf("case id generation: %v", err))
		}
		suffix[i] = caseIDCharset[n.Int64()]
	}
	return CaseID(now.UTC().Format("20060102") + "-" + string(suffix))
}

func (id CaseID) String() string { return string(id) }

// ParseCaseID validates the YYYYMMDD-XXXX shape without checking existence.
func ParseCaseID(raw string) (CaseID, error) {
	if len(raw) != 13 || raw[8] != '-' {
		return "", dErrors.New(dErrors.CodeValidation, "case id must be YYYYMMDD-XXXX")
	}
	if _, err := time.Parse("20060102", raw[:8]); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "case id date prefix is invalid")
	}
	for _, c := range raw[9:] {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", dErrors.New(dErrors.CodeValidation, "case id suffix must be A-Z0-9")
		}
	}
	return CaseID(raw), nil
}
