package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/requestcontext"
)

// Store is the persistence the recorder writes through. Satisfied by both
// implementations in the store subpackage.
type Store interface {
	Append(ctx context.Context, e *Event) error
	EventsForCase(ctx context.Context, caseID domain.CaseID) ([]*Event, error)
	Export(ctx context.Context, orgID *domain.OrgID, from, to time.Time) ([]*Event, error)
}

// Payload carries the decision fields a vetted or reopened event records.
type Payload struct {
	Decision string
	Protocol string
	Comment  string
}

// Recorder writes and reads the trail. Record is called inside the mutating
// transaction; reads run outside.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one event for a mutation made under scope. The actor, role
// and cross-tenant marker come from the scope: a write under an unscoped
// token is always marked cross-tenant, which is how superuser interventions
// stay visible in the trail.
func (r *Recorder) Record(ctx context.Context, scope tenancy.Scope, eventType EventType, caseID domain.CaseID, orgID domain.OrgID, payload Payload) (*Event, error) {
	e := &Event{
		ID:          domain.EventID(uuid.New()),
		CaseID:      caseID,
		OrgID:       orgID,
		Type:        eventType,
		ActorID:     scope.Actor(),
		ActorRole:   scope.Role(),
		CrossTenant: scope.Unscoped(),
		OccurredAt:  requestcontext.Now(ctx),
		Decision:    payload.Decision,
		Protocol:    payload.Protocol,
		Comment:     payload.Comment,
	}
	if err := r.store.Append(ctx, e); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return e, nil
}

// EventsForCase returns the case's trail oldest first.
func (r *Recorder) EventsForCase(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, caseID domain.CaseID) ([]*Event, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	events, err := r.store.EventsForCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case trail")
	}
	return events, nil
}

// Export returns flat event rows for the window [from, to). Organisation
// scopes export their own tenant; only an unscoped token may span all of
// them. Requires admin-level access.
func (r *Recorder) Export(ctx context.Context, scope tenancy.Scope, from, to time.Time) ([]*Event, error) {
	if !scope.Role().CanManageCases() {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "audit export requires an organisation admin")
	}
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "export window is empty")
	}
	var orgFilter *domain.OrgID
	if orgID, ok := scope.OrgID(); ok {
		orgFilter = &orgID
	}
	events, err := r.store.Export(ctx, orgFilter, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export audit events")
	}
	r.logger.Info("audit export", "rows", len(events), "from", from, "to", to)
	return events, nil
}
