package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/caseflow"
	"vettinghub/internal/platform/db"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists cases on either relational backend.
type SQL struct {
	handle *db.Handle
}

// NewSQL constructs the SQL backend over an open handle.
func NewSQL(handle *db.Handle) *SQL {
	return &SQL{handle: handle}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.handle.DB
}

const caseColumns = `id, org_id, created_at, patient_first_name, patient_surname,
	patient_referral_id, institution_id, study_description, admin_notes,
	reopen_reason, reviewer_id, uploaded_filename, stored_filepath, status,
	protocol, decision, decision_comment, vetted_at`

func (s *SQL) Insert(ctx context.Context, c *caseflow.Case) error {
	query := s.handle.Rebind(`
		INSERT INTO cases (` + caseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query, insertArgs(c)...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func insertArgs(c *caseflow.Case) []any {
	var reviewer any
	if c.ReviewerID != nil {
		reviewer = c.ReviewerID.String()
	}
	var vetted any
	if c.VettedAt != nil {
		vetted = c.VettedAt.UTC().Format(db.TimeFormat)
	}
	return []any{
		string(c.ID), c.OrgID.String(), c.CreatedAt.UTC().Format(db.TimeFormat),
		c.Patient.FirstName, c.Patient.Surname, c.Patient.ReferralID,
		c.InstitutionID.String(), c.StudyDescription, c.AdminNotes,
		c.ReopenReason, reviewer, c.Attachment.UploadedFilename,
		c.Attachment.StoredFilepath, string(c.Status), c.Protocol,
		string(c.Decision), c.DecisionComment, vetted,
	}
}

func (s *SQL) FindByID(ctx context.Context, orgFilter *domain.OrgID, id domain.CaseID) (*caseflow.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`
	args := []any{string(id)}
	if orgFilter != nil {
		query += ` AND org_id = ?`
		args = append(args, orgFilter.String())
	}
	c, err := scanCase(s.q(ctx).QueryRowContext(ctx, s.handle.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

// UpdateExpecting conditions the write on the stored status. The status
// predicate and the write are one statement, so two racing transitions cannot
// both see the old status and both commit: the second UPDATE matches zero
// rows and surfaces a conflict.
func (s *SQL) UpdateExpecting(ctx context.Context, c *caseflow.Case, expect ...caseflow.Status) error {
	query := `
		UPDATE cases SET
			patient_first_name = ?, patient_surname = ?, patient_referral_id = ?,
			institution_id = ?, study_description = ?, admin_notes = ?,
			reopen_reason = ?, reviewer_id = ?, status = ?, protocol = ?,
			decision = ?, decision_comment = ?, vetted_at = ?
		WHERE id = ?`
	var reviewer any
	if c.ReviewerID != nil {
		reviewer = c.ReviewerID.String()
	}
	var vetted any
	if c.VettedAt != nil {
		vetted = c.VettedAt.UTC().Format(db.TimeFormat)
	}
	args := []any{
		c.Patient.FirstName, c.Patient.Surname, c.Patient.ReferralID,
		c.InstitutionID.String(), c.StudyDescription, c.AdminNotes,
		c.ReopenReason, reviewer, string(c.Status), c.Protocol,
		string(c.Decision), c.DecisionComment, vetted, string(c.ID),
	}
	if len(expect) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(expect)), ", ")
		query += ` AND status IN (` + placeholders + `)`
		for _, status := range expect {
			args = append(args, string(status))
		}
	}

	res, err := s.q(ctx).ExecContext(ctx, s.handle.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows is either a vanished case or a lost status race.
	var count int
	existsQuery := s.handle.Rebind(`SELECT COUNT(*) FROM cases WHERE id = ?`)
	if err := s.q(ctx).QueryRowContext(ctx, existsQuery, string(c.ID)).Scan(&count); err != nil {
		return fmt.Errorf("check case existence: %w", err)
	}
	if count == 0 {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *SQL) List(ctx context.Context, orgFilter *domain.OrgID, f Filter) ([]*caseflow.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE 1 = 1`
	var args []any
	if orgFilter != nil {
		query += ` AND org_id = ?`
		args = append(args, orgFilter.String())
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*f.Status))
	}
	if f.InstitutionID != nil {
		query += ` AND institution_id = ?`
		args = append(args, f.InstitutionID.String())
	}
	if f.ReviewerID != nil {
		query += ` AND reviewer_id = ?`
		args = append(args, f.ReviewerID.String())
	}
	if q := strings.TrimSpace(f.PatientQuery); q != "" {
		query += ` AND (LOWER(patient_first_name) LIKE ? OR LOWER(patient_surname) LIKE ? OR LOWER(patient_referral_id) LIKE ?)`
		needle := "%" + strings.ToLower(q) + "%"
		args = append(args, needle, needle, needle)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q(ctx).QueryContext(ctx, s.handle.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []*caseflow.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQL) CountByStatus(ctx context.Context, orgFilter *domain.OrgID) (map[caseflow.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM cases`
	var args []any
	if orgFilter != nil {
		query += ` WHERE org_id = ?`
		args = append(args, orgFilter.String())
	}
	query += ` GROUP BY status`

	rows, err := s.q(ctx).QueryContext(ctx, s.handle.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	defer rows.Close()

	counts := make(map[caseflow.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[caseflow.Status(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*caseflow.Case, error) {
	var (
		rawID, rawOrg, created, firstName, surname, referralID string
		rawInst, study, notes, reopenReason                    string
		uploadedName, storedPath, status                       string
		protocol, decision, comment                            string
		reviewer, vetted                                       sql.NullString
	)
	if err := row.Scan(&rawID, &rawOrg, &created, &firstName, &surname,
		&referralID, &rawInst, &study, &notes, &reopenReason, &reviewer,
		&uploadedName, &storedPath, &status, &protocol, &decision, &comment,
		&vetted); err != nil {
		return nil, err
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return nil, fmt.Errorf("stored case org id %q: %w", rawOrg, err)
	}
	instID, err := uuid.Parse(rawInst)
	if err != nil {
		return nil, fmt.Errorf("stored case institution id %q: %w", rawInst, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", created, err)
	}
	c := &caseflow.Case{
		ID:               domain.CaseID(rawID),
		OrgID:            domain.OrgID(orgID),
		Patient:          caseflow.Patient{FirstName: firstName, Surname: surname, ReferralID: referralID},
		InstitutionID:    domain.InstitutionID(instID),
		StudyDescription: study,
		AdminNotes:       notes,
		ReopenReason:     reopenReason,
		Attachment:       caseflow.Attachment{UploadedFilename: uploadedName, StoredFilepath: storedPath},
		Status:           caseflow.Status(status),
		Protocol:         protocol,
		Decision:         caseflow.Decision(decision),
		DecisionComment:  comment,
		CreatedAt:        createdAt,
	}
	if reviewer.Valid {
		reviewerID, err := uuid.Parse(reviewer.String)
		if err != nil {
			return nil, fmt.Errorf("stored case reviewer id %q: %w", reviewer.String, err)
		}
		id := domain.UserID(reviewerID)
		c.ReviewerID = &id
	}
	if vetted.Valid {
		t, err := time.Parse(time.RFC3339Nano, vetted.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q: %w", vetted.String, err)
		}
		c.VettedAt = &t
	}
	return c, nil
}
