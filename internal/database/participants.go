package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
)

// AddParticipantTx inserts one participant row. Used both by the
// dialog creation path (inside the creating transaction) and by the
// standalone add-participant/join endpoints (their own transaction).
func (db *DB) AddParticipantTx(tx *sql.Tx, ctx context.Context, p models.Participant) error {
	query := `
		INSERT INTO dialog_participants
			(dialog_id, user_id, display_name, company, email, phone, joined_at, joined_as,
			 notifications_enabled, last_read_message_id, unread_count, is_archived, is_pinned)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),$7,true,NULL,0,false,false)
		ON CONFLICT (dialog_id, user_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query, p.DialogID, p.UserID, p.DisplayName,
		StringToNullString(p.Company), StringToNullString(p.Email), StringToNullString(p.Phone), p.JoinedAs)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrConflict, "user is already a participant")
	}
	return nil
}

func (db *DB) GetParticipant(ctx context.Context, dialogID, userID string) (*models.Participant, error) {
	query := `
		SELECT dialog_id, user_id, display_name, company, email, phone, joined_at, joined_as,
		       notifications_enabled, last_read_message_id, unread_count, is_archived, is_pinned
		FROM dialog_participants WHERE dialog_id = $1 AND user_id = $2
	`
	return scanParticipant(db.QueryRowContext(ctx, query, dialogID, userID))
}

func scanParticipant(row *sql.Row) (*models.Participant, error) {
	var p models.Participant
	var company, email, phone, lastRead sql.NullString
	err := row.Scan(&p.DialogID, &p.UserID, &p.DisplayName, &company, &email, &phone,
		&p.JoinedAt, &p.JoinedAs, &p.NotificationsEnabled, &lastRead, &p.UnreadCount, &p.IsArchived, &p.IsPinned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrResourceNotFound, "participant not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	p.Company = NullStringToString(company)
	p.Email = NullStringToString(email)
	p.Phone = NullStringToString(phone)
	p.LastReadMessageID = NullStringToString(lastRead)
	return &p, nil
}

func (db *DB) RemoveParticipant(ctx context.Context, dialogID, userID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM dialog_participants WHERE dialog_id = $1 AND user_id = $2`, dialogID, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrResourceNotFound, "user is not a participant")
	}
	return nil
}

func (db *DB) ListParticipants(ctx context.Context, dialogID string) ([]models.Participant, error) {
	query := `
		SELECT dialog_id, user_id, display_name, company, email, phone, joined_at, joined_as,
		       notifications_enabled, last_read_message_id, unread_count, is_archived, is_pinned
		FROM dialog_participants WHERE dialog_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := db.QueryContext(ctx, query, dialogID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		var company, email, phone, lastRead sql.NullString
		if err := rows.Scan(&p.DialogID, &p.UserID, &p.DisplayName, &company, &email, &phone,
			&p.JoinedAt, &p.JoinedAs, &p.NotificationsEnabled, &lastRead, &p.UnreadCount, &p.IsArchived, &p.IsPinned); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		p.Company = NullStringToString(company)
		p.Email = NullStringToString(email)
		p.Phone = NullStringToString(phone)
		p.LastReadMessageID = NullStringToString(lastRead)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) ListParticipantUserIDs(ctx context.Context, dialogID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id FROM dialog_participants WHERE dialog_id = $1`, dialogID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (db *DB) CountParticipants(ctx context.Context, dialogID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dialog_participants WHERE dialog_id = $1`, dialogID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return n, nil
}

// SetParticipantFlag toggles one of is_archived/is_pinned/notifications_enabled.
func (db *DB) SetParticipantFlag(ctx context.Context, dialogID, userID, column string, value bool) error {
	if column != "is_archived" && column != "is_pinned" && column != "notifications_enabled" {
		return errors.New(errors.ErrInternalServer, "invalid participant flag column")
	}
	query := `UPDATE dialog_participants SET ` + column + ` = $3 WHERE dialog_id = $1 AND user_id = $2`
	res, err := db.ExecContext(ctx, query, dialogID, userID, value)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrResourceNotFound, "participant not found")
	}
	return nil
}

// IncrementUnreadForOthersTx bumps unread_count atomically for every
// participant of dialogID except senderID, and clears is_archived so
// the dialog resurfaces for them, all in one statement per the
// "atomic SQL increment, never read-modify-write" discipline.
func (db *DB) IncrementUnreadForOthersTx(tx *sql.Tx, ctx context.Context, dialogID, senderID string) error {
	query := `
		UPDATE dialog_participants
		SET unread_count = unread_count + 1, is_archived = false
		WHERE dialog_id = $1 AND user_id <> $2
	`
	_, err := tx.ExecContext(ctx, query, dialogID, senderID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// SetSenderCursorTx sets the sender's own read cursor to the new
// message and zeroes their unread count, in the same transaction as
// the insert.
func (db *DB) SetSenderCursorTx(tx *sql.Tx, ctx context.Context, dialogID, senderID, messageID string) error {
	query := `
		UPDATE dialog_participants
		SET last_read_message_id = $3, unread_count = 0
		WHERE dialog_id = $1 AND user_id = $2
	`
	_, err := tx.ExecContext(ctx, query, dialogID, senderID, messageID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// AdvanceReadCursor sets last_read_message_id to the greater of the
// current value and newID (lexicographic comparison matches id
// ordering) and zeroes unread_count. Idempotent: advancing to an
// already-passed id is a no-op on the cursor.
func (db *DB) AdvanceReadCursor(ctx context.Context, dialogID, userID, newID string) error {
	query := `
		UPDATE dialog_participants
		SET last_read_message_id = GREATEST(COALESCE(last_read_message_id, ''), $3),
		    unread_count = 0
		WHERE dialog_id = $1 AND user_id = $2
	`
	res, err := db.ExecContext(ctx, query, dialogID, userID, newID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrResourceNotFound, "participant not found")
	}
	return nil
}

// ParticipatingDialogRow is a dialog joined with the caller's
// per-participant state, the row shape ListParticipatingDialogs scans.
type ParticipatingDialogRow struct {
	models.Dialog
	UnreadCount          int
	IsPinned             bool
	IsArchived           bool
	NotificationsEnabled bool
	ParticipantsCount    int
	LastMessageAt        sql.NullTime
}

// ListParticipatingDialogs returns the dialogs userID participates
// in, filtered by the tri-state archived filter and an optional title
// search, tie-broken pinned-first then by last-message time desc then
// creation desc.
func (db *DB) ListParticipatingDialogs(ctx context.Context, userID string, archived models.ArchivedFilter, search string, limit int) ([]ParticipatingDialogRow, error) {
	archivedClause := ""
	switch archived {
	case models.ArchivedOnly:
		archivedClause = "AND p.is_archived = true"
	case models.ArchivedExclude:
		archivedClause = "AND p.is_archived = false"
	}

	searchClause := ""
	args := []interface{}{userID}
	if search != "" {
		searchClause = "AND d.title ILIKE $2"
		args = append(args, "%"+escapeLike(search)+"%")
	}
	args = append(args, limit)
	limitPlaceholder := "$2"
	if search != "" {
		limitPlaceholder = "$3"
	}

	query := `
		SELECT d.id, d.object_id, d.object_type, d.title, d.object_url, d.created_by, d.created_at,
		       p.unread_count, p.is_pinned, p.is_archived, p.notifications_enabled,
		       (SELECT COUNT(*) FROM dialog_participants p2 WHERE p2.dialog_id = d.id),
		       (SELECT MAX(m.id) IS NOT NULL FROM messages m WHERE m.dialog_id = d.id),
		       (SELECT MAX(m.created_at) FROM messages m WHERE m.dialog_id = d.id)
		FROM dialogs d
		JOIN dialog_participants p ON p.dialog_id = d.id
		WHERE p.user_id = $1 ` + archivedClause + " " + searchClause + `
		ORDER BY p.is_pinned DESC, (SELECT MAX(m.created_at) FROM messages m WHERE m.dialog_id = d.id) DESC NULLS LAST, d.created_at DESC
		LIMIT ` + limitPlaceholder

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []ParticipatingDialogRow
	for rows.Next() {
		var r ParticipatingDialogRow
		var title, url sql.NullString
		var hasLast bool
		if err := rows.Scan(&r.ID, &r.ObjectID, &r.ObjectType, &title, &url, &r.CreatedBy, &r.CreatedAt,
			&r.UnreadCount, &r.IsPinned, &r.IsArchived, &r.NotificationsEnabled, &r.ParticipantsCount,
			&hasLast, &r.LastMessageAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		r.Title = NullStringToString(title)
		r.ObjectURL = NullStringToString(url)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AvailableDialogRow is a dialog matched by scope that userID is not
// a participant of.
type AvailableDialogRow struct {
	models.Dialog
	ParticipantsCount int
}

// ListAvailableDialogs returns dialogs whose access scopes match
// claim, excluding dialogs userID already participates in. Matching
// mirrors the access evaluator's scope-match predicate directly in
// SQL using array overlap (&&), with an empty rule-side array treated
// as universal via the `array_length(...) IS NULL OR ... && ...` guard.
func (db *DB) ListAvailableDialogs(ctx context.Context, userID, tenantUID string, l1, l2 []string, search string, limit int) ([]AvailableDialogRow, error) {
	query := `
		SELECT DISTINCT d.id, d.object_id, d.object_type, d.title, d.object_url, d.created_by, d.created_at,
		       (SELECT COUNT(*) FROM dialog_participants p2 WHERE p2.dialog_id = d.id)
		FROM dialogs d
		JOIN dialog_access_scopes s ON s.dialog_id = d.id
		WHERE s.tenant_uid = $1
		  AND (array_length(s.scope_level1, 1) IS NULL OR s.scope_level1 && $2)
		  AND (array_length(s.scope_level2, 1) IS NULL OR s.scope_level2 && $3)
		  AND NOT EXISTS (SELECT 1 FROM dialog_participants p WHERE p.dialog_id = d.id AND p.user_id = $4)
		  AND ($5 = '' OR d.title ILIKE $6)
		ORDER BY d.id DESC
		LIMIT $7
	`
	searchTerm := ""
	if search != "" {
		searchTerm = "%" + escapeLike(search) + "%"
	}
	rows, err := db.QueryContext(ctx, query, tenantUID, pq.Array(l1), pq.Array(l2), userID, search, searchTerm, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []AvailableDialogRow
	for rows.Next() {
		var r AvailableDialogRow
		var title, url sql.NullString
		if err := rows.Scan(&r.ID, &r.ObjectID, &r.ObjectType, &title, &url, &r.CreatedBy, &r.CreatedAt, &r.ParticipantsCount); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		r.Title = NullStringToString(title)
		r.ObjectURL = NullStringToString(url)
		out = append(out, r)
	}
	return out, rows.Err()
}

// StaleParticipant identifies a participant whose dialog needs
// auto-archiving.
type StaleParticipant struct {
	DialogID string
	UserID   string
}

// FindParticipantsToAutoArchive returns (dialog_id, user_id) pairs for
// participants of dialogs whose most recent message (or, if none,
// creation time) is older than cutoff and who are not already
// archived.
func (db *DB) FindParticipantsToAutoArchive(ctx context.Context, cutoff time.Time) ([]StaleParticipant, error) {
	query := `
		SELECT p.dialog_id, p.user_id
		FROM dialog_participants p
		JOIN dialogs d ON d.id = p.dialog_id
		WHERE p.is_archived = false
		  AND COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.dialog_id = d.id), d.created_at) < $1
	`
	rows, err := db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()
	var out []StaleParticipant
	for rows.Next() {
		var s StaleParticipant
		if err := rows.Scan(&s.DialogID, &s.UserID); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkArchived sets is_archived=true for one participant row.
func (db *DB) MarkArchived(ctx context.Context, dialogID, userID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE dialog_participants SET is_archived = true WHERE dialog_id = $1 AND user_id = $2`,
		dialogID, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// ListDialogPeers returns every distinct user who shares at least one
// dialog with userID, excluding userID itself. Used to scope
// presence.update broadcasts to the users who could plausibly care.
func (db *DB) ListDialogPeers(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT p2.user_id
		FROM dialog_participants p1
		JOIN dialog_participants p2 ON p2.dialog_id = p1.dialog_id
		WHERE p1.user_id = $1 AND p2.user_id <> $1
	`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
