package database

import (
	"context"
	"database/sql"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/idgen"
	"github.com/pohodnya/mtchat/internal/models"
)

// NewMessageParams is the set of fields InsertMessageTx persists.
type NewMessageParams struct {
	DialogID    string
	SenderID    string
	MessageType models.MessageType
	Content     string
	ReplyToID   string
}

// InsertMessageTx inserts one message row and returns it with a fresh
// time-ordered id. Always called inside the same transaction as the
// attachment inserts and counter updates.
func (db *DB) InsertMessageTx(tx *sql.Tx, ctx context.Context, p NewMessageParams) (*models.Message, error) {
	id := idgen.New()
	query := `
		INSERT INTO messages (id, dialog_id, sender_id, message_type, content, reply_to_id, is_edited, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, false, NOW(), NOW())
		RETURNING id, dialog_id, sender_id, message_type, content, reply_to_id, is_edited, is_deleted, created_at, updated_at
	`
	var m models.Message
	var senderID, replyTo sql.NullString
	err := tx.QueryRowContext(ctx, query, id, p.DialogID, StringToNullString(p.SenderID), p.MessageType, p.Content, StringToNullString(p.ReplyToID)).
		Scan(&m.ID, &m.DialogID, &senderID, &m.MessageType, &m.Content, &replyTo, &m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	m.SenderID = NullStringToString(senderID)
	m.ReplyToID = NullStringToString(replyTo)
	return &m, nil
}

// InsertAttachmentsTx inserts the attachment rows for a message.
func (db *DB) InsertAttachmentsTx(tx *sql.Tx, ctx context.Context, messageID string, descs []models.AttachmentDescriptor) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, d := range descs {
		id := idgen.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (id, message_id, filename, content_type, size_bytes, object_key)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, messageID, d.Filename, d.ContentType, d.Size, d.ObjectKey)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		out = append(out, models.Attachment{
			ID: id, MessageID: messageID, Filename: d.Filename,
			ContentType: d.ContentType, SizeBytes: d.Size, ObjectKey: d.ObjectKey,
		})
	}
	return out, nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT id, dialog_id, sender_id, message_type, content, reply_to_id, is_edited, is_deleted, created_at, updated_at
		FROM messages WHERE id = $1
	`
	m, err := scanMessage(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	atts, err := db.GetAttachmentsForMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Attachments = atts
	return m, nil
}

func scanMessage(row *sql.Row) (*models.Message, error) {
	var m models.Message
	var senderID, replyTo sql.NullString
	err := row.Scan(&m.ID, &m.DialogID, &senderID, &m.MessageType, &m.Content, &replyTo, &m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrMessageNotFound, "message not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	m.SenderID = NullStringToString(senderID)
	m.ReplyToID = NullStringToString(replyTo)
	return &m, nil
}

const messageColumns = `id, dialog_id, sender_id, message_type, content, reply_to_id, is_edited, is_deleted, created_at, updated_at`

func (db *DB) queryMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var senderID, replyTo sql.NullString
		if err := rows.Scan(&m.ID, &m.DialogID, &senderID, &m.MessageType, &m.Content, &replyTo, &m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		m.SenderID = NullStringToString(senderID)
		m.ReplyToID = NullStringToString(replyTo)
		out = append(out, m)
	}
	return out, rows.Err()
}

func reverseMessages(m []models.Message) {
	for i, j := 0, len(m)-1; i < j; i, j = i+1, j-1 {
		m[i], m[j] = m[j], m[i]
	}
}

// ListMessagesPage implements the single listing endpoint's
// before/after/around/none modes, returning the window in ascending
// (oldest-first) order plus the has-more flags for bidirectional
// infinite scroll.
func (db *DB) ListMessagesPage(ctx context.Context, dialogID string, mode models.PaginationMode, anchorID string, limit int) (msgs []models.Message, hasMoreBefore, hasMoreAfter bool, err error) {
	switch mode {
	case models.PaginationBefore:
		rows, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`, dialogID, anchorID, limit+1)
		if e != nil {
			return nil, false, false, e
		}
		hasMoreBefore = len(rows) > limit
		if hasMoreBefore {
			rows = rows[:limit]
		}
		reverseMessages(rows)
		hasMoreAfter, e = db.existsAtOrAfter(ctx, dialogID, anchorID)
		if e != nil {
			return nil, false, false, e
		}
		return rows, hasMoreBefore, hasMoreAfter, nil

	case models.PaginationAfter:
		rows, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 AND id > $2 ORDER BY id ASC LIMIT $3`, dialogID, anchorID, limit+1)
		if e != nil {
			return nil, false, false, e
		}
		hasMoreAfter = len(rows) > limit
		if hasMoreAfter {
			rows = rows[:limit]
		}
		hasMoreBefore, e = db.existsAtOrBefore(ctx, dialogID, anchorID)
		if e != nil {
			return nil, false, false, e
		}
		return rows, hasMoreBefore, hasMoreAfter, nil

	case models.PaginationAround:
		half := limit / 2
		afterHalf := limit - half

		before, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`, dialogID, anchorID, half+1)
		if e != nil {
			return nil, false, false, e
		}
		hasMoreBefore = len(before) > half
		if hasMoreBefore {
			before = before[:half]
		}
		reverseMessages(before)

		anchorRows, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 AND id = $2`, dialogID, anchorID)
		if e != nil {
			return nil, false, false, e
		}

		after, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 AND id > $2 ORDER BY id ASC LIMIT $3`, dialogID, anchorID, afterHalf+1)
		if e != nil {
			return nil, false, false, e
		}
		hasMoreAfter = len(after) > afterHalf
		if hasMoreAfter {
			after = after[:afterHalf]
		}

		combined := append(append(before, anchorRows...), after...)
		return combined, hasMoreBefore, hasMoreAfter, nil

	default: // latest window
		rows, e := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE dialog_id = $1 ORDER BY id DESC LIMIT $2`, dialogID, limit+1)
		if e != nil {
			return nil, false, false, e
		}
		hasMoreBefore = len(rows) > limit
		if hasMoreBefore {
			rows = rows[:limit]
		}
		reverseMessages(rows)
		return rows, hasMoreBefore, false, nil
	}
}

func (db *DB) existsAtOrAfter(ctx context.Context, dialogID, id string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE dialog_id = $1 AND id >= $2)`, dialogID, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return exists, nil
}

func (db *DB) existsAtOrBefore(ctx context.Context, dialogID, id string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE dialog_id = $1 AND id <= $2)`, dialogID, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return exists, nil
}

// FirstUnreadMessageID returns the first message strictly newer than
// lastReadMessageID, or "" if there is none.
func (db *DB) FirstUnreadMessageID(ctx context.Context, dialogID, lastReadMessageID string) (string, error) {
	query := `SELECT id FROM messages WHERE dialog_id = $1 AND id > $2 ORDER BY id ASC LIMIT 1`
	var id string
	err := db.QueryRowContext(ctx, query, dialogID, lastReadMessageID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrDatabaseError)
	}
	return id, nil
}

// EditMessageTx updates content, marks is_edited, and records the
// prior content into message_edit_history, all in one transaction.
func (db *DB) EditMessageTx(tx *sql.Tx, ctx context.Context, messageID, previousContent, newContent string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE messages SET content = $2, is_edited = true, updated_at = NOW() WHERE id = $1
	`, messageID, newContent)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_edit_history (id, message_id, previous_content, edited_at)
		VALUES ($1, $2, $3, NOW())
	`, idgen.New(), messageID, previousContent)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

func (db *DB) SoftDeleteMessage(ctx context.Context, messageID string) error {
	res, err := db.ExecContext(ctx, `UPDATE messages SET is_deleted = true, updated_at = NOW() WHERE id = $1`, messageID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrMessageNotFound, "message not found")
	}
	return nil
}
