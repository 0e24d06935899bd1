package database

import (
	"context"
	"database/sql"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
)

func (db *DB) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	query := `
		SELECT id, message_id, filename, content_type, size_bytes, object_key, width, height, thumbnail_object_key
		FROM attachments WHERE id = $1
	`
	var a models.Attachment
	var width, height sql.NullInt64
	var thumb sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.ObjectKey, &width, &height, &thumb,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrResourceNotFound, "attachment not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	a.Width = int(width.Int64)
	a.Height = int(height.Int64)
	a.ThumbnailObjectKey = NullStringToString(thumb)
	return &a, nil
}

func (db *DB) GetAttachmentsForMessage(ctx context.Context, messageID string) ([]models.Attachment, error) {
	query := `
		SELECT id, message_id, filename, content_type, size_bytes, object_key, width, height, thumbnail_object_key
		FROM attachments WHERE message_id = $1 ORDER BY id ASC
	`
	rows, err := db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []models.Attachment
	for rows.Next() {
		var a models.Attachment
		var width, height sql.NullInt64
		var thumb sql.NullString
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.ObjectKey, &width, &height, &thumb); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		a.Width = int(width.Int64)
		a.Height = int(height.Int64)
		a.ThumbnailObjectKey = NullStringToString(thumb)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttachMessagesToWindow fills in Attachments for a slice of messages
// with one query per message, so the query count is bounded by the
// page size rather than by the size of the whole dialog.
func (db *DB) AttachMessagesToWindow(ctx context.Context, msgs []models.Message) error {
	for i := range msgs {
		atts, err := db.GetAttachmentsForMessage(ctx, msgs[i].ID)
		if err != nil {
			return err
		}
		msgs[i].Attachments = atts
	}
	return nil
}
