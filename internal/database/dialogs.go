package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/idgen"
	"github.com/pohodnya/mtchat/internal/models"
)

// CreateDialogParams is the dialog row CreateDialogTx writes. Seed
// participants, access scopes, and the chat_created system message
// are inserted by separate calls inside the same transaction.
type CreateDialogParams struct {
	ObjectID   string
	ObjectType string
	Title      string
	ObjectURL  string
	CreatedBy  string
}

// CreateDialogTx inserts the dialog row and returns it; callers
// compose this with AddParticipantTx/InsertScopesTx/InsertMessageTx
// inside the same transaction to satisfy the "create with seed
// members/scopes in one transaction" invariant.
func (db *DB) CreateDialogTx(tx *sql.Tx, ctx context.Context, p CreateDialogParams) (*models.Dialog, error) {
	id := idgen.New()
	query := `
		INSERT INTO dialogs (id, object_id, object_type, title, object_url, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, object_id, object_type, title, object_url, created_by, created_at
	`
	var d models.Dialog
	var title, url sql.NullString
	err := tx.QueryRowContext(ctx, query, id, p.ObjectID, p.ObjectType, p.Title, p.ObjectURL, p.CreatedBy).Scan(
		&d.ID, &d.ObjectID, &d.ObjectType, &title, &url, &d.CreatedBy, &d.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	d.Title = NullStringToString(title)
	d.ObjectURL = NullStringToString(url)
	return &d, nil
}

func (db *DB) GetDialog(ctx context.Context, dialogID string) (*models.Dialog, error) {
	query := `
		SELECT id, object_id, object_type, title, object_url, created_by, created_at
		FROM dialogs WHERE id = $1
	`
	var d models.Dialog
	var title, url sql.NullString
	err := db.QueryRowContext(ctx, query, dialogID).Scan(
		&d.ID, &d.ObjectID, &d.ObjectType, &title, &url, &d.CreatedBy, &d.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrDialogNotFound, "dialog not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	d.Title = NullStringToString(title)
	d.ObjectURL = NullStringToString(url)
	return &d, nil
}

// DeleteDialog removes the dialog; ON DELETE CASCADE foreign keys
// take care of participants, scopes, messages and attachments.
func (db *DB) DeleteDialog(ctx context.Context, dialogID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM dialogs WHERE id = $1`, dialogID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if rows == 0 {
		return errors.New(errors.ErrDialogNotFound, "dialog not found")
	}
	return nil
}

// GetLatestDialogByObject returns the newest dialog bound to the
// given (object_type, object_id) pair, or nil if none exists.
func (db *DB) GetLatestDialogByObject(ctx context.Context, objectType, objectID string) (*models.Dialog, error) {
	query := `
		SELECT id, object_id, object_type, title, object_url, created_by, created_at
		FROM dialogs
		WHERE object_type = $1 AND object_id = $2
		ORDER BY id DESC
		LIMIT 1
	`
	var d models.Dialog
	var title, url sql.NullString
	err := db.QueryRowContext(ctx, query, objectType, objectID).Scan(
		&d.ID, &d.ObjectID, &d.ObjectType, &title, &url, &d.CreatedBy, &d.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	d.Title = NullStringToString(title)
	d.ObjectURL = NullStringToString(url)
	return &d, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("%", "\\%", "_", "\\_")
	return r.Replace(s)
}
