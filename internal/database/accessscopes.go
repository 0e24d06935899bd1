package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/idgen"
	"github.com/pohodnya/mtchat/internal/models"
)

// InsertScopesTx inserts the given access-scope rules for dialogID.
// Used both at dialog creation and, preceded by a delete, by the
// scope-replacement endpoint — both run inside a transaction.
func (db *DB) InsertScopesTx(tx *sql.Tx, ctx context.Context, dialogID string, scopes []models.AccessScopeRequest) error {
	for _, s := range scopes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dialog_access_scopes (id, dialog_id, tenant_uid, scope_level1, scope_level2)
			VALUES ($1, $2, $3, $4, $5)
		`, idgen.New(), dialogID, s.TenantUID, pq.Array(s.ScopeLevel1), pq.Array(s.ScopeLevel2))
		if err != nil {
			return errors.Wrap(err, errors.ErrDatabaseError)
		}
	}
	return nil
}

// DeleteScopesTx removes all access-scope rules for dialogID, the
// "delete" half of the atomic replace-scopes operation.
func (db *DB) DeleteScopesTx(tx *sql.Tx, ctx context.Context, dialogID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM dialog_access_scopes WHERE dialog_id = $1`, dialogID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// ReplaceScopesTx performs the atomic delete+insert in one
// transaction, per spec's "replace scope set atomically" operation.
func (db *DB) ReplaceScopesTx(tx *sql.Tx, ctx context.Context, dialogID string, scopes []models.AccessScopeRequest) error {
	if err := db.DeleteScopesTx(tx, ctx, dialogID); err != nil {
		return err
	}
	return db.InsertScopesTx(tx, ctx, dialogID, scopes)
}

func (db *DB) ListScopes(ctx context.Context, dialogID string) ([]models.AccessScope, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT dialog_id, tenant_uid, scope_level1, scope_level2
		FROM dialog_access_scopes WHERE dialog_id = $1
	`, dialogID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var out []models.AccessScope
	for rows.Next() {
		var s models.AccessScope
		if err := rows.Scan(&s.DialogID, &s.TenantUID, pq.Array(&s.ScopeLevel1), pq.Array(&s.ScopeLevel2)); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
