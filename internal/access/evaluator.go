// Package access implements the single gate every read/write consults
// to decide whether a caller may see or act on a dialog: a direct
// participant row wins immediately, otherwise the dialog's access
// scopes are matched against the caller's scope claim.
package access

import (
	"context"

	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
)

// Evaluator is the access evaluator. It must be the only place that
// decides Participant/PotentialMember/Denied.
type Evaluator struct {
	db *database.DB
}

func New(db *database.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Evaluate resolves the caller's access level for dialogID. claim may
// be nil when the caller presented no scope header; a nil claim can
// still resolve to Participant via the direct-membership check.
func (e *Evaluator) Evaluate(ctx context.Context, userID, dialogID string, claim *models.ScopeClaim) (models.AccessLevel, error) {
	_, err := e.db.GetParticipant(ctx, dialogID, userID)
	if err == nil {
		return models.AccessParticipant, nil
	}
	if !errors.IsNotFound(err) {
		return "", err
	}

	if claim == nil {
		return models.AccessDenied, nil
	}

	scopes, err := e.db.ListScopes(ctx, dialogID)
	if err != nil {
		return "", err
	}
	for _, rule := range scopes {
		if Matches(*claim, rule) {
			return models.AccessPotentialMember, nil
		}
	}
	return models.AccessDenied, nil
}

// RequireParticipant is the contract "only Participant may read
// messages/participants or write messages".
func (e *Evaluator) RequireParticipant(ctx context.Context, userID, dialogID string, claim *models.ScopeClaim) error {
	level, err := e.Evaluate(ctx, userID, dialogID, claim)
	if err != nil {
		return err
	}
	if level != models.AccessParticipant {
		return errors.New(errors.ErrForbidden, "dialog access denied")
	}
	return nil
}

// RequireAtLeastPotential is the contract "Participant or
// PotentialMember may read dialog metadata and join".
func (e *Evaluator) RequireAtLeastPotential(ctx context.Context, userID, dialogID string, claim *models.ScopeClaim) (models.AccessLevel, error) {
	level, err := e.Evaluate(ctx, userID, dialogID, claim)
	if err != nil {
		return "", err
	}
	if level == models.AccessDenied {
		return "", errors.New(errors.ErrForbidden, "dialog access denied")
	}
	return level, nil
}

// Matches implements the scope-match predicate: tenant must match
// exactly, and both axes must intersect, with an empty rule-side set
// treated as the universe for that axis. This is asymmetric — an
// empty claim-side set matches nothing, only an empty rule-side set
// is universal.
func Matches(claim models.ScopeClaim, rule models.AccessScope) bool {
	if claim.TenantUID != rule.TenantUID {
		return false
	}
	if !axisMatches(claim.ScopeLevel1, rule.ScopeLevel1) {
		return false
	}
	if !axisMatches(claim.ScopeLevel2, rule.ScopeLevel2) {
		return false
	}
	return true
}

func axisMatches(claimSet, ruleSet []string) bool {
	if len(ruleSet) == 0 {
		return true
	}
	if len(claimSet) == 0 {
		return false
	}
	ruleIdx := make(map[string]struct{}, len(ruleSet))
	for _, v := range ruleSet {
		ruleIdx[v] = struct{}{}
	}
	for _, v := range claimSet {
		if _, ok := ruleIdx[v]; ok {
			return true
		}
	}
	return false
}
