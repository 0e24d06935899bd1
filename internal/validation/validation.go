// Package validation holds request-shape checks shared by the
// Management and Chat API handlers, ahead of the service layer's own
// business-rule checks (which need the database and so can't live
// here).
package validation

import (
	"fmt"
	"regexp"

	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateCreateDialogRequest checks the Management API's creation
// body for the fields every dialog requires.
func ValidateCreateDialogRequest(req models.CreateDialogRequest) error {
	if req.ObjectID == "" {
		return errors.New(errors.ErrMissingRequiredField, "object_id is required")
	}
	if req.ObjectType == "" {
		return errors.New(errors.ErrMissingRequiredField, "object_type is required")
	}
	if req.CreatedBy == "" {
		return errors.New(errors.ErrMissingRequiredField, "created_by is required")
	}
	if !idPattern.MatchString(req.ObjectID) {
		return errors.New(errors.ErrInvalidID, "object_id contains characters outside [a-zA-Z0-9_-]")
	}
	for _, scope := range req.AccessScopes {
		if scope.TenantUID == "" {
			return errors.New(errors.ErrMissingRequiredField, "access_scopes[].tenant_uid is required")
		}
	}
	return nil
}

// ValidateSeedParticipant checks a participant payload supplied at
// creation time or via the add-participant endpoint.
func ValidateSeedParticipant(req models.SeedParticipantRequest) error {
	if req.UserID == "" {
		return errors.New(errors.ErrMissingRequiredField, "user_id is required")
	}
	return nil
}

// ValidateAccessScopeRequest checks a single scope rule.
func ValidateAccessScopeRequest(req models.AccessScopeRequest) error {
	if req.TenantUID == "" {
		return errors.New(errors.ErrMissingRequiredField, "tenant_uid is required")
	}
	return nil
}

const maxMessageContentLength = 20000

// ValidateSendMessageRequest checks the Chat API's message submission
// body before it reaches sanitization.
func ValidateSendMessageRequest(req models.SendMessageRequest) error {
	if len(req.Content) > maxMessageContentLength {
		return errors.NewWithDetails(
			errors.ErrValidationFailed,
			"content exceeds maximum length",
			map[string]interface{}{"max_length": maxMessageContentLength, "actual": len(req.Content)},
		)
	}
	if len(req.Attachments) > models.MaxAttachmentsPerMessage {
		return errors.NewWithDetails(
			errors.ErrValidationFailed,
			fmt.Sprintf("cannot attach more than %d files to one message", models.MaxAttachmentsPerMessage),
			map[string]interface{}{"max_allowed": models.MaxAttachmentsPerMessage, "actual": len(req.Attachments)},
		)
	}
	return nil
}

// ParsePaginationParams maps the Chat API's before/after/around query
// parameters onto the internal PaginationMode + anchor id pair. At
// most one of the three may be set; all absent means the latest window.
func ParsePaginationParams(before, after, around string) (models.PaginationMode, string, error) {
	set := 0
	var mode models.PaginationMode
	var anchorID string
	if before != "" {
		set++
		mode, anchorID = models.PaginationBefore, before
	}
	if after != "" {
		set++
		mode, anchorID = models.PaginationAfter, after
	}
	if around != "" {
		set++
		mode, anchorID = models.PaginationAround, around
	}
	if set > 1 {
		return "", "", errors.New(errors.ErrValidationFailed, "only one of before, after, around may be specified")
	}
	return mode, anchorID, nil
}

// ValidatePagination checks the single listing endpoint's window
// parameters.
func ValidatePagination(limit int, mode models.PaginationMode, anchorID string) error {
	if limit < 0 || limit > 200 {
		return errors.NewWithDetails(
			errors.ErrValidationFailed,
			"limit must be between 0 and 200",
			map[string]interface{}{"limit": limit},
		)
	}
	if mode != models.PaginationNone && anchorID == "" {
		return errors.New(errors.ErrMissingRequiredField, "anchor id is required for before/after/around pagination")
	}
	return nil
}

// ValidateObjectIDAndType checks the get-by-object lookup's query
// parameters.
func ValidateObjectIDAndType(objectType, objectID string) error {
	if objectType == "" {
		return errors.New(errors.ErrMissingRequiredField, "object_type is required")
	}
	if objectID == "" {
		return errors.New(errors.ErrMissingRequiredField, "object_id is required")
	}
	return nil
}
