// Package access implements the collection access-control model: a single
// authorization predicate composed in front of every membership and sync
// operation.
package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"coffer/internal/models"
)

// Decision is the tagged outcome of an authorization check.
type Decision int

const (
	// Ok means the caller holds the required access level.
	Ok Decision = iota
	// Forbidden means the caller can see the collection but lacks the
	// required level.
	Forbidden
	// NotFound means the collection is invisible to the caller: it does
	// not exist, or the caller has no membership in it. The two cases are
	// deliberately indistinguishable.
	NotFound
)

// Authorizer answers access-level questions against the membership store.
type Authorizer struct {
	db *gorm.DB
}

// NewAuthorizer returns an Authorizer backed by db.
func NewAuthorizer(db *gorm.DB) *Authorizer {
	return &Authorizer{db: db}
}

// Authorize decides whether userID may act on collection at the required
// level. The collection owner is implicitly Admin. An anonymous caller
// (userID == 0) is never authorized. A caller with no membership at all
// gets NotFound rather than Forbidden so that non-members cannot probe for
// a collection's existence.
func (a *Authorizer) Authorize(ctx context.Context, userID uint, collection *models.Collection, required models.AccessLevel) (Decision, error) {
	if userID == 0 || collection == nil {
		return NotFound, nil
	}
	if collection.OwnerID == userID {
		return Ok, nil
	}

	level, ok, err := a.memberLevel(ctx, userID, collection.ID)
	if err != nil {
		return Forbidden, err
	}
	if !ok {
		return NotFound, nil
	}
	if !level.AtLeast(required) {
		return Forbidden, nil
	}
	return Ok, nil
}

// IsCollectionAdmin reports whether userID administers the collection:
// either as owner or through an Admin-level membership. Membership listing
// and mutation layer this check in front of the generic level gate.
func (a *Authorizer) IsCollectionAdmin(ctx context.Context, userID uint, collection *models.Collection) (bool, error) {
	d, err := a.Authorize(ctx, userID, collection, models.AccessLevelAdmin)
	if err != nil {
		return false, err
	}
	return d == Ok, nil
}

func (a *Authorizer) memberLevel(ctx context.Context, userID, collectionID uint) (models.AccessLevel, bool, error) {
	var member models.CollectionMember
	err := a.db.WithContext(ctx).
		Where("collection_id = ? AND user_id = ?", collectionID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return member.AccessLevel, true, nil
}

// Check translates a Decision into the API error taxonomy, or nil for Ok.
func Check(d Decision, resource string) error {
	switch d {
	case Ok:
		return nil
	case Forbidden:
		return models.NewForbiddenError("insufficient access level")
	default:
		return models.NewNotFoundError(resource)
	}
}
