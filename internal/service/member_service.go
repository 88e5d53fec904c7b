// Package service implements the business logic of the sync server.
package service

import (
	"context"
	"errors"
	"time"

	"coffer/internal/access"
	"coffer/internal/models"
	"coffer/internal/observability"
	"coffer/internal/repository"
	"coffer/internal/stoken"

	"gorm.io/gorm"
)

// SyncNotifier nudges connected clients when a collection-level stoken
// advances. A nil notifier is valid and means no push delivery.
type SyncNotifier interface {
	PublishCollectionChange(ctx context.Context, collectionUID, stokenUID string) error
}

// MemberService manages collection memberships: listing via the sync cursor
// protocol, access-level changes, revocation, and self-initiated leave.
type MemberService struct {
	db          *gorm.DB
	ledger      *stoken.Ledger
	authz       *access.Authorizer
	collections repository.CollectionRepository
	members     repository.MemberRepository
	notifier    SyncNotifier
	maxPageSize int
}

// NewMemberService returns a new MemberService.
func NewMemberService(db *gorm.DB, ledger *stoken.Ledger, authz *access.Authorizer, collections repository.CollectionRepository, members repository.MemberRepository, notifier SyncNotifier, maxPageSize int) *MemberService {
	return &MemberService{
		db:          db,
		ledger:      ledger,
		authz:       authz,
		collections: collections,
		members:     members,
		notifier:    notifier,
		maxPageSize: maxPageSize,
	}
}

// adminGate fetches the collection as visible to the caller and requires the
// combined gate used by every membership management operation: the caller
// must hold the base level and administer the collection. Non-members get
// NotFound, visible non-admins get Forbidden.
func (s *MemberService) adminGate(ctx context.Context, callerID uint, collectionUID string, base models.AccessLevel) (*models.Collection, error) {
	collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
	if err != nil {
		return nil, err
	}
	decision, err := s.authz.Authorize(ctx, callerID, collection, base)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := access.Check(decision, "Collection"); err != nil {
		return nil, err
	}
	admin, err := s.authz.IsCollectionAdmin(ctx, callerID, collection)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !admin {
		return nil, models.NewForbiddenError("admin access required")
	}
	return collection, nil
}

// List returns one sync page of the collection's members. Listing
// membership is itself an admin-only operation.
func (s *MemberService) List(ctx context.Context, callerID uint, collectionUID, cursor string, limit int) ([]models.CollectionMember, string, bool, error) {
	collection, err := s.adminGate(ctx, callerID, collectionUID, models.AccessLevelReadOnly)
	if err != nil {
		return nil, "", false, err
	}

	start := time.Now()
	defer func() {
		observability.SyncPageLatency.WithLabelValues("member").Observe(time.Since(start).Seconds())
	}()

	limit = stoken.ClampLimit(limit, s.maxPageSize)
	members, newCursor, done, err := stoken.Page[models.CollectionMember](
		s.db.WithContext(ctx), s.ledger, cursor, limit,
		func(q *gorm.DB) *gorm.DB {
			return q.Model(&models.CollectionMember{}).
				Where("collection_id = ?", collection.ID).
				Preload("User").
				Preload("Stoken")
		},
	)
	if err != nil {
		return nil, "", false, translatePageErr(err)
	}
	return members, newCursor, done, nil
}

// SetAccessLevel changes a member's access level, stamping a fresh stoken on
// the record in the same transaction. Setting a level equal to the current
// one is a successful no-op and mints nothing, so idle clients see no
// spurious sync churn.
func (s *MemberService) SetAccessLevel(ctx context.Context, callerID uint, collectionUID, username string, level models.AccessLevel) error {
	if !level.Valid() {
		return models.NewValidationError("unrecognized access level")
	}
	collection, err := s.adminGate(ctx, callerID, collectionUID, models.AccessLevelReadWrite)
	if err != nil {
		return err
	}

	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)
		member, err := members.GetByUsername(ctx, collection.ID, username)
		if err != nil {
			return err
		}
		if member.AccessLevel == level {
			return nil
		}

		st, err := s.ledger.Issue(tx)
		if err != nil {
			return models.NewInternalError(err)
		}
		if err := members.UpdateAccess(ctx, member, level, st.ID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		observability.StokensIssued.WithLabelValues("member").Inc()
		observability.MembershipMutations.WithLabelValues("set_access_level").Inc()
	}
	return nil
}

// Revoke removes a member from the collection. The record is hard-deleted;
// the collection-level stoken is advanced in the same transaction so clients
// resyncing past the revocation observe a state change.
func (s *MemberService) Revoke(ctx context.Context, callerID uint, collectionUID, username string) error {
	collection, err := s.adminGate(ctx, callerID, collectionUID, models.AccessLevelReadWrite)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)
		member, err := members.GetByUsername(ctx, collection.ID, username)
		if err != nil {
			return err
		}
		return s.revokeInTx(ctx, tx, members, collection, member)
	})
	if err != nil {
		return err
	}

	observability.MembershipMutations.WithLabelValues("revoke").Inc()
	s.notifyCollectionChange(ctx, collection)
	return nil
}

// Leave removes the caller's own membership. Any member may leave,
// regardless of access level.
func (s *MemberService) Leave(ctx context.Context, callerID uint, collectionUID string) error {
	collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)
		member, err := members.GetByUserID(ctx, collection.ID, callerID)
		if err != nil {
			return err
		}
		return s.revokeInTx(ctx, tx, members, collection, member)
	})
	if err != nil {
		return err
	}

	observability.MembershipMutations.WithLabelValues("leave").Inc()
	s.notifyCollectionChange(ctx, collection)
	return nil
}

// revokeInTx deletes the membership and advances the collection-level
// stoken inside the caller's transaction. Nothing is stamped on the deleted
// record; the collection bump is the only sync-visible trace.
func (s *MemberService) revokeInTx(ctx context.Context, tx *gorm.DB, members repository.MemberRepository, collection *models.Collection, member *models.CollectionMember) error {
	if err := members.Delete(ctx, member); err != nil {
		return err
	}
	st, err := advanceCollectionStoken(tx, s.ledger, collection)
	if err != nil {
		return err
	}
	collection.Stoken = st
	observability.StokensIssued.WithLabelValues("collection").Inc()
	return nil
}

// notifyCollectionChange publishes a sync nudge after the surrounding
// transaction has committed.
func (s *MemberService) notifyCollectionChange(ctx context.Context, collection *models.Collection) {
	if s.notifier == nil {
		return
	}
	stokenUID := ""
	if collection.Stoken != nil {
		stokenUID = collection.Stoken.UID
	}
	if err := s.notifier.PublishCollectionChange(ctx, collection.UID, stokenUID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "sync nudge publish failed",
			"collection", collection.UID, "error", err.Error())
	}
}

// translatePageErr maps cursor protocol failures to the API error taxonomy.
func translatePageErr(err error) error {
	if errors.Is(err, stoken.ErrInvalidCursor) {
		return models.NewValidationError("invalid sync cursor")
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
