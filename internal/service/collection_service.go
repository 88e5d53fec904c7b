package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"coffer/internal/models"
	"coffer/internal/observability"
	"coffer/internal/repository"
	"coffer/internal/stoken"

	"gorm.io/gorm"
)

// collectionUIDPattern constrains client-chosen collection identifiers.
// The server treats the id as opaque but refuses values that cannot be
// safely embedded in URLs and channels.
var collectionUIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,44}$`)

// CollectionService manages collections as containers: creation, visibility
// scoped fetch, and incremental listing of the caller's collections.
type CollectionService struct {
	db          *gorm.DB
	ledger      *stoken.Ledger
	collections repository.CollectionRepository
	members     repository.MemberRepository
	maxPageSize int
}

// NewCollectionService returns a new CollectionService.
func NewCollectionService(db *gorm.DB, ledger *stoken.Ledger, collections repository.CollectionRepository, members repository.MemberRepository, maxPageSize int) *CollectionService {
	return &CollectionService{
		db:          db,
		ledger:      ledger,
		collections: collections,
		members:     members,
		maxPageSize: maxPageSize,
	}
}

// Create stores a new collection owned by the caller. The owner is written
// as an Admin member in the same transaction, and both records are stamped
// with freshly minted stokens.
func (s *CollectionService) Create(ctx context.Context, callerID uint, uid string, typeHint []byte) (*models.Collection, error) {
	if callerID == 0 {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	if !collectionUIDPattern.MatchString(uid) {
		return nil, models.NewValidationError("invalid collection uid")
	}

	collection := &models.Collection{
		UID:      uid,
		OwnerID:  callerID,
		TypeHint: typeHint,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Collection{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		if count > 0 {
			return models.NewConflictError("collection uid already in use")
		}

		colStoken, err := s.ledger.Issue(tx)
		if err != nil {
			return models.NewInternalError(err)
		}
		collection.StokenID = &colStoken.ID
		collection.Stoken = colStoken
		if err := tx.Create(collection).Error; err != nil {
			return models.NewInternalError(err)
		}

		memberStoken, err := s.ledger.Issue(tx)
		if err != nil {
			return models.NewInternalError(err)
		}
		owner := &models.CollectionMember{
			CollectionID: collection.ID,
			UserID:       callerID,
			AccessLevel:  models.AccessLevelAdmin,
			StokenID:     &memberStoken.ID,
		}
		return s.members.WithTx(tx).Create(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	observability.StokensIssued.WithLabelValues("collection").Inc()
	observability.StokensIssued.WithLabelValues("member").Inc()
	return collection, nil
}

// Get fetches a collection by UID as visible to the caller.
func (s *CollectionService) Get(ctx context.Context, callerID uint, uid string) (*models.Collection, error) {
	return s.collections.GetVisible(ctx, callerID, uid)
}

// ListMulti returns one sync page of the caller's memberships, each with its
// collection preloaded. Owned collections are included through the owner's
// Admin membership written at creation.
func (s *CollectionService) ListMulti(ctx context.Context, callerID uint, cursor string, limit int) ([]models.CollectionMember, string, bool, error) {
	if callerID == 0 {
		return nil, "", false, models.NewUnauthorizedError("authentication required")
	}

	start := time.Now()
	defer func() {
		observability.SyncPageLatency.WithLabelValues("collection").Observe(time.Since(start).Seconds())
	}()

	limit = stoken.ClampLimit(limit, s.maxPageSize)
	memberships, newCursor, done, err := stoken.Page[models.CollectionMember](
		s.db.WithContext(ctx), s.ledger, cursor, limit,
		func(q *gorm.DB) *gorm.DB {
			return q.Model(&models.CollectionMember{}).
				Where("user_id = ?", callerID).
				Preload("Collection").
				Preload("Collection.Stoken").
				Preload("Stoken")
		},
	)
	if err != nil {
		return nil, "", false, translatePageErr(err)
	}
	return memberships, newCursor, done, nil
}

// advanceCollectionStoken mints a stoken and stamps it as the collection's
// top-level stoken inside tx. Every membership revocation and item write
// routes through here so resyncing clients always observe the change.
func advanceCollectionStoken(tx *gorm.DB, ledger *stoken.Ledger, collection *models.Collection) (*stoken.Stoken, error) {
	st, err := ledger.Issue(tx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	err = tx.Model(&models.Collection{}).
		Where("id = ?", collection.ID).
		Update("stoken_id", st.ID).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	collection.StokenID = &st.ID
	return st, nil
}

// errIsNotFound reports whether err is the API-level NotFound.
func errIsNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == "not_found"
}
