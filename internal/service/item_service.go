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

// ItemInput is one opaque encrypted blob in a batch write. Content is
// ciphertext; the server stores it without inspection.
type ItemInput struct {
	UID     string `json:"uid" cbor:"uid"`
	Content []byte `json:"content" cbor:"content"`
}

// ItemService stores and pages collection items. Every write advances both
// the item's stoken and the collection-level stoken.
type ItemService struct {
	db          *gorm.DB
	ledger      *stoken.Ledger
	authz       *access.Authorizer
	collections repository.CollectionRepository
	notifier    SyncNotifier
	maxPageSize int
}

// NewItemService returns a new ItemService.
func NewItemService(db *gorm.DB, ledger *stoken.Ledger, authz *access.Authorizer, collections repository.CollectionRepository, notifier SyncNotifier, maxPageSize int) *ItemService {
	return &ItemService{
		db:          db,
		ledger:      ledger,
		authz:       authz,
		collections: collections,
		notifier:    notifier,
		maxPageSize: maxPageSize,
	}
}

// List returns one sync page of the collection's items. Any member may read.
func (s *ItemService) List(ctx context.Context, callerID uint, collectionUID, cursor string, limit int) ([]models.CollectionItem, string, bool, error) {
	collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
	if err != nil {
		return nil, "", false, err
	}

	start := time.Now()
	defer func() {
		observability.SyncPageLatency.WithLabelValues("item").Observe(time.Since(start).Seconds())
	}()

	limit = stoken.ClampLimit(limit, s.maxPageSize)
	items, newCursor, done, err := stoken.Page[models.CollectionItem](
		s.db.WithContext(ctx), s.ledger, cursor, limit,
		func(q *gorm.DB) *gorm.DB {
			return q.Model(&models.CollectionItem{}).
				Where("collection_id = ?", collection.ID).
				Preload("Stoken")
		},
	)
	if err != nil {
		return nil, "", false, translatePageErr(err)
	}
	return items, newCursor, done, nil
}

// BatchPut upserts a batch of items in one transaction. Each mutated item is
// stamped with its own freshly minted stoken, the collection-level stoken is
// advanced, and connected clients are nudged after commit. Requires
// ReadWrite.
func (s *ItemService) BatchPut(ctx context.Context, callerID uint, collectionUID string, inputs []ItemInput) error {
	if len(inputs) == 0 {
		return models.NewValidationError("empty item batch")
	}
	collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
	if err != nil {
		return err
	}
	decision, err := s.authz.Authorize(ctx, callerID, collection, models.AccessLevelReadWrite)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := access.Check(decision, "Collection"); err != nil {
		return err
	}
	for _, in := range inputs {
		if in.UID == "" {
			return models.NewValidationError("item uid is required")
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			st, err := s.ledger.Issue(tx)
			if err != nil {
				return models.NewInternalError(err)
			}

			var item models.CollectionItem
			lookup := tx.Where("collection_id = ? AND uid = ?", collection.ID, in.UID).First(&item)
			switch {
			case lookup.Error == nil:
				err = tx.Model(&item).Updates(map[string]interface{}{
					"content":   in.Content,
					"stoken_id": st.ID,
				}).Error
			case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
				item = models.CollectionItem{
					CollectionID: collection.ID,
					UID:          in.UID,
					Content:      in.Content,
					StokenID:     &st.ID,
				}
				err = tx.Create(&item).Error
			default:
				err = lookup.Error
			}
			if err != nil {
				return models.NewInternalError(err)
			}
			observability.StokensIssued.WithLabelValues("item").Inc()
		}

		st, err := advanceCollectionStoken(tx, s.ledger, collection)
		if err != nil {
			return err
		}
		collection.Stoken = st
		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		stokenUID := ""
		if collection.Stoken != nil {
			stokenUID = collection.Stoken.UID
		}
		if err := s.notifier.PublishCollectionChange(ctx, collection.UID, stokenUID); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "sync nudge publish failed",
				"collection", collection.UID, "error", err.Error())
		}
	}
	return nil
}
