package repository

import (
	"context"
	"errors"

	"coffer/internal/models"

	"gorm.io/gorm"
)

// CollectionRepository defines persistence operations for collections.
type CollectionRepository interface {
	// GetVisible fetches a collection by UID as seen by userID: the
	// collection must exist and the caller must be its owner or a member.
	// Anything else is the same NotFound.
	GetVisible(ctx context.Context, userID uint, uid string) (*models.Collection, error)
	// ListUIDsForUser returns the UIDs of every collection the user is a
	// member of, for websocket subscription setup.
	ListUIDsForUser(ctx context.Context, userID uint) ([]string, error)
}

type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository returns a new CollectionRepository implementation.
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) GetVisible(ctx context.Context, userID uint, uid string) (*models.Collection, error) {
	if userID == 0 {
		return nil, models.NewNotFoundError("Collection")
	}
	var collection models.Collection
	err := r.db.WithContext(ctx).
		Preload("Stoken").
		Where("uid = ?", uid).
		Where("owner_id = ? OR id IN (?)", userID,
			r.db.Model(&models.CollectionMember{}).
				Select("collection_id").
				Where("user_id = ?", userID),
		).
		First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Collection")
		}
		return nil, models.NewInternalError(err)
	}
	return &collection, nil
}

func (r *collectionRepository) ListUIDsForUser(ctx context.Context, userID uint) ([]string, error) {
	var uids []string
	err := r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("id IN (?)",
			r.db.Model(&models.CollectionMember{}).
				Select("collection_id").
				Where("user_id = ?", userID),
		).
		Pluck("uid", &uids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return uids, nil
}
