package repository

import (
	"context"
	"errors"

	"coffer/internal/models"

	"gorm.io/gorm"
)

// InvitationRepository defines persistence operations for collection invitations.
type InvitationRepository interface {
	GetIncoming(ctx context.Context, userID uint, uid string) (*models.CollectionInvitation, error)
	GetOutgoing(ctx context.Context, fromUserID uint, uid string) (*models.CollectionInvitation, error)
	ListIncoming(ctx context.Context, userID uint) ([]models.CollectionInvitation, error)
	ListOutgoing(ctx context.Context, fromUserID uint, collectionID uint) ([]models.CollectionInvitation, error)
	Delete(ctx context.Context, id uint) error
}

type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository returns a new InvitationRepository implementation.
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) GetIncoming(ctx context.Context, userID uint, uid string) (*models.CollectionInvitation, error) {
	var invitation models.CollectionInvitation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND uid = ?", userID, uid).
		Preload("Collection").
		Preload("FromUser").
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Invitation")
		}
		return nil, models.NewInternalError(err)
	}
	return &invitation, nil
}

func (r *invitationRepository) GetOutgoing(ctx context.Context, fromUserID uint, uid string) (*models.CollectionInvitation, error) {
	var invitation models.CollectionInvitation
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND uid = ?", fromUserID, uid).
		Preload("Collection").
		Preload("User").
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Invitation")
		}
		return nil, models.NewInternalError(err)
	}
	return &invitation, nil
}

func (r *invitationRepository) ListIncoming(ctx context.Context, userID uint) ([]models.CollectionInvitation, error) {
	var invitations []models.CollectionInvitation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Collection").
		Preload("FromUser").
		Order("id ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return invitations, nil
}

func (r *invitationRepository) ListOutgoing(ctx context.Context, fromUserID uint, collectionID uint) ([]models.CollectionInvitation, error) {
	var invitations []models.CollectionInvitation
	q := r.db.WithContext(ctx).
		Where("from_user_id = ?", fromUserID).
		Preload("Collection").
		Preload("User").
		Order("id ASC")
	if collectionID != 0 {
		q = q.Where("collection_id = ?", collectionID)
	}
	if err := q.Find(&invitations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return invitations, nil
}

func (r *invitationRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.CollectionInvitation{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
