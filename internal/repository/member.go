package repository

import (
	"context"
	"errors"

	"coffer/internal/models"
	"coffer/internal/observability"

	"gorm.io/gorm"
)

// MemberRepository defines persistence operations for collection memberships.
type MemberRepository interface {
	// GetByUsername looks up a member of the collection by case-insensitive
	// username. A username that does not exist and a username that exists
	// but is not a member produce the identical NotFound, so membership
	// cannot be probed by guessing.
	GetByUsername(ctx context.Context, collectionID uint, username string) (*models.CollectionMember, error)
	GetByUserID(ctx context.Context, collectionID, userID uint) (*models.CollectionMember, error)
	Create(ctx context.Context, member *models.CollectionMember) error
	// UpdateAccess persists a new access level together with the stoken
	// stamped for this mutation.
	UpdateAccess(ctx context.Context, member *models.CollectionMember, level models.AccessLevel, stokenID uint) error
	// Delete removes the membership outright. No tombstone remains; sync
	// consumers observe the loss through the collection-level stoken.
	Delete(ctx context.Context, member *models.CollectionMember) error
	// WithTx returns a copy of the repository bound to the given transaction
	// scope, so lookups and the mutation they guard share one unit of work.
	WithTx(tx *gorm.DB) MemberRepository
}

type memberRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMemberRepository returns a new MemberRepository implementation.
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{
		db:  db,
		log: observability.NewRepoLogger("collection_members"),
	}
}

func (r *memberRepository) WithTx(tx *gorm.DB) MemberRepository {
	return &memberRepository{db: tx, log: r.log}
}

func (r *memberRepository) GetByUsername(ctx context.Context, collectionID uint, username string) (*models.CollectionMember, error) {
	var member models.CollectionMember
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = collection_members.user_id").
		Where("collection_members.collection_id = ? AND users.username = ?",
			collectionID, models.NormalizeUsername(username)).
		Preload("User").
		Preload("Stoken").
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Member")
		}
		return nil, models.NewInternalError(err)
	}
	return &member, nil
}

func (r *memberRepository) Create(ctx context.Context, member *models.CollectionMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogMutation(ctx, "create", map[string]interface{}{
		"collection_id": member.CollectionID,
		"user_id":       member.UserID,
		"access_level":  member.AccessLevel,
	})
	return nil
}

func (r *memberRepository) UpdateAccess(ctx context.Context, member *models.CollectionMember, level models.AccessLevel, stokenID uint) error {
	err := r.db.WithContext(ctx).
		Model(member).
		Updates(map[string]interface{}{
			"access_level": level,
			"stoken_id":    stokenID,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogMutation(ctx, "update", map[string]interface{}{
		"collection_id": member.CollectionID,
		"user_id":       member.UserID,
		"access_level":  level,
	})
	return nil
}

func (r *memberRepository) Delete(ctx context.Context, member *models.CollectionMember) error {
	if err := r.db.WithContext(ctx).Delete(member).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogMutation(ctx, "delete", map[string]interface{}{
		"collection_id": member.CollectionID,
		"user_id":       member.UserID,
	})
	return nil
}

func (r *memberRepository) GetByUserID(ctx context.Context, collectionID, userID uint) (*models.CollectionMember, error) {
	var member models.CollectionMember
	err := r.db.WithContext(ctx).
		Where("collection_id = ? AND user_id = ?", collectionID, userID).
		Preload("User").
		Preload("Stoken").
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Member")
		}
		return nil, models.NewInternalError(err)
	}
	return &member, nil
}
