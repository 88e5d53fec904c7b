package service

import (
	"context"
	"errors"

	"coffer/internal/access"
	"coffer/internal/models"
	"coffer/internal/observability"
	"coffer/internal/repository"
	"coffer/internal/stoken"

	"gorm.io/gorm"
)

// InvitationService manages membership offers: admins extend invitations
// carrying a sealed collection key; invitees accept (creating the stamped
// membership) or decline.
type InvitationService struct {
	db          *gorm.DB
	ledger      *stoken.Ledger
	authz       *access.Authorizer
	collections repository.CollectionRepository
	members     repository.MemberRepository
	invitations repository.InvitationRepository
	users       repository.UserRepository
	notifier    SyncNotifier
}

// NewInvitationService returns a new InvitationService.
func NewInvitationService(db *gorm.DB, ledger *stoken.Ledger, authz *access.Authorizer, collections repository.CollectionRepository, members repository.MemberRepository, invitations repository.InvitationRepository, users repository.UserRepository, notifier SyncNotifier) *InvitationService {
	return &InvitationService{
		db:          db,
		ledger:      ledger,
		authz:       authz,
		collections: collections,
		members:     members,
		invitations: invitations,
		users:       users,
		notifier:    notifier,
	}
}

// CreateOutgoing extends an invitation to username at the proposed access
// level. The caller must administer the collection. Inviting yourself is a
// validation error; inviting an existing member or re-inviting is a conflict.
func (s *InvitationService) CreateOutgoing(ctx context.Context, callerID uint, collectionUID, username string, level models.AccessLevel, signedKey []byte) (*models.CollectionInvitation, error) {
	if !level.Valid() {
		return nil, models.NewValidationError("unrecognized access level")
	}
	collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
	if err != nil {
		return nil, err
	}
	admin, err := s.authz.IsCollectionAdmin(ctx, callerID, collection)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !admin {
		return nil, models.NewForbiddenError("admin access required")
	}

	invitee, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if invitee.ID == callerID {
		return nil, models.NewValidationError("cannot invite yourself")
	}

	if _, err := s.members.GetByUserID(ctx, collection.ID, invitee.ID); err == nil {
		return nil, models.NewConflictError("user is already a member")
	} else if !errIsNotFound(err) {
		return nil, err
	}

	invitation := &models.CollectionInvitation{
		UID:                 stoken.NewUID(),
		CollectionID:        collection.ID,
		FromUserID:          callerID,
		UserID:              invitee.ID,
		AccessLevel:         level,
		SignedEncryptionKey: signedKey,
	}
	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("invitation already exists")
		}
		return nil, models.NewInternalError(err)
	}
	invitation.User = invitee
	return invitation, nil
}

// ListOutgoing returns invitations the caller has extended, optionally
// scoped to one collection.
func (s *InvitationService) ListOutgoing(ctx context.Context, callerID uint, collectionUID string) ([]models.CollectionInvitation, error) {
	var collectionID uint
	if collectionUID != "" {
		collection, err := s.collections.GetVisible(ctx, callerID, collectionUID)
		if err != nil {
			return nil, err
		}
		collectionID = collection.ID
	}
	return s.invitations.ListOutgoing(ctx, callerID, collectionID)
}

// DeleteOutgoing withdraws an invitation the caller extended.
func (s *InvitationService) DeleteOutgoing(ctx context.Context, callerID uint, uid string) error {
	invitation, err := s.invitations.GetOutgoing(ctx, callerID, uid)
	if err != nil {
		return err
	}
	return s.invitations.Delete(ctx, invitation.ID)
}

// ListIncoming returns invitations addressed to the caller.
func (s *InvitationService) ListIncoming(ctx context.Context, callerID uint) ([]models.CollectionInvitation, error) {
	return s.invitations.ListIncoming(ctx, callerID)
}

// Accept turns an invitation into a membership in a single transaction:
// the member record is created at the proposed level with a freshly minted
// stoken, the invitation is deleted, and the collection-level stoken
// advances.
func (s *InvitationService) Accept(ctx context.Context, callerID uint, uid string) error {
	invitation, err := s.invitations.GetIncoming(ctx, callerID, uid)
	if err != nil {
		return err
	}
	collection := invitation.Collection

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		st, err := s.ledger.Issue(tx)
		if err != nil {
			return models.NewInternalError(err)
		}
		member := &models.CollectionMember{
			CollectionID: invitation.CollectionID,
			UserID:       callerID,
			AccessLevel:  invitation.AccessLevel,
			StokenID:     &st.ID,
		}
		if err := members.Create(ctx, member); err != nil {
			return err
		}

		if err := tx.Delete(&models.CollectionInvitation{}, invitation.ID).Error; err != nil {
			return models.NewInternalError(err)
		}

		colStoken, err := advanceCollectionStoken(tx, s.ledger, collection)
		if err != nil {
			return err
		}
		collection.Stoken = colStoken
		return nil
	})
	if err != nil {
		return err
	}

	observability.StokensIssued.WithLabelValues("member").Inc()
	observability.MembershipMutations.WithLabelValues("accept_invitation").Inc()

	if s.notifier != nil && collection != nil {
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

// Decline removes an invitation addressed to the caller.
func (s *InvitationService) Decline(ctx context.Context, callerID uint, uid string) error {
	invitation, err := s.invitations.GetIncoming(ctx, callerID, uid)
	if err != nil {
		return err
	}
	return s.invitations.Delete(ctx, invitation.ID)
}
