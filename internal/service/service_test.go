package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coffer/internal/access"
	"coffer/internal/models"
	"coffer/internal/repository"
	"coffer/internal/stoken"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeNotifier records sync nudges for assertions.
type fakeNotifier struct {
	mu     sync.Mutex
	nudges []string
}

func (f *fakeNotifier) PublishCollectionChange(_ context.Context, collectionUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudges = append(f.nudges, collectionUID)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nudges)
}

// fixture wires every service against one in-memory database.
type fixture struct {
	db          *gorm.DB
	ledger      *stoken.Ledger
	notifier    *fakeNotifier
	members     *MemberService
	collections *CollectionService
	items       *ItemService
	invitations *InvitationService
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&stoken.Stoken{},
		&models.User{},
		&models.Collection{},
		&models.CollectionItem{},
		&models.CollectionMember{},
		&models.CollectionInvitation{},
	))

	ledger := stoken.NewLedger()
	authz := access.NewAuthorizer(db)
	collectionRepo := repository.NewCollectionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	userRepo := repository.NewUserRepository(db)
	notifier := &fakeNotifier{}

	return &fixture{
		db:       db,
		ledger:   ledger,
		notifier: notifier,
		members: NewMemberService(
			db, ledger, authz, collectionRepo, memberRepo, notifier, 0),
		collections: NewCollectionService(
			db, ledger, collectionRepo, memberRepo, 0),
		items: NewItemService(
			db, ledger, authz, collectionRepo, notifier, 0),
		invitations: NewInvitationService(
			db, ledger, authz, collectionRepo, memberRepo, invitationRepo, userRepo, notifier),
	}
}

func (f *fixture) createUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{
		Username: models.NormalizeUsername(username),
		Email:    username + "@example.com",
		Password: "pw",
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) createCollection(t *testing.T, ownerID uint) *models.Collection {
	t.Helper()
	col, err := f.collections.Create(context.Background(), ownerID, stoken.NewUID(), []byte("test.type"))
	require.NoError(t, err)
	return col
}

func (f *fixture) addMember(t *testing.T, colID, userID uint, level models.AccessLevel) {
	t.Helper()
	var st *stoken.Stoken
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = f.ledger.Issue(tx)
		if err != nil {
			return err
		}
		return tx.Create(&models.CollectionMember{
			CollectionID: colID,
			UserID:       userID,
			AccessLevel:  level,
			StokenID:     &st.ID,
		}).Error
	})
	require.NoError(t, err)
}

func (f *fixture) collectionStokenID(t *testing.T, colID uint) uint {
	t.Helper()
	var col models.Collection
	require.NoError(t, f.db.First(&col, colID).Error)
	require.NotNil(t, col.StokenID)
	return *col.StokenID
}

func (f *fixture) stokenCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&stoken.Stoken{}).Count(&n).Error)
	return n
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}
