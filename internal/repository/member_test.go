package repository

import (
	"context"
	"testing"

	"coffer/internal/models"
	"coffer/internal/stoken"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&stoken.Stoken{},
		&models.User{},
		&models.Collection{},
		&models.CollectionMember{},
	))
	return db
}

func TestMemberGetByUsername(t *testing.T) {
	t.Parallel()

	db := setupRepoTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	owner := models.User{Username: "owner", Email: "o@example.com", Password: "pw"}
	member := models.User{Username: "bob", Email: "b@example.com", Password: "pw"}
	outsider := models.User{Username: "carol", Email: "c@example.com", Password: "pw"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&member).Error)
	require.NoError(t, db.Create(&outsider).Error)

	col := models.Collection{UID: stoken.NewUID(), OwnerID: owner.ID}
	require.NoError(t, db.Create(&col).Error)
	require.NoError(t, db.Create(&models.CollectionMember{
		CollectionID: col.ID, UserID: member.ID, AccessLevel: models.AccessLevelReadOnly,
	}).Error)

	// Lookup is case-insensitive.
	got, err := repo.GetByUsername(ctx, col.ID, "BOB")
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.UserID)
	require.NotNil(t, got.User)
	assert.Equal(t, "bob", got.User.Username)

	// A user that exists but is not a member and a user that does not
	// exist at all yield the identical error.
	_, errOutsider := repo.GetByUsername(ctx, col.ID, "carol")
	_, errGhost := repo.GetByUsername(ctx, col.ID, "ghost")
	require.Error(t, errOutsider)
	require.Error(t, errGhost)
	assert.Equal(t, errGhost.Error(), errOutsider.Error())
}

func TestUserGetByUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	db := setupRepoTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{
		Username: "Alice", Email: "a@example.com", Password: "pw",
	}))

	got, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username, "stored normalized")
}

func TestCollectionListUIDsForUser(t *testing.T) {
	t.Parallel()

	db := setupRepoTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	user := models.User{Username: "u", Email: "u@example.com", Password: "pw"}
	other := models.User{Username: "v", Email: "v@example.com", Password: "pw"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&other).Error)

	mine := models.Collection{UID: stoken.NewUID(), OwnerID: user.ID}
	theirs := models.Collection{UID: stoken.NewUID(), OwnerID: other.ID}
	require.NoError(t, db.Create(&mine).Error)
	require.NoError(t, db.Create(&theirs).Error)
	require.NoError(t, db.Create(&models.CollectionMember{
		CollectionID: mine.ID, UserID: user.ID, AccessLevel: models.AccessLevelAdmin,
	}).Error)

	uids, err := repo.ListUIDsForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mine.UID}, uids, "only collections with a membership row")
}
