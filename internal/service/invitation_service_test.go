package service

import (
	"context"
	"testing"

	"coffer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationCreate(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	guest := f.createUser(t, "guest")
	col := f.createCollection(t, owner.ID)

	inv, err := f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadWrite, []byte("sealed-key"))
	require.NoError(t, err)
	assert.NotEmpty(t, inv.UID)
	assert.Equal(t, guest.ID, inv.UserID)
	assert.Equal(t, models.AccessLevelReadWrite, inv.AccessLevel)
	assert.Equal(t, []byte("sealed-key"), inv.SignedEncryptionKey)
}

func TestInvitationCreate_Refusals(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	writer := f.createUser(t, "writer")
	f.createUser(t, "guest")
	col := f.createCollection(t, owner.ID)
	f.addMember(t, col.ID, writer.ID, models.AccessLevelReadWrite)

	// Only admins extend invitations.
	_, err := f.invitations.CreateOutgoing(ctx, writer.ID, col.UID, "guest",
		models.AccessLevelReadOnly, nil)
	assert.Equal(t, "permission_denied", appErrCode(t, err))

	// Self-invitation is meaningless.
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "owner",
		models.AccessLevelReadOnly, nil)
	assert.Equal(t, "validation_error", appErrCode(t, err))

	// Existing members cannot be re-invited.
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "writer",
		models.AccessLevelReadOnly, nil)
	assert.Equal(t, "conflict", appErrCode(t, err))

	// Unknown invitee.
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "ghost",
		models.AccessLevelReadOnly, nil)
	assert.Equal(t, "not_found", appErrCode(t, err))

	// Bad level.
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevel("root"), nil)
	assert.Equal(t, "validation_error", appErrCode(t, err))
}

func TestInvitationCreate_DuplicatePendingIsConflict(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	f.createUser(t, "guest")
	col := f.createCollection(t, owner.ID)

	_, err := f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadOnly, nil)
	require.NoError(t, err)

	// The unique (collection, user) index backstops racing duplicates; the
	// violation must come back as a conflict, not an internal error.
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadWrite, nil)
	assert.Equal(t, "conflict", appErrCode(t, err))
}

func TestInvitationAccept(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	guest := f.createUser(t, "guest")
	col := f.createCollection(t, owner.ID)
	colStokenBefore := f.collectionStokenID(t, col.ID)

	inv, err := f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadWrite, []byte("sealed"))
	require.NoError(t, err)

	require.NoError(t, f.invitations.Accept(ctx, guest.ID, inv.UID))

	// Membership materialized at the proposed level, stamped.
	var member models.CollectionMember
	require.NoError(t, f.db.Where("collection_id = ? AND user_id = ?", col.ID, guest.ID).
		First(&member).Error)
	assert.Equal(t, models.AccessLevelReadWrite, member.AccessLevel)
	require.NotNil(t, member.StokenID)

	// Invitation consumed.
	var count int64
	require.NoError(t, f.db.Model(&models.CollectionInvitation{}).
		Where("uid = ?", inv.UID).Count(&count).Error)
	assert.Zero(t, count)

	// Collection stoken advanced so other members resync the change.
	assert.NotEqual(t, colStokenBefore, f.collectionStokenID(t, col.ID))

	// The new member can now read.
	_, _, _, err = f.items.List(ctx, guest.ID, col.UID, "", 0)
	assert.NoError(t, err)
}

func TestInvitationAccept_OnlyInvitee(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	f.createUser(t, "guest")
	interloper := f.createUser(t, "interloper")
	col := f.createCollection(t, owner.ID)

	inv, err := f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadOnly, nil)
	require.NoError(t, err)

	err = f.invitations.Accept(ctx, interloper.ID, inv.UID)
	assert.Equal(t, "not_found", appErrCode(t, err))
}

func TestInvitationDecline(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	guest := f.createUser(t, "guest")
	col := f.createCollection(t, owner.ID)

	inv, err := f.invitations.CreateOutgoing(ctx, owner.ID, col.UID, "guest",
		models.AccessLevelReadOnly, nil)
	require.NoError(t, err)

	require.NoError(t, f.invitations.Decline(ctx, guest.ID, inv.UID))

	// No membership was created.
	var count int64
	require.NoError(t, f.db.Model(&models.CollectionMember{}).
		Where("collection_id = ? AND user_id = ?", col.ID, guest.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInvitationLists(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	guest := f.createUser(t, "guest")
	other := f.createUser(t, "other")
	colA := f.createCollection(t, owner.ID)
	colB := f.createCollection(t, owner.ID)

	invA, err := f.invitations.CreateOutgoing(ctx, owner.ID, colA.UID, "guest",
		models.AccessLevelReadOnly, nil)
	require.NoError(t, err)
	_, err = f.invitations.CreateOutgoing(ctx, owner.ID, colB.UID, "other",
		models.AccessLevelReadOnly, nil)
	require.NoError(t, err)

	out, err := f.invitations.ListOutgoing(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = f.invitations.ListOutgoing(ctx, owner.ID, colA.UID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, invA.UID, out[0].UID)

	in, err := f.invitations.ListIncoming(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, invA.UID, in[0].UID)

	in, err = f.invitations.ListIncoming(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	// Withdraw: the incoming side empties out.
	require.NoError(t, f.invitations.DeleteOutgoing(ctx, owner.ID, invA.UID))
	in, err = f.invitations.ListIncoming(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, in)
}
