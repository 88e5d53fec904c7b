package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"coffer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemUID(i int) string {
	return fmt.Sprintf("item%028d", i)
}

func TestBatchPut_CreatesAndStamps(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	col := f.createCollection(t, owner.ID)
	colStokenBefore := f.collectionStokenID(t, col.ID)

	inputs := []ItemInput{
		{UID: itemUID(1), Content: []byte("ciphertext-1")},
		{UID: itemUID(2), Content: []byte("ciphertext-2")},
	}
	require.NoError(t, f.items.BatchPut(ctx, owner.ID, col.UID, inputs))

	var items []models.CollectionItem
	require.NoError(t, f.db.Where("collection_id = ?", col.ID).Order("id ASC").Find(&items).Error)
	require.Len(t, items, 2)
	for i, it := range items {
		assert.Equal(t, inputs[i].UID, it.UID)
		assert.True(t, bytes.Equal(inputs[i].Content, it.Content))
		require.NotNil(t, it.StokenID, "every stored item carries a stoken")
	}
	assert.NotEqual(t, items[0].StokenID, items[1].StokenID, "each item gets its own stoken")

	assert.NotEqual(t, colStokenBefore, f.collectionStokenID(t, col.ID),
		"item writes advance the collection-level stoken")
	assert.Equal(t, 1, f.notifier.count())
}

func TestBatchPut_UpsertReStamps(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	col := f.createCollection(t, owner.ID)

	require.NoError(t, f.items.BatchPut(ctx, owner.ID, col.UID,
		[]ItemInput{{UID: itemUID(1), Content: []byte("v1")}}))

	var before models.CollectionItem
	require.NoError(t, f.db.Where("collection_id = ? AND uid = ?", col.ID, itemUID(1)).First(&before).Error)

	require.NoError(t, f.items.BatchPut(ctx, owner.ID, col.UID,
		[]ItemInput{{UID: itemUID(1), Content: []byte("v2")}}))

	var after models.CollectionItem
	require.NoError(t, f.db.Where("collection_id = ? AND uid = ?", col.ID, itemUID(1)).First(&after).Error)
	assert.Equal(t, before.ID, after.ID, "same row updated, not duplicated")
	assert.Equal(t, []byte("v2"), after.Content)
	assert.NotEqual(t, *before.StokenID, *after.StokenID, "rewrite must re-stamp")
}

func TestBatchPut_AccessControl(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	reader := f.createUser(t, "reader")
	stranger := f.createUser(t, "stranger")
	col := f.createCollection(t, owner.ID)
	f.addMember(t, col.ID, reader.ID, models.AccessLevelReadOnly)

	write := []ItemInput{{UID: itemUID(1), Content: []byte("x")}}

	err := f.items.BatchPut(ctx, reader.ID, col.UID, write)
	assert.Equal(t, "permission_denied", appErrCode(t, err))

	err = f.items.BatchPut(ctx, stranger.ID, col.UID, write)
	assert.Equal(t, "not_found", appErrCode(t, err))
}

func TestBatchPut_Validation(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	col := f.createCollection(t, owner.ID)

	err := f.items.BatchPut(ctx, owner.ID, col.UID, nil)
	assert.Equal(t, "validation_error", appErrCode(t, err))

	err = f.items.BatchPut(ctx, owner.ID, col.UID, []ItemInput{{UID: "", Content: []byte("x")}})
	assert.Equal(t, "validation_error", appErrCode(t, err))
}

func TestItemList_IncrementalSync(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	reader := f.createUser(t, "reader")
	col := f.createCollection(t, owner.ID)
	f.addMember(t, col.ID, reader.ID, models.AccessLevelReadOnly)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.items.BatchPut(ctx, owner.ID, col.UID,
			[]ItemInput{{UID: itemUID(i), Content: []byte{byte(i)}}}))
	}

	// Any member may read; page to completion.
	seen := 0
	cursor := ""
	for {
		page, newCursor, done, err := f.items.List(ctx, reader.ID, col.UID, cursor, 2)
		require.NoError(t, err)
		seen += len(page)
		cursor = newCursor
		if done {
			break
		}
	}
	assert.Equal(t, 5, seen)

	// New writes after the cursor come back on the next sync.
	require.NoError(t, f.items.BatchPut(ctx, owner.ID, col.UID,
		[]ItemInput{{UID: itemUID(99), Content: []byte("late")}}))
	page, _, done, err := f.items.List(ctx, reader.ID, col.UID, cursor, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, itemUID(99), page[0].UID)
	assert.True(t, done)
}

func TestItemList_InvalidCursor(t *testing.T) {
	t.Parallel()

	f := setupFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner")
	col := f.createCollection(t, owner.ID)

	_, _, _, err := f.items.List(ctx, owner.ID, col.UID, "not-a-cursor", 0)
	assert.Equal(t, "validation_error", appErrCode(t, err))
}
