package stoken

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Stoken{}))
	return db
}

func TestNewUID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		uid := NewUID()
		assert.Len(t, uid, 32)
		assert.NotContains(t, uid, "-")
		if _, dup := seen[uid]; dup {
			t.Fatalf("duplicate uid generated: %s", uid)
		}
		seen[uid] = struct{}{}
	}
}

func TestLedgerIssue_MonotonicSequence(t *testing.T) {
	t.Parallel()

	db := setupLedgerTestDB(t)
	ledger := NewLedger()

	var last uint
	for i := 0; i < 20; i++ {
		st, err := ledger.Issue(db)
		require.NoError(t, err)
		require.NotZero(t, st.ID)
		assert.Greater(t, st.ID, last, "sequence must strictly increase")
		last = st.ID
	}
}

func TestLedgerIssue_InsideTransaction(t *testing.T) {
	t.Parallel()

	db := setupLedgerTestDB(t)
	ledger := NewLedger()

	var minted *Stoken
	err := db.Transaction(func(tx *gorm.DB) error {
		st, err := ledger.Issue(tx)
		if err != nil {
			return err
		}
		minted = st
		return nil
	})
	require.NoError(t, err)

	resolved, err := ledger.Resolve(db, minted.UID)
	require.NoError(t, err)
	assert.Equal(t, minted.ID, resolved.ID)
}

func TestLedgerIssue_RolledBackStokenDoesNotExist(t *testing.T) {
	t.Parallel()

	db := setupLedgerTestDB(t)
	ledger := NewLedger()

	var uid string
	_ = db.Transaction(func(tx *gorm.DB) error {
		st, err := ledger.Issue(tx)
		if err != nil {
			return err
		}
		uid = st.UID
		return assert.AnError
	})

	_, err := ledger.Resolve(db, uid)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestLedgerResolve_InvalidCursor(t *testing.T) {
	t.Parallel()

	db := setupLedgerTestDB(t)
	ledger := NewLedger()

	_, err := ledger.Resolve(db, "")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = ledger.Resolve(db, strings.Repeat("f", 32))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
