// Package stoken implements the sync-token ledger and the incremental
// sync cursor protocol built on top of it.
package stoken

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidCursor is returned when a client-supplied cursor does not
// resolve to a previously issued stoken.
var ErrInvalidCursor = errors.New("invalid sync cursor")

// Stoken is one entry in the global sync-token ledger. The autoincrement
// primary key is the sequence: it is allocated by the database, so ordering
// holds across concurrent server instances. Only the UID ever leaves the
// server; the ordinal ID is an internal detail.
type Stoken struct {
	ID  uint   `gorm:"primaryKey" json:"-"`
	UID string `gorm:"size:44;not null;uniqueIndex" json:"uid"`
}

// TableName specifies the table name for GORM.
func (Stoken) TableName() string {
	return "stokens"
}

// NewUID generates a fresh opaque stoken identifier.
func NewUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Ledger issues stokens. Issuance is serialized by the database sequence
// backing the stokens table, not by in-process state.
type Ledger struct{}

// NewLedger returns a new Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Issue mints a new stoken inside tx. The stoken only exists once tx
// commits; callers must stamp it onto the record mutated in the same
// transaction.
func (l *Ledger) Issue(tx *gorm.DB) (*Stoken, error) {
	st := &Stoken{UID: NewUID()}
	if err := tx.Create(st).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// Resolve maps a client-supplied cursor UID back to the ledger entry.
// An unknown or malformed UID yields ErrInvalidCursor.
func (l *Ledger) Resolve(db *gorm.DB, uid string) (*Stoken, error) {
	if uid == "" {
		return nil, ErrInvalidCursor
	}
	var st Stoken
	if err := db.Where("uid = ?", uid).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCursor
		}
		return nil, err
	}
	return &st, nil
}
