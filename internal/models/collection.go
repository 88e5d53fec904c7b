package models

import (
	"time"

	"coffer/internal/stoken"
)

// Collection is a shareable container of encrypted items. The server never
// inspects item payloads; the collection exists for scoping, ordering, and
// access control. StokenID is the collection-level stoken: it advances on
// every item write and every membership revocation so resyncing clients see
// a state change even when the specific record is gone.
type Collection struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	UID       string         `gorm:"size:44;not null;uniqueIndex" json:"uid"`
	OwnerID   uint           `gorm:"not null;index" json:"-"`
	Owner     *User          `gorm:"foreignKey:OwnerID" json:"-"`
	TypeHint  []byte         `json:"collection_type"`
	StokenID  *uint          `json:"-"`
	Stoken    *stoken.Stoken `gorm:"foreignKey:StokenID" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Collection) TableName() string {
	return "collections"
}

// StampedStoken returns the collection-level stoken.
func (c Collection) StampedStoken() *stoken.Stoken {
	return c.Stoken
}

// CollectionItem is one opaque encrypted blob inside a collection. Content
// bytes are ciphertext end to end; the server stores and orders them only.
// StokenID is stamped at the item's most recent mutation.
type CollectionItem struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	CollectionID uint           `gorm:"not null;uniqueIndex:idx_items_collection_uid" json:"-"`
	Collection   *Collection    `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"-"`
	UID          string         `gorm:"size:44;not null;uniqueIndex:idx_items_collection_uid" json:"uid"`
	Content      []byte         `json:"content"`
	StokenID     *uint          `json:"-"`
	Stoken       *stoken.Stoken `gorm:"foreignKey:StokenID" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (CollectionItem) TableName() string {
	return "collection_items"
}

// StampedStoken returns the stoken stamped at the item's last mutation.
func (i CollectionItem) StampedStoken() *stoken.Stoken {
	return i.Stoken
}
