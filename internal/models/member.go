package models

import (
	"time"

	"coffer/internal/stoken"
)

// AccessLevel defines a member's privilege tier within a collection.
type AccessLevel string

const (
	// AccessLevelReadOnly grants read access only.
	AccessLevelReadOnly AccessLevel = "read_only"
	// AccessLevelReadWrite grants read and write access.
	AccessLevelReadWrite AccessLevel = "read_write"
	// AccessLevelAdmin grants full access including membership management.
	AccessLevelAdmin AccessLevel = "admin"
)

// accessLevelRank orders levels by privilege.
var accessLevelRank = map[AccessLevel]int{
	AccessLevelReadOnly:  0,
	AccessLevelReadWrite: 1,
	AccessLevelAdmin:     2,
}

// Valid reports whether l is a recognized access level.
func (l AccessLevel) Valid() bool {
	_, ok := accessLevelRank[l]
	return ok
}

// AtLeast reports whether l grants at least the privilege of min.
func (l AccessLevel) AtLeast(min AccessLevel) bool {
	return accessLevelRank[l] >= accessLevelRank[min]
}

// CollectionMember ties one user to one collection with an access level.
// At most one active membership exists per (collection, user) pair.
// StokenID is re-stamped on every mutation of this record; revocation is a
// hard delete with no tombstone, observable to sync consumers only through
// the collection-level stoken bump.
type CollectionMember struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	CollectionID uint           `gorm:"not null;uniqueIndex:idx_members_collection_user" json:"-"`
	Collection   *Collection    `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"-"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_members_collection_user" json:"-"`
	User         *User          `gorm:"foreignKey:UserID" json:"-"`
	AccessLevel  AccessLevel    `gorm:"type:varchar(20);not null;default:'read_only'" json:"access_level"`
	StokenID     *uint          `json:"-"`
	Stoken       *stoken.Stoken `gorm:"foreignKey:StokenID" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (CollectionMember) TableName() string {
	return "collection_members"
}

// StampedStoken returns the stoken stamped at the membership's last mutation.
func (m CollectionMember) StampedStoken() *stoken.Stoken {
	return m.Stoken
}
