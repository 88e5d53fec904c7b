package models

import "time"

// CollectionInvitation is a pending offer of membership. SignedEncryptionKey
// carries the collection key sealed for the invitee; the server never opens
// it. Accepting an invitation atomically creates the CollectionMember and
// deletes the invitation.
type CollectionInvitation struct {
	ID                  uint        `gorm:"primaryKey" json:"-"`
	UID                 string      `gorm:"size:44;not null;uniqueIndex" json:"uid"`
	CollectionID        uint        `gorm:"not null;uniqueIndex:idx_invitations_collection_user" json:"-"`
	Collection          *Collection `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"-"`
	FromUserID          uint        `gorm:"not null" json:"-"`
	FromUser            *User       `gorm:"foreignKey:FromUserID" json:"-"`
	UserID              uint        `gorm:"not null;uniqueIndex:idx_invitations_collection_user" json:"-"`
	User                *User       `gorm:"foreignKey:UserID" json:"-"`
	AccessLevel         AccessLevel `gorm:"type:varchar(20);not null;default:'read_only'" json:"access_level"`
	SignedEncryptionKey []byte      `json:"signed_encryption_key"`
	CreatedAt           time.Time   `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (CollectionInvitation) TableName() string {
	return "collection_invitations"
}
