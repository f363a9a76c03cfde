package member

import (
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

type VerificationStatus string

const (
	StatusNotVerified VerificationStatus = "not_verified"
	StatusPending     VerificationStatus = "pending"
	StatusVerified    VerificationStatus = "verified"
	StatusRejected    VerificationStatus = "rejected"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusNotVerified, StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "member not found")
	ErrAlreadyRegistered = apperr.New(apperr.KindInvariant, "member already registered")
	ErrNotRegistered     = apperr.New(apperr.KindPrecondition, "member not registered")
	ErrNotVerified       = apperr.New(apperr.KindPrecondition, "member not verified")
	ErrInvalidStatus     = apperr.New(apperr.KindPrecondition, "invalid verification status")
)

// Member is created on registration and only ever mutated through its status.
type Member struct {
	ID           uint64             `gorm:"primaryKey;column:id" json:"-"`
	Address      string             `gorm:"size:42;not null;uniqueIndex:ux_members_address" json:"address"`
	Registered   bool               `gorm:"not null;default:false" json:"registered"`
	Status       VerificationStatus `gorm:"size:16;not null;default:'not_verified'" json:"verification_status"`
	RegisteredBy string             `gorm:"size:42" json:"registered_by"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string { return "members" }
