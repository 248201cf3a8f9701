package model

import (
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a FriendRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestRejected RequestStatus = "REJECTED"
	RequestCanceled RequestStatus = "CANCELED"
	RequestExpired  RequestStatus = "EXPIRED"
)

// Terminal reports whether no further transition of the row is allowed.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

// Friend is one direction of a confirmed friendship. Every friendship is
// stored as two rows, A->B and B->A, written and removed together.
type Friend struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FromMemberID int64     `gorm:"uniqueIndex:uidx_friend_pair,priority:1;not null" json:"from_member_id"`
	ToMemberID   int64     `gorm:"uniqueIndex:uidx_friend_pair,priority:2;index:idx_friend_to;not null" json:"to_member_id"`
	Liked        bool      `gorm:"default:false" json:"liked"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FriendRequest is a request from one member to befriend another.
// PendingKey holds the unordered pair key while the request is PENDING and is
// NULL otherwise; its unique index allows one pending request per pair.
type FriendRequest struct {
	ID           int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	FromMemberID int64         `gorm:"index:idx_request_from;not null" json:"from_member_id"`
	ToMemberID   int64         `gorm:"index:idx_request_to;not null" json:"to_member_id"`
	Status       RequestStatus `gorm:"size:16;index;not null" json:"status"`
	PendingKey   *string       `gorm:"uniqueIndex:uidx_request_pending;size:48" json:"-"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt   *time.Time    `json:"resolved_at"`
}

// Block is a unilateral block. Unblocking sets Deleted; blocking again
// revives the same row.
type Block struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BlockerMemberID int64     `gorm:"uniqueIndex:uidx_block_pair,priority:1;not null" json:"blocker_member_id"`
	BlockedMemberID int64     `gorm:"uniqueIndex:uidx_block_pair,priority:2;index:idx_block_blocked;not null" json:"blocked_member_id"`
	Deleted         bool      `gorm:"default:false;not null" json:"deleted"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RelationLock is the per-pair lock row taken FOR UPDATE by every
// relationship mutation.
type RelationLock struct {
	PairKey   string    `gorm:"primaryKey;size:48" json:"pair_key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PairKey returns the unordered key "min:max" for two member IDs.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
