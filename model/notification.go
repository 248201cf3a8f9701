package model

import "time"

// Notification is one entry in a member's inbox.
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64     `gorm:"index:idx_notification_member;not null" json:"member_id"`
	ActorID   int64     `gorm:"not null" json:"actor_id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	RequestID int64     `json:"request_id"`
	EventID   string    `gorm:"uniqueIndex;size:36;not null" json:"event_id"`
	IsRead    bool      `gorm:"default:false;not null" json:"is_read"`
	CreatedAt time.Time `gorm:"index:idx_notification_created;autoCreateTime" json:"created_at"`
}
