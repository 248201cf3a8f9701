package model

import (
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// Member status values.
const (
	MemberStatusDeleted = 0
	MemberStatusActive  = 1
)

// Member is a platform member as seen by the social graph. The table is owned
// by the member directory; the relationship engine only reads it.
//
// NicknameFold holds the Unicode case-folded nickname used by friend search.
// It is filled on create and save; writers that update nickname with column
// maps must set it themselves.
type Member struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname     string    `gorm:"index:idx_member_nickname;size:64;not null" json:"nickname"`
	NicknameFold string    `gorm:"index:idx_member_nickname_fold;size:128;not null;default:''" json:"-"`
	Status       int       `gorm:"default:1" json:"status"` // 0=deleted 1=active
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FoldNickname case-folds s for search. The database never folds, so both
// the stored column and the search text go through here.
func FoldNickname(s string) string {
	return cases.Fold().String(s)
}

// BeforeSave keeps NicknameFold in step with Nickname.
func (m *Member) BeforeSave(*gorm.DB) error {
	m.NicknameFold = FoldNickname(m.Nickname)
	return nil
}

// backfillNicknameFold fills nickname_fold for rows written before the
// column existed or by writers that skip the model hooks.
func backfillNicknameFold(db *gorm.DB) error {
	var batch []Member
	return db.Select("id", "nickname").
		Where("nickname_fold = '' AND nickname <> ''").
		FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
			for _, m := range batch {
				if err := tx.Model(&Member{}).Where("id = ?", m.ID).
					UpdateColumn("nickname_fold", FoldNickname(m.Nickname)).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
}
