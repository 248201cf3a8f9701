package social

import (
	"context"
	"errors"
	"time"

	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BlockMember blocks target on behalf of blocker. Blocking an already blocked
// member is a no-op. A new block rejects any pending request between the two
// and removes their friendship.
func (svc *Service) BlockMember(ctx context.Context, blocker, target int64) (err error) {
	defer svc.observe("block", time.Now(), &err)
	if err := checkPair(blocker, target); err != nil {
		return err
	}
	if blocker == target {
		return ErrSelfBlock
	}

	var created, rejected, severed bool
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		if err := LockPair(tx, blocker, target); err != nil {
			return err
		}
		var b model.Block
		err := tx.Where("blocker_member_id = ? AND blocked_member_id = ?", blocker, target).Take(&b).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			b = model.Block{BlockerMemberID: blocker, BlockedMemberID: target}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case !b.Deleted:
			return nil
		default:
			if err := tx.Model(&b).Update("deleted", false).Error; err != nil {
				return err
			}
		}
		created = true

		res := tx.Model(&model.FriendRequest{}).
			Where("pending_key = ?", model.PairKey(blocker, target)).
			Updates(map[string]interface{}{
				"status":      model.RequestRejected,
				"pending_key": nil,
				"resolved_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		rejected = res.RowsAffected > 0

		n, err := deleteFriendship(tx, blocker, target)
		if err != nil {
			return err
		}
		severed = n > 0
		return nil
	})
	if err != nil {
		return err
	}
	if created {
		svc.logger.Info("member blocked",
			zap.Int64("member_id", blocker),
			zap.Int64("target_id", target),
			zap.Bool("request_rejected", rejected),
			zap.Bool("friendship_removed", severed))
	}
	return nil
}

// UnblockMember lifts blocker's block on target.
func (svc *Service) UnblockMember(ctx context.Context, blocker, target int64) (err error) {
	defer svc.observe("unblock", time.Now(), &err)
	if err := checkPair(blocker, target); err != nil {
		return err
	}
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		if err := LockPair(tx, blocker, target); err != nil {
			return err
		}
		res := tx.Model(&model.Block{}).
			Where("blocker_member_id = ? AND blocked_member_id = ? AND deleted = ?", blocker, target, false).
			Update("deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBlockNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.logger.Info("member unblocked", zap.Int64("member_id", blocker), zap.Int64("target_id", target))
	return nil
}

// IsBlocked reports whether blocker currently blocks target.
func (svc *Service) IsBlocked(ctx context.Context, blocker, target int64) (bool, error) {
	if err := checkPair(blocker, target); err != nil {
		return false, err
	}
	var n int64
	err := svc.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&model.Block{}).
			Where("blocker_member_id = ? AND blocked_member_id = ? AND deleted = ?", blocker, target, false).
			Count(&n).Error
	})
	return n > 0, err
}

// IsBlockedEitherDirection reports whether a or b blocks the other.
func (svc *Service) IsBlockedEitherDirection(ctx context.Context, a, b int64) (bool, error) {
	if err := checkPair(a, b); err != nil {
		return false, err
	}
	var blocked bool
	err := svc.store.Read(ctx, func(db *gorm.DB) error {
		var err error
		blocked, err = blockedEither(db, a, b)
		return err
	})
	return blocked, err
}

// ListBlockedMembers pages blocker's active blocks ordered by blocked member ID.
func (svc *Service) ListBlockedMembers(ctx context.Context, blocker int64, cursor *int64, size int) (_ pagination.Page[BlockSummary], err error) {
	defer svc.observe("list_blocks", time.Now(), &err)
	if err := checkMember(blocker); err != nil {
		return pagination.Page[BlockSummary]{}, err
	}
	size = pagination.Size(size, svc.cfg.DefaultPageSize, svc.cfg.MaxPageSize)

	var rows []BlockSummary
	err = svc.store.Read(ctx, func(db *gorm.DB) error {
		q := db.Table("blocks AS b").
			Select("b.blocked_member_id AS member_id, COALESCE(m.nickname, '') AS nickname, b.updated_at AS blocked_at").
			Joins("LEFT JOIN members m ON m.id = b.blocked_member_id").
			Where("b.blocker_member_id = ? AND b.deleted = ?", blocker, false)
		if cursor != nil {
			q = q.Where("b.blocked_member_id > ?", *cursor)
		}
		return q.Order("b.blocked_member_id ASC").Limit(size + 1).Scan(&rows).Error
	})
	if err != nil {
		return pagination.Page[BlockSummary]{}, err
	}
	return pagination.Cut(rows, size, func(b BlockSummary) int64 { return b.MemberID }), nil
}

func blockedEither(db *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := db.Model(&model.Block{}).
		Where("((blocker_member_id = ? AND blocked_member_id = ?) OR (blocker_member_id = ? AND blocked_member_id = ?)) AND deleted = ?",
			a, b, b, a, false).
		Count(&n).Error
	return n > 0, err
}
