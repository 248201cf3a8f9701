package social

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gamegoo/socialgraph/event"
	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SendFriendRequest creates a PENDING request from requester to target.
func (svc *Service) SendFriendRequest(ctx context.Context, requester, target int64) (_ RequestSummary, err error) {
	defer svc.observe("send_request", time.Now(), &err)
	if err := checkPair(requester, target); err != nil {
		return RequestSummary{}, err
	}
	if requester == target {
		return RequestSummary{}, ErrSelfRequest
	}
	if err := svc.requireActive(ctx, target); err != nil {
		return RequestSummary{}, err
	}

	key := model.PairKey(requester, target)
	req := &model.FriendRequest{
		FromMemberID: requester,
		ToMemberID:   target,
		Status:       model.RequestPending,
		PendingKey:   &key,
	}
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		if err := LockPair(tx, requester, target); err != nil {
			return err
		}
		blocked, err := blockedEither(tx, requester, target)
		if err != nil {
			return err
		}
		if blocked {
			return ErrBlocked
		}
		friends, err := friendEdgeExists(tx, requester, target)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}
		var pending int64
		if err := tx.Model(&model.FriendRequest{}).Where("pending_key = ?", key).Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateRequest
		}
		if err := tx.Create(req).Error; err != nil {
			if isDuplicateKey(err) {
				return wrap(ErrDuplicateRequest, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return RequestSummary{}, err
	}

	svc.logger.Info("friend request sent",
		zap.Int64("request_id", req.ID),
		zap.Int64("member_id", requester),
		zap.Int64("target_id", target))
	svc.emit(event.New(event.FriendRequestSent, req.ID, requester, target))
	return summarize(req, "friend request sent"), nil
}

// AcceptFriendRequest moves a request addressed to responder to ACCEPTED and
// creates both friend edges in the same transaction.
func (svc *Service) AcceptFriendRequest(ctx context.Context, responder, requestID int64) (_ RequestSummary, err error) {
	defer svc.observe("accept_request", time.Now(), &err)
	req, err := svc.transition(ctx, "to_member_id", responder, requestID, model.RequestAccepted,
		func(tx *gorm.DB, r *model.FriendRequest) error {
			edges := []model.Friend{
				{FromMemberID: r.FromMemberID, ToMemberID: r.ToMemberID},
				{FromMemberID: r.ToMemberID, ToMemberID: r.FromMemberID},
			}
			if err := tx.Create(&edges).Error; err != nil {
				if isDuplicateKey(err) {
					return wrap(ErrAlreadyFriends, err)
				}
				return err
			}
			return nil
		})
	if err != nil {
		return RequestSummary{}, err
	}
	svc.logger.Info("friend request accepted",
		zap.Int64("request_id", req.ID),
		zap.Int64("member_id", responder),
		zap.Int64("requester_id", req.FromMemberID))
	svc.emit(event.New(event.FriendRequestAccepted, req.ID, req.FromMemberID, req.ToMemberID))
	return summarize(req, "friend request accepted"), nil
}

// RejectFriendRequest moves a request addressed to responder to REJECTED.
func (svc *Service) RejectFriendRequest(ctx context.Context, responder, requestID int64) (_ RequestSummary, err error) {
	defer svc.observe("reject_request", time.Now(), &err)
	req, err := svc.transition(ctx, "to_member_id", responder, requestID, model.RequestRejected, nil)
	if err != nil {
		return RequestSummary{}, err
	}
	svc.logger.Info("friend request rejected",
		zap.Int64("request_id", req.ID),
		zap.Int64("member_id", responder),
		zap.Int64("requester_id", req.FromMemberID))
	svc.emit(event.New(event.FriendRequestRejected, req.ID, req.FromMemberID, req.ToMemberID))
	return summarize(req, "friend request rejected"), nil
}

// CancelFriendRequest lets the requester withdraw its own PENDING request.
func (svc *Service) CancelFriendRequest(ctx context.Context, requester, requestID int64) (_ RequestSummary, err error) {
	defer svc.observe("cancel_request", time.Now(), &err)
	req, err := svc.transition(ctx, "from_member_id", requester, requestID, model.RequestCanceled, nil)
	if err != nil {
		return RequestSummary{}, err
	}
	svc.logger.Info("friend request canceled",
		zap.Int64("request_id", req.ID),
		zap.Int64("member_id", requester))
	return summarize(req, "friend request canceled"), nil
}

// transition resolves a PENDING request owned by actor (matched on actorCol)
// to the terminal status to. then runs inside the same transaction after the
// status change.
func (svc *Service) transition(
	ctx context.Context,
	actorCol string,
	actor, requestID int64,
	to model.RequestStatus,
	then func(tx *gorm.DB, r *model.FriendRequest) error,
) (*model.FriendRequest, error) {
	if err := checkMember(actor); err != nil {
		return nil, err
	}
	if err := checkRequestID(requestID); err != nil {
		return nil, err
	}

	var req model.FriendRequest
	err := svc.store.Tx(ctx, func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND "+actorCol+" = ?", requestID, actor).Take(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if err := LockPair(tx, req.FromMemberID, req.ToMemberID); err != nil {
			return err
		}
		now := time.Now()
		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND status = ?", requestID, model.RequestPending).
			Updates(map[string]interface{}{
				"status":      to,
				"pending_key": nil,
				"resolved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequestResolved
		}
		req.Status = to
		req.PendingKey = nil
		req.ResolvedAt = &now
		if then != nil {
			return then(tx, &req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListIncomingRequests pages PENDING requests addressed to member, newest first.
// cursor is the last request ID of the previous page.
func (svc *Service) ListIncomingRequests(ctx context.Context, member int64, cursor *int64, size int) (pagination.Page[RequestSummary], error) {
	return svc.listRequests(ctx, "to_member_id", member, cursor, size)
}

// ListOutgoingRequests pages PENDING requests sent by member, newest first.
func (svc *Service) ListOutgoingRequests(ctx context.Context, member int64, cursor *int64, size int) (pagination.Page[RequestSummary], error) {
	return svc.listRequests(ctx, "from_member_id", member, cursor, size)
}

func (svc *Service) listRequests(ctx context.Context, col string, member int64, cursor *int64, size int) (_ pagination.Page[RequestSummary], err error) {
	defer svc.observe("list_requests", time.Now(), &err)
	if err := checkMember(member); err != nil {
		return pagination.Page[RequestSummary]{}, err
	}
	size = pagination.Size(size, svc.cfg.DefaultPageSize, svc.cfg.MaxPageSize)

	var rows []model.FriendRequest
	err = svc.store.Read(ctx, func(db *gorm.DB) error {
		q := db.Where(col+" = ? AND status = ?", member, model.RequestPending)
		if cursor != nil {
			q = q.Where("id < ?", *cursor)
		}
		return q.Order("id DESC").Limit(size + 1).Find(&rows).Error
	})
	if err != nil {
		return pagination.Page[RequestSummary]{}, err
	}
	out := make([]RequestSummary, len(rows))
	for i := range rows {
		out[i] = summarize(&rows[i], "")
	}
	return pagination.Cut(out, size, func(r RequestSummary) int64 { return r.RequestID }), nil
}

// ExpireStaleRequests moves PENDING requests created more than olderThan ago
// to EXPIRED and returns how many were expired.
func (svc *Service) ExpireStaleRequests(ctx context.Context, olderThan time.Duration) (n int64, err error) {
	defer svc.observe("expire_requests", time.Now(), &err)
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&model.FriendRequest{}).
			Where("status = ? AND created_at < ?", model.RequestPending, cutoff).
			Updates(map[string]interface{}{
				"status":      model.RequestExpired,
				"pending_key": nil,
				"resolved_at": time.Now(),
			})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		svc.logger.Info("expired stale friend requests", zap.Int64("count", n))
	}
	return n, nil
}

// RemoveFriend deletes the friendship between member and friend in both
// directions.
func (svc *Service) RemoveFriend(ctx context.Context, member, friend int64) (err error) {
	defer svc.observe("remove_friend", time.Now(), &err)
	if err := checkPair(member, friend); err != nil {
		return err
	}
	if member == friend {
		return ErrNotFriends
	}
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		if err := LockPair(tx, member, friend); err != nil {
			return err
		}
		n, err := deleteFriendship(tx, member, friend)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFriends
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.logger.Info("friend removed", zap.Int64("member_id", member), zap.Int64("friend_id", friend))
	return nil
}

// PurgeMember removes every relationship a departing member takes part in:
// friend edges are deleted, pending requests are canceled and blocks in both
// directions are lifted. Only pairs whose lock is held are touched.
func (svc *Service) PurgeMember(ctx context.Context, member int64) (err error) {
	defer svc.observe("purge_member", time.Now(), &err)
	if err := checkMember(member); err != nil {
		return err
	}
	err = svc.store.Tx(ctx, func(tx *gorm.DB) error {
		others, err := lockCounterparts(tx, member)
		if err != nil || len(others) == 0 {
			return err
		}

		if err := tx.Where("(from_member_id = ? AND to_member_id IN ?) OR (to_member_id = ? AND from_member_id IN ?)",
			member, others, member, others).
			Delete(&model.Friend{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.FriendRequest{}).
			Where("((from_member_id = ? AND to_member_id IN ?) OR (to_member_id = ? AND from_member_id IN ?)) AND status = ?",
				member, others, member, others, model.RequestPending).
			Updates(map[string]interface{}{
				"status":      model.RequestCanceled,
				"pending_key": nil,
				"resolved_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Block{}).
			Where("((blocker_member_id = ? AND blocked_member_id IN ?) OR (blocked_member_id = ? AND blocker_member_id IN ?)) AND deleted = ?",
				member, others, member, others, false).
			Update("deleted", true).Error
	})
	if err != nil {
		return err
	}
	if inv, ok := svc.members.(interface {
		Invalidate(ctx context.Context, memberID int64) error
	}); ok {
		if err := inv.Invalidate(ctx, member); err != nil {
			svc.logger.Warn("member cache invalidate failed", zap.Int64("member_id", member), zap.Error(err))
		}
	}
	svc.logger.Info("member relationships purged", zap.Int64("member_id", member))
	return nil
}

// counterparts lists every member that shares a friend edge, a pending
// request or an active block with member.
// lockCounterparts takes the pair lock of member with every counterpart it
// has a friend edge, pending request or active block with. Counterparts that
// appear while locks are being taken are picked up by the next read; it
// returns once a read finds nothing new. Each round locks in key order.
func lockCounterparts(tx *gorm.DB, member int64) ([]int64, error) {
	locked := make(map[int64]struct{})
	for {
		others, err := readCounterparts(tx, member)
		if err != nil {
			return nil, err
		}
		var fresh []int64
		for _, o := range others {
			if _, ok := locked[o]; !ok {
				fresh = append(fresh, o)
			}
		}
		if len(fresh) == 0 {
			out := make([]int64, 0, len(locked))
			for o := range locked {
				out = append(out, o)
			}
			sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
			return out, nil
		}
		sort.Slice(fresh, func(i, j int) bool {
			return model.PairKey(member, fresh[i]) < model.PairKey(member, fresh[j])
		})
		for _, o := range fresh {
			if err := LockPair(tx, member, o); err != nil {
				return nil, err
			}
			locked[o] = struct{}{}
		}
	}
}

var readCounterparts = counterparts

func counterparts(tx *gorm.DB, member int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	add := func(ids []int64) {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	var ids []int64
	if err := tx.Model(&model.Friend{}).Where("from_member_id = ?", member).
		Pluck("to_member_id", &ids).Error; err != nil {
		return nil, err
	}
	add(ids)

	var reqs []model.FriendRequest
	if err := tx.Select("from_member_id", "to_member_id").
		Where("(from_member_id = ? OR to_member_id = ?) AND status = ?", member, member, model.RequestPending).
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if r.FromMemberID == member {
			add([]int64{r.ToMemberID})
		} else {
			add([]int64{r.FromMemberID})
		}
	}

	var blocks []model.Block
	if err := tx.Select("blocker_member_id", "blocked_member_id").
		Where("(blocker_member_id = ? OR blocked_member_id = ?) AND deleted = ?", member, member, false).
		Find(&blocks).Error; err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if b.BlockerMemberID == member {
			add([]int64{b.BlockedMemberID})
		} else {
			add([]int64{b.BlockerMemberID})
		}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func friendEdgeExists(tx *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := tx.Model(&model.Friend{}).
		Where("from_member_id = ? AND to_member_id = ?", a, b).
		Count(&n).Error
	return n > 0, err
}

func deleteFriendship(tx *gorm.DB, a, b int64) (int64, error) {
	res := tx.Where("(from_member_id = ? AND to_member_id = ?) OR (from_member_id = ? AND to_member_id = ?)", a, b, b, a).
		Delete(&model.Friend{})
	return res.RowsAffected, res.Error
}
