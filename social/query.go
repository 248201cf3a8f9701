package social

import (
	"context"
	"strings"
	"time"

	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/pagination"
	"gorm.io/gorm"
)

// FindFriendsByCursor pages member's friends ordered by friend member ID.
// cursor is an exclusive lower bound: the NextCursor of the previous page, or
// nil for the first page.
func (svc *Service) FindFriendsByCursor(ctx context.Context, member int64, cursor *int64, pageSize int) (_ pagination.Page[FriendSummary], err error) {
	defer svc.observe("list_friends", time.Now(), &err)
	if err := checkMember(member); err != nil {
		return pagination.Page[FriendSummary]{}, err
	}
	size := pagination.Size(pageSize, svc.cfg.DefaultPageSize, svc.cfg.MaxPageSize)

	var rows []FriendSummary
	err = svc.store.Read(ctx, func(db *gorm.DB) error {
		q := friendsOf(db, member)
		if cursor != nil {
			q = q.Where("f.to_member_id > ?", *cursor)
		}
		return q.Order("f.to_member_id ASC").Limit(size + 1).Scan(&rows).Error
	})
	if err != nil {
		return pagination.Page[FriendSummary]{}, err
	}
	return pagination.Cut(rows, size, func(f FriendSummary) int64 { return f.MemberID }), nil
}

// FindFriendsByQueryString returns member's friends whose nickname contains
// text, ignoring case, ordered by nickname.
func (svc *Service) FindFriendsByQueryString(ctx context.Context, member int64, text string) (_ []FriendSummary, err error) {
	defer svc.observe("search_friends", time.Now(), &err)
	if err := checkMember(member); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	pattern := "%" + escapeLike(model.FoldNickname(text)) + "%"
	rows := []FriendSummary{}
	err = svc.store.Read(ctx, func(db *gorm.DB) error {
		return friendsOf(db, member).
			Where("m.nickname_fold LIKE ? ESCAPE '!'", pattern).
			Order("m.nickname ASC, f.to_member_id ASC").
			Limit(svc.cfg.MaxPageSize).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IsFriend reports whether a and b are friends.
func (svc *Service) IsFriend(ctx context.Context, a, b int64) (bool, error) {
	if err := checkPair(a, b); err != nil {
		return false, err
	}
	var ok bool
	err := svc.store.Read(ctx, func(db *gorm.DB) error {
		var err error
		ok, err = friendEdgeExists(db, a, b)
		return err
	})
	return ok, err
}

// IsFriendBatch reports friendship between member and each of targets using
// one query. Every target appears in the result.
func (svc *Service) IsFriendBatch(ctx context.Context, member int64, targets []int64) (map[int64]bool, error) {
	if err := checkMember(member); err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(targets))
	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		if err := checkMember(t); err != nil {
			return nil, err
		}
		if _, dup := out[t]; dup {
			continue
		}
		out[t] = false
		ids = append(ids, t)
	}
	if len(ids) == 0 {
		return out, nil
	}

	var friends []int64
	err := svc.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&model.Friend{}).
			Where("from_member_id = ? AND to_member_id IN ?", member, ids).
			Pluck("to_member_id", &friends).Error
	})
	if err != nil {
		return nil, err
	}
	for _, id := range friends {
		out[id] = true
	}
	return out, nil
}

func friendsOf(db *gorm.DB, member int64) *gorm.DB {
	return db.Table("friends AS f").
		Select("f.to_member_id AS member_id, COALESCE(m.nickname, '') AS nickname, f.liked AS liked, f.created_at AS created_at").
		Joins("LEFT JOIN members m ON m.id = f.to_member_id").
		Where("f.from_member_id = ?", member)
}

// escapeLike escapes LIKE wildcards with '!' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
