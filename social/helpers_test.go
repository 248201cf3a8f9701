package social

import (
	"sync"
	"testing"
	"time"

	"github.com/gamegoo/socialgraph/config"
	"github.com/gamegoo/socialgraph/event"
	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Emit(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) ofType(t event.Type) []event.Event {
	var out []event.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testSocialConfig() config.SocialConfig {
	return config.SocialConfig{
		TxTimeout:       5 * time.Second,
		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger, _ := zap.NewDevelopment()
	rec := &recorder{}
	cfg := testSocialConfig()
	svc := NewService(NewStore(db, cfg.TxTimeout), NewDBDirectory(db), rec, cfg, logger)
	return &fixture{svc: svc, db: db, events: rec}
}

func (f *fixture) members(t *testing.T, nicknames ...string) []int64 {
	t.Helper()
	return testutil.CreateMembers(t, f.db, nicknames...)
}

func (f *fixture) countFriendRows(t *testing.T, a, b int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Friend{}).
		Where("(from_member_id = ? AND to_member_id = ?) OR (from_member_id = ? AND to_member_id = ?)", a, b, b, a).
		Count(&n).Error)
	return n
}

func (f *fixture) request(t *testing.T, id int64) model.FriendRequest {
	t.Helper()
	var r model.FriendRequest
	require.NoError(t, f.db.First(&r, id).Error)
	return r
}

// befriend runs the full send/accept flow between a and b.
func (f *fixture) befriend(t *testing.T, a, b int64) {
	t.Helper()
	ctx := t.Context()
	sum, err := f.svc.SendFriendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.svc.AcceptFriendRequest(ctx, b, sum.RequestID)
	require.NoError(t, err)
}
