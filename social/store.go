package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamegoo/socialgraph/model"
	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns persistence of friends, friend requests and blocks.
// Every mutation runs through Tx; reads go through Read.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewStore wraps db. timeout bounds each transaction and read; zero means 5s.
func NewStore(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Tx runs fn in a single transaction bounded by the store timeout.
// Errors from fn roll the transaction back. Domain errors pass through
// unchanged; driver errors are classified into the error taxonomy.
func (s *Store) Tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(fn)
	return classify(ctx, err)
}

// Read runs fn against a session bounded by the store timeout.
func (s *Store) Read(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return classify(ctx, fn(s.db.WithContext(ctx)))
}

// LockPair takes the row lock serializing all relationship changes between
// a and b. The row is created on first use; later callers block on
// SELECT ... FOR UPDATE until the holder commits. SQLite ignores the locking
// clause and serializes writers on its own.
func LockPair(tx *gorm.DB, a, b int64) error {
	key := model.PairKey(a, b)
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RelationLock{PairKey: key}).Error; err != nil {
		return err
	}
	var lock model.RelationLock
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pair_key = ?", key).
		Take(&lock).Error
}

// classify maps store errors onto the taxonomy.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var domain *Error
	if errors.As(err, &domain) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return wrap(ErrTransient, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("relationship store: %w", err)
	case isDuplicateKey(err):
		return wrap(ErrConflict, err)
	case isLockContention(err):
		return wrap(ErrTransient, err)
	default:
		return fmt.Errorf("relationship store: %w", err)
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isLockContention(err error) bool {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "driver: bad connection")
}
