package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
)

// MemoryFocusSessionRepo はプロセス内メモリを使用したフォーカスセッションリポジトリ。
// テストおよび単体での動作確認に使用する。全操作は単一のmutexで直列化される。
type MemoryFocusSessionRepo struct {
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string]*model.FocusSession
	active   map[string]string // userID -> 非終端セッションID
}

// NewMemoryFocusSessionRepo はMemoryFocusSessionRepoを生成する。
func NewMemoryFocusSessionRepo(c clock.Clock) *MemoryFocusSessionRepo {
	return &MemoryFocusSessionRepo{
		clock:    c,
		sessions: make(map[string]*model.FocusSession),
		active:   make(map[string]string),
	}
}

// FindActiveByUserID はユーザーの非終端セッションを取得する。見つからない場合はnilを返す。
func (r *MemoryFocusSessionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.FocusSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.active[userID]
	if !ok {
		return nil, nil
	}
	return r.sessions[id].Clone(), nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *MemoryFocusSessionRepo) FindByID(ctx context.Context, id string) (*model.FocusSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[id].Clone(), nil
}

// Create はセッションを作成する。
func (r *MemoryFocusSessionRepo) Create(ctx context.Context, session *model.FocusSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createLocked(session)
}

func (r *MemoryFocusSessionRepo) createLocked(session *model.FocusSession) error {
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("failed to create focus session: duplicate id %s", session.ID)
	}
	if !session.Status.IsTerminal() {
		if _, exists := r.active[session.UserID]; exists {
			return fmt.Errorf("failed to create focus session: %w", ErrActiveSessionExists)
		}
	}

	session.LastUpdatedAt = r.clock.Now()
	session.Version = 1

	r.sessions[session.ID] = session.Clone()
	if !session.Status.IsTerminal() {
		r.active[session.UserID] = session.ID
	}
	return nil
}

// Update はversionが一致する場合のみ部分更新を行い、更新後のセッションを返す。
func (r *MemoryFocusSessionRepo) Update(ctx context.Context, id string, expectedVersion int, patch model.FocusSessionPatch) (*model.FocusSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateLocked(id, expectedVersion, patch)
}

func (r *MemoryFocusSessionRepo) updateLocked(id string, expectedVersion int, patch model.FocusSessionPatch) (*model.FocusSession, error) {
	current, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	updated := patchedSession(current, patch, r.clock.Now())
	r.sessions[id] = updated
	if updated.Status.IsTerminal() && r.active[updated.UserID] == id {
		delete(r.active, updated.UserID)
	}
	return updated.Clone(), nil
}

// ReplaceActive はユーザーの非終端セッションを終了させ、nextを作成する。
func (r *MemoryFocusSessionRepo) ReplaceActive(ctx context.Context, userID string, complete CompleteFunc, next *model.FocusSession) (*model.FocusSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[next.ID]; exists {
		return nil, fmt.Errorf("failed to create focus session: duplicate id %s", next.ID)
	}

	var completed *model.FocusSession
	if id, ok := r.active[userID]; ok {
		current := r.sessions[id]
		updated, err := r.updateLocked(id, current.Version, complete(current.Clone()))
		if err != nil {
			return nil, fmt.Errorf("failed to complete previous focus session: %w", err)
		}
		completed = updated
	}

	if err := r.createLocked(next); err != nil {
		return nil, err
	}
	return completed, nil
}

// ListByUserStartedBetween は started_at が [from, to) のセッションを降順で返す。
func (r *MemoryFocusSessionRepo) ListByUserStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []*model.FocusSession
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
			continue
		}
		results = append(results, s.Clone())
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].StartedAt.Equal(results[j].StartedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// compile-time interface check
var _ FocusSessionRepository = (*MemoryFocusSessionRepo)(nil)
