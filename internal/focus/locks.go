package focus

import "sync"

// userLocks はユーザー単位の排他ロック。
// 参照が無くなったエントリは解放する。
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Lock はuserIDのロックを取得し、解放用の関数を返す。
func (l *userLocks) Lock(userID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &userLock{}
		l.locks[userID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// size は保持しているエントリ数を返す。
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
