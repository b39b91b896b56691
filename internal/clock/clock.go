// Package clock は現在時刻の取得を抽象化する。
// テストでは Fake を注入して任意の時刻を再現する。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻の供給元を表す。
type Clock interface {
	Now() time.Time
}

// Real はシステム時計を使用するClock実装。
type Real struct{}

// Now は現在のUTC時刻を秒単位に切り捨てて返す。
func (Real) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Fake はテスト用の手動で進められるClock実装。
// 複数goroutineから安全に使用できる。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻で停止したFakeを生成する。
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

// Now は現在の擬似時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は擬似時刻をdだけ進める。
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は擬似時刻をtに設定する。
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
