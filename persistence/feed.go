// persistence/feed.go
package persistence

import (
	"sync"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
)

// 订阅者通道缓冲。慢消费者会丢事件，客户端通过重新拉快照对齐。
const feedBuffer = 256

// feed 按房间分发变更事件。内存实现直接在写入路径上发布，
// Postgres 实现由 LISTEN/NOTIFY 监听协程发布。
type feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.ChangeEvent
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[string]map[int]chan models.ChangeEvent)}
}

func (f *feed) subscribe(gameID string) (<-chan models.ChangeEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan models.ChangeEvent, feedBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	if f.subs[gameID] == nil {
		f.subs[gameID] = make(map[int]chan models.ChangeEvent)
	}
	f.subs[gameID][id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if chans, ok := f.subs[gameID]; ok {
			if c, ok := chans[id]; ok {
				delete(chans, id)
				close(c)
			}
			if len(chans) == 0 {
				delete(f.subs, gameID)
			}
		}
	}
	return ch, cancel
}

func (f *feed) publish(ev models.ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs[ev.GameID] {
		select {
		case ch <- ev:
		default:
			logger.Log.Warnw("Change feed subscriber lagging, event dropped",
				"gameID", ev.GameID, "table", ev.Table)
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, chans := range f.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	f.subs = make(map[string]map[int]chan models.ChangeEvent)
}
