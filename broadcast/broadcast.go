// broadcast/broadcast.go
// broadcast 是笔画与清屏事件的房间内扇出通道。事件不落库、不重放,
// 至多一次送达;迟到的观众靠画手继续画补齐画面。
package broadcast

import (
	"errors"
	"sync"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
)

// 每个订阅者的通道缓冲。满了直接丢,绘画流不值得为慢客户端阻塞。
const subscriberBuffer = 512

var ErrNotAuthorized = errors.New("player may not draw right now")

// Authorizer 判定玩家当前是否可以在房间里作画。
type Authorizer func(gameID, playerID string) bool

type subscriber struct {
	playerID string
	ch       chan models.CanvasEvent
}

// Hub 按房间管理订阅者并扇出画布事件。
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[string]subscriber
	authorize Authorizer
	onDeliver func(n int)
}

func NewHub(authorize Authorizer) *Hub {
	return &Hub{
		topics:    make(map[string]map[string]subscriber),
		authorize: authorize,
	}
}

// SetDeliveryHook 注册送达计数回调,监控用。
func (h *Hub) SetDeliveryHook(fn func(n int)) {
	h.onDeliver = fn
}

// Subscribe 把订阅者挂到房间话题上。playerID 用于自排除:
// 事件不会回送给产生它的玩家。返回的函数用于退订。
func (h *Hub) Subscribe(gameID, subID, playerID string) (<-chan models.CanvasEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.CanvasEvent, subscriberBuffer)
	if h.topics[gameID] == nil {
		h.topics[gameID] = make(map[string]subscriber)
	}
	h.topics[gameID][subID] = subscriber{playerID: playerID, ch: ch}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.topics[gameID]; ok {
			if sub, ok := subs[subID]; ok {
				delete(subs, subID)
				close(sub.ch)
			}
			if len(subs) == 0 {
				delete(h.topics, gameID)
			}
		}
	}
	return ch, cancel
}

// PublishStroke 校验画手身份后把笔画扇出给房间里除画手外的所有订阅者。
func (h *Hub) PublishStroke(gameID string, stroke models.StrokeEvent) error {
	return h.publish(gameID, models.CanvasEvent{Kind: models.CanvasKindStroke, Stroke: &stroke})
}

// PublishClear 清屏事件,同样只有当前画手可以发。
func (h *Hub) PublishClear(gameID string, clear models.ClearEvent) error {
	return h.publish(gameID, models.CanvasEvent{Kind: models.CanvasKindClear, Clear: &clear})
}

func (h *Hub) publish(gameID string, ev models.CanvasEvent) error {
	origin := ev.OriginPlayer()
	if h.authorize != nil && !h.authorize(gameID, origin) {
		return ErrNotAuthorized
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, sub := range h.topics[gameID] {
		if sub.playerID == origin {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			// 至多一次,慢订阅者丢帧
			logger.Log.Debugw("Canvas subscriber lagging, event dropped", "gameID", gameID)
		}
	}
	if h.onDeliver != nil && delivered > 0 {
		h.onDeliver(delivered)
	}
	return nil
}

// CloseRoom 房间解散时踢掉全部订阅者。
func (h *Hub) CloseRoom(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.topics[gameID] {
		close(sub.ch)
	}
	delete(h.topics, gameID)
}

// Subscribers 返回房间当前订阅数,监控用。
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[gameID])
}
