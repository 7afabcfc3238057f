// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/broadcast"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/network"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
)

// Session 一条连接在一个房间里的化身。Attach 之后持久层的行级变更和
// 画布事件会经这里转发给客户端,游戏行在转发前按观看者视角脱敏,
// 非画手永远看不到谜底。
type Session struct {
	ID        string
	Conn      network.Connection
	PlayerID  string
	GameID    string
	CreatedAt time.Time

	mutex  sync.Mutex
	detach []func()
}

func NewSession(id string, conn network.Connection) *Session {
	return &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) SendJSON(msgID uint16, v any) error {
	return s.Conn.SendJSON(msgID, v)
}

// Attach 订阅房间的变更流与画布流并开始转发。重复 Attach 前先 Detach。
func (s *Session) Attach(store persistence.Store, hub *broadcast.Hub) {
	events, cancelEvents := store.Subscribe(s.GameID)
	canvas, cancelCanvas := hub.Subscribe(s.GameID, s.ID, s.PlayerID)

	s.mutex.Lock()
	s.detach = append(s.detach, cancelEvents, cancelCanvas)
	s.mutex.Unlock()

	go s.forwardChanges(events)
	go s.forwardCanvas(canvas)
}

// Detach 退订两个流。通道关闭后转发协程自行退出。
func (s *Session) Detach() {
	s.mutex.Lock()
	detach := s.detach
	s.detach = nil
	s.mutex.Unlock()
	for _, cancel := range detach {
		cancel()
	}
}

func (s *Session) forwardChanges(events <-chan models.ChangeEvent) {
	for ev := range events {
		if ev.Table == models.TableGames && len(ev.Row) > 0 {
			ev = sanitizeGameEvent(ev, s.PlayerID)
		}
		if err := s.SendJSON(network.MsgTypeRoomChange, ev); err != nil {
			logger.Log.Debugw("Session change forward failed", "sessionID", s.ID, "error", err)
			return
		}
	}
}

func (s *Session) forwardCanvas(canvas <-chan models.CanvasEvent) {
	for ev := range canvas {
		if err := s.SendJSON(network.MsgTypeCanvasEvent, ev); err != nil {
			logger.Log.Debugw("Session canvas forward failed", "sessionID", s.ID, "error", err)
			return
		}
	}
}

// sanitizeGameEvent 把游戏行事件里的谜底按观看者裁掉。解析失败时
// 宁可丢行也不能把原始行漏出去。
func sanitizeGameEvent(ev models.ChangeEvent, viewerID string) models.ChangeEvent {
	var game models.Game
	if err := json.Unmarshal(ev.Row, &game); err != nil {
		ev.Row = nil
		return ev
	}
	raw, err := json.Marshal(game.Sanitized(viewerID))
	if err != nil {
		ev.Row = nil
		return ev
	}
	ev.Row = raw
	return ev
}

func (s *Session) Close() error {
	s.Detach()
	return s.Conn.Close()
}

// Manager 会话管理器
type Manager struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByPlayer 找到玩家当前的会话,踢人时用来断线。
func (m *Manager) GetByPlayer(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

// GetByGame 房间里的全部会话。
func (m *Manager) GetByGame(gameID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GameID == gameID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
