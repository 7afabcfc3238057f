// persistence/memory.go
package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/models"
)

// MemoryStore 内存实现,用于开发与测试。语义与 Postgres 实现一致:
// 条件更新、容量检查、计分都在持锁状态下原子完成,写入后发布变更事件。
type MemoryStore struct {
	mu       sync.RWMutex
	games    map[string]models.Game
	players  map[string]models.Player
	messages map[string][]models.ChatMessage
	modLogs  []models.ModerationLog
	invites  map[string]models.InviteCode
	feed     *feed
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:    make(map[string]models.Game),
		players:  make(map[string]models.Player),
		messages: make(map[string][]models.ChatMessage),
		invites:  make(map[string]models.InviteCode),
		feed:     newFeed(),
	}
}

func (s *MemoryStore) emit(table, action, gameID string, row any) {
	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	s.feed.publish(models.ChangeEvent{Table: table, Action: action, GameID: gameID, Row: raw})
}

// --- games ---

func (s *MemoryStore) CreateGame(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.games {
		if strings.EqualFold(g.RoomCode, game.RoomCode) {
			return ErrDuplicateRoomCode
		}
	}
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now
	s.games[game.ID] = *game
	s.emit(models.TableGames, models.ActionInsert, game.ID, game)
	return nil
}

func (s *MemoryStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := g
	return &out, nil
}

func (s *MemoryStore) GetGameByRoomCode(ctx context.Context, code string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if strings.EqualFold(g.RoomCode, code) {
			out := g
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateGame(ctx context.Context, id string, update GameUpdate) (*models.Game, error) {
	return s.UpdateGameIf(ctx, id, GameExpect{}, update)
}

func (s *MemoryStore) UpdateGameIf(ctx context.Context, id string, expect GameExpect, update GameUpdate) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if expect.Phase != nil && g.Phase != *expect.Phase {
		return nil, ErrPhaseChanged
	}
	if expect.CurrentRound != nil && g.CurrentRound != *expect.CurrentRound {
		return nil, ErrPhaseChanged
	}
	if expect.CurrentDrawerID != nil && g.CurrentDrawerID != *expect.CurrentDrawerID {
		return nil, ErrPhaseChanged
	}

	applyGameUpdate(&g, update)
	g.UpdatedAt = time.Now()
	s.games[id] = g
	s.emit(models.TableGames, models.ActionUpdate, id, &g)
	out := g
	return &out, nil
}

func applyGameUpdate(g *models.Game, update GameUpdate) {
	if update.Phase != nil {
		g.Phase = *update.Phase
	}
	if update.HostID != nil {
		g.HostID = *update.HostID
	}
	if update.CurrentRound != nil {
		g.CurrentRound = *update.CurrentRound
	}
	if update.CurrentDrawerID != nil {
		g.CurrentDrawerID = *update.CurrentDrawerID
	}
	if update.CurrentWord != nil {
		g.CurrentWord = *update.CurrentWord
	}
	if update.WordOptions != nil {
		g.WordOptions = *update.WordOptions
	}
	if update.MaskedWord != nil {
		g.MaskedWord = *update.MaskedWord
	}
	if update.TimeLeft != nil {
		g.TimeLeft = *update.TimeLeft
	}
}

func (s *MemoryStore) DeleteGame(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return ErrNotFound
	}
	// 级联删除玩家与消息,每行各发一条删除事件
	for pid, p := range s.players {
		if p.GameID == id {
			delete(s.players, pid)
			s.emit(models.TablePlayers, models.ActionDelete, id, &p)
		}
	}
	for _, m := range s.messages[id] {
		s.emit(models.TableChatMessages, models.ActionDelete, id, &m)
	}
	delete(s.messages, id)
	delete(s.games, id)
	s.emit(models.TableGames, models.ActionDelete, id, &g)
	return nil
}

// --- players ---

func (s *MemoryStore) AddPlayer(ctx context.Context, player *models.Player, maxPlayers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[player.GameID]
	if !ok {
		return ErrNotFound
	}
	if g.Phase != models.PhaseWaiting {
		return ErrGameAlreadyStarted
	}
	count := 0
	for _, p := range s.players {
		if p.GameID == player.GameID {
			count++
		}
	}
	if count >= maxPlayers {
		return ErrRoomFull
	}
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now()
	}
	s.players[player.ID] = *player
	s.emit(models.TablePlayers, models.ActionInsert, player.GameID, player)
	return nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

// ListPlayers 按加入顺序返回,轮换次序依赖这个排序。
func (s *MemoryStore) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdatePlayer(ctx context.Context, id string, update PlayerUpdate) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.IsHost != nil {
		p.IsHost = *update.IsHost
	}
	if update.IsReady != nil {
		p.IsReady = *update.IsReady
	}
	if update.HasGuessedCorrectly != nil {
		p.HasGuessedCorrectly = *update.HasGuessedCorrectly
	}
	s.players[id] = p
	s.emit(models.TablePlayers, models.ActionUpdate, p.GameID, &p)
	out := p
	return &out, nil
}

func (s *MemoryStore) AwardCorrectGuess(ctx context.Context, playerID string, points int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return false, ErrNotFound
	}
	if p.HasGuessedCorrectly {
		return false, nil
	}
	p.HasGuessedCorrectly = true
	p.Score += points
	s.players[playerID] = p
	s.emit(models.TablePlayers, models.ActionUpdate, p.GameID, &p)
	return true, nil
}

func (s *MemoryStore) ResetGuessFlags(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.players {
		if p.GameID != gameID || !p.HasGuessedCorrectly {
			continue
		}
		p.HasGuessedCorrectly = false
		s.players[id] = p
		s.emit(models.TablePlayers, models.ActionUpdate, gameID, &p)
	}
	return nil
}

func (s *MemoryStore) DeletePlayer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.players, id)
	s.emit(models.TablePlayers, models.ActionDelete, p.GameID, &p)
	return nil
}

// --- chat ---

func (s *MemoryStore) AppendChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[msg.GameID]; !ok {
		return ErrNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.GameID] = append(s.messages[msg.GameID], *msg)
	s.emit(models.TableChatMessages, models.ActionInsert, msg.GameID, msg)
	return nil
}

func (s *MemoryStore) ListChatMessages(ctx context.Context, gameID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[gameID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) ClearChatMessages(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[gameID] {
		s.emit(models.TableChatMessages, models.ActionDelete, gameID, &m)
	}
	delete(s.messages, gameID)
	return nil
}

// --- admin ---

func (s *MemoryStore) AddModerationLog(ctx context.Context, entry *models.ModerationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.modLogs = append(s.modLogs, *entry)
	return nil
}

// ModerationLogs 返回全部审计记录,测试用。
func (s *MemoryStore) ModerationLogs() []models.ModerationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ModerationLog, len(s.modLogs))
	copy(out, s.modLogs)
	return out
}

// SeedInviteCode 预置一个未使用的邀请码,测试与开发环境用。
func (s *MemoryStore) SeedInviteCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[code] = models.InviteCode{Code: code, CreatedAt: time.Now()}
}

func (s *MemoryStore) UseInviteCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[code]
	if !ok || inv.Used {
		return ErrInviteCodeInvalid
	}
	now := time.Now()
	inv.Used = true
	inv.UsedAt = &now
	s.invites[code] = inv
	return nil
}

func (s *MemoryStore) Subscribe(gameID string) (<-chan models.ChangeEvent, func()) {
	return s.feed.subscribe(gameID)
}

func (s *MemoryStore) Close() error {
	s.feed.close()
	return nil
}
