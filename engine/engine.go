// engine/engine.go
// engine 是每个房间的权威回合状态机:开局、选词、计时、提示、结算、
// 轮换直到终局。所有阶段推进都走存储层的条件更新,两个写入方竞争同
// 一次推进时只有一个会赢,输掉的一方把它当作已完成的空操作。
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/config"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
	"github.com/matyaskozubik2/canvas-word-play/roster"
	"github.com/matyaskozubik2/canvas-word-play/timer"
	"github.com/matyaskozubik2/canvas-word-play/wordbank"
)

var (
	ErrRoomNotFound        = errors.New("room not tracked by engine")
	ErrNotHost             = errors.New("only the host may start the game")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrNotYourTurn         = errors.New("not your turn to draw")
	ErrInvalidWord         = errors.New("word is not among the options")
	ErrWrongPhase          = errors.New("operation not valid in current phase")
)

// Hooks 引擎向监控层上报的回调,全部可选。
type Hooks struct {
	RoomOpened func()
	RoomClosed func()
	Guess      func(correct bool)
}

// Manager 管理全部活跃房间的引擎实例。
type Manager struct {
	store  persistence.Store
	bank   *wordbank.Bank
	cfg    config.GameConfig
	timers *timer.Manager
	hooks  Hooks

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager 创建引擎。timers 传 nil 时不起定时任务,
// 时间推进由调用方手动驱动。
func NewManager(store persistence.Store, bank *wordbank.Bank, cfg config.GameConfig, timers *timer.Manager, hooks Hooks) *Manager {
	return &Manager{
		store:  store,
		bank:   bank,
		cfg:    cfg,
		timers: timers,
		hooks:  hooks,
		rooms:  make(map[string]*Room),
	}
}

// Ensure 把房间纳入引擎管理,已在管理中的直接返回。
func (m *Manager) Ensure(game *models.Game) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[game.ID]; ok {
		return room
	}
	room := &Room{mgr: m, game: *game, drawerPos: -1}
	m.rooms[game.ID] = room
	if m.timers != nil {
		room.timerID = m.timers.AddTimer(time.Second, time.Second, func() {
			if err := room.Tick(context.Background(), time.Now()); err != nil {
				logger.Log.Errorw("Room tick failed", "gameID", game.ID, "error", err)
			}
		})
	}
	if m.hooks.RoomOpened != nil {
		m.hooks.RoomOpened()
	}
	logger.Log.Infow("Engine tracking room", "gameID", game.ID, "roomCode", game.RoomCode)
	return room
}

func (m *Manager) Get(gameID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[gameID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Remove 房间解散时停表并摘除。
func (m *Manager) Remove(gameID string) {
	m.mu.Lock()
	room, ok := m.rooms[gameID]
	if ok {
		delete(m.rooms, gameID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.timers != nil && room.timerID != 0 {
		m.timers.RemoveTimer(room.timerID)
	}
	if m.hooks.RoomClosed != nil {
		m.hooks.RoomClosed()
	}
	logger.Log.Infow("Engine released room", "gameID", gameID)
}

// RoomCount 活跃房间数,监控用。
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Snapshots 全部活跃房间的快照,管理面用。
func (m *Manager) Snapshots() []models.Game {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	out := make([]models.Game, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Snapshot())
	}
	return out
}

// IsCurrentDrawer 广播通道的鉴权回调:只有绘画阶段的当前画手可以作画。
func (m *Manager) IsCurrentDrawer(gameID, playerID string) bool {
	room, err := m.Get(gameID)
	if err != nil {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.game.Phase == models.PhaseDrawing && room.game.CurrentDrawerID == playerID
}

// Room 单个房间的引擎实例。game 是本地快照,权威数据在存储层,
// 每次条件更新成功后用返回的行刷新快照。
type Room struct {
	mgr     *Manager
	timerID int64

	mu        sync.Mutex
	game      models.Game
	drawerPos int
	revealed  []bool
	deadline  time.Time
	nextHint  time.Time
}

// Snapshot 返回当前快照的副本。
func (r *Room) Snapshot() models.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

// refresh 从存储层重读快照。竞争失败后用来对齐本地状态。
func (r *Room) refresh(ctx context.Context) error {
	game, err := r.mgr.store.GetGame(ctx, r.game.ID)
	if err != nil {
		return err
	}
	r.game = *game
	return nil
}

// StartGame 房主把房间从等待推进到第一回合的选词。
func (r *Room) StartGame(ctx context.Context, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.Phase != models.PhaseWaiting {
		return ErrWrongPhase
	}
	if r.game.HostID != actorID {
		return ErrNotHost
	}
	players, err := r.mgr.store.ListPlayers(ctx, r.game.ID)
	if err != nil {
		return err
	}
	if len(players) < r.mgr.cfg.MinPlayers {
		return ErrInsufficientPlayers
	}

	return r.beginWordSelection(ctx, time.Now(), 1, &players[0], 0)
}

// beginWordSelection 进入选词阶段。调用方持锁。
func (r *Room) beginWordSelection(ctx context.Context, now time.Time, round int, drawer *models.Player, pos int) error {
	options := r.mgr.bank.Options(r.game.Language)

	expectPhase := r.game.Phase
	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{Phase: &expectPhase},
		persistence.GameUpdate{
			Phase:           persistence.Ptr(models.PhaseWordSelection),
			CurrentRound:    persistence.Ptr(round),
			CurrentDrawerID: persistence.Ptr(drawer.ID),
			CurrentWord:     persistence.Ptr(""),
			MaskedWord:      persistence.Ptr(""),
			WordOptions:     persistence.Ptr(options),
			TimeLeft:        persistence.Ptr(r.mgr.cfg.SelectionSeconds),
		})
	if err != nil {
		return r.loseRace(ctx, err)
	}

	// 每个回合从干净的猜词状态和聊天面板开始
	if err := r.mgr.store.ResetGuessFlags(ctx, r.game.ID); err != nil {
		return err
	}
	if err := r.mgr.store.ClearChatMessages(ctx, r.game.ID); err != nil {
		return err
	}

	r.game = *game
	r.drawerPos = pos
	r.revealed = nil
	r.deadline = now.Add(time.Duration(r.mgr.cfg.SelectionSeconds) * time.Second)
	r.nextHint = time.Time{}

	logger.Log.Infow("Word selection started",
		"gameID", r.game.ID, "round", round, "drawerID", drawer.ID)
	return nil
}

// SelectWord 画手从候选里选词,进入绘画阶段。
func (r *Room) SelectWord(ctx context.Context, playerID, word string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.Phase != models.PhaseWordSelection {
		return ErrWrongPhase
	}
	if r.game.CurrentDrawerID != playerID {
		return ErrNotYourTurn
	}
	valid := false
	for _, w := range r.game.WordOptions {
		if w == word {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidWord
	}
	return r.beginDrawing(ctx, time.Now(), word)
}

// beginDrawing 进入绘画阶段。调用方持锁。
func (r *Room) beginDrawing(ctx context.Context, now time.Time, word string) error {
	revealed := make([]bool, len([]rune(word)))
	masked := wordbank.MaskWord(word, revealed)

	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{
			Phase:           persistence.Ptr(models.PhaseWordSelection),
			CurrentDrawerID: persistence.Ptr(r.game.CurrentDrawerID),
		},
		persistence.GameUpdate{
			Phase:       persistence.Ptr(models.PhaseDrawing),
			CurrentWord: persistence.Ptr(word),
			MaskedWord:  persistence.Ptr(masked),
			WordOptions: persistence.Ptr([]string{}),
			TimeLeft:    persistence.Ptr(r.game.DrawTime),
		})
	if err != nil {
		return r.loseRace(ctx, err)
	}

	r.game = *game
	r.revealed = revealed
	r.deadline = now.Add(time.Duration(r.game.DrawTime) * time.Second)
	r.nextHint = now.Add(time.Duration(r.mgr.cfg.HintIntervalSeconds) * time.Second)

	logger.Log.Infow("Drawing started", "gameID", r.game.ID, "drawerID", r.game.CurrentDrawerID)
	return nil
}

// ToggleReady 等待阶段的准备开关。
func (r *Room) ToggleReady(ctx context.Context, playerID string, ready bool) error {
	r.mu.Lock()
	phase := r.game.Phase
	r.mu.Unlock()

	if phase != models.PhaseWaiting {
		return ErrWrongPhase
	}
	_, err := r.mgr.store.UpdatePlayer(ctx, playerID, persistence.PlayerUpdate{IsReady: persistence.Ptr(ready)})
	return err
}

// Tick 每秒推进一次房间时间。now 由调用方传入,测试可以直接快进。
func (r *Room) Tick(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.game.Phase {
	case models.PhaseWordSelection:
		if !now.Before(r.deadline) {
			// 选词超时,替画手随机选一个
			options := r.game.WordOptions
			if len(options) == 0 {
				return r.refresh(ctx)
			}
			word := options[rand.Intn(len(options))]
			logger.Log.Infow("Word selection timed out, picking for drawer",
				"gameID", r.game.ID, "drawerID", r.game.CurrentDrawerID)
			return r.beginDrawing(ctx, now, word)
		}
		return r.syncTimeLeft(ctx, now)

	case models.PhaseDrawing:
		if !now.Before(r.deadline) {
			return r.endRound(ctx, now, "time is up")
		}
		if !r.nextHint.IsZero() && !now.Before(r.nextHint) {
			if err := r.revealHint(ctx); err != nil {
				return err
			}
			r.nextHint = now.Add(time.Duration(r.mgr.cfg.HintIntervalSeconds) * time.Second)
		}
		return r.syncTimeLeft(ctx, now)

	case models.PhaseResults:
		if !now.Before(r.deadline) {
			return r.advanceAfterResults(ctx, now)
		}
	}
	return nil
}

// syncTimeLeft 把剩余秒数写回存储层,订阅者靠这个同步倒计时。
// 调用方持锁。
func (r *Room) syncTimeLeft(ctx context.Context, now time.Time) error {
	left := int(r.deadline.Sub(now).Round(time.Second) / time.Second)
	if left < 0 {
		left = 0
	}
	if left == r.game.TimeLeft {
		return nil
	}
	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{Phase: persistence.Ptr(r.game.Phase)},
		persistence.GameUpdate{TimeLeft: persistence.Ptr(left)})
	if err != nil {
		return r.loseRace(ctx, err)
	}
	r.game = *game
	return nil
}

// revealHint 随机揭开一个未揭开的字母并更新掩码。调用方持锁。
func (r *Room) revealHint(ctx context.Context) error {
	word := r.game.CurrentWord
	idx := r.mgr.bank.RevealIndex(word, r.revealed)
	if idx < 0 {
		return nil
	}
	r.revealed[idx] = true
	masked := wordbank.MaskWord(word, r.revealed)

	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{Phase: persistence.Ptr(models.PhaseDrawing)},
		persistence.GameUpdate{MaskedWord: persistence.Ptr(masked)})
	if err != nil {
		return r.loseRace(ctx, err)
	}
	r.game = *game
	logger.Log.Debugw("Hint revealed", "gameID", r.game.ID, "masked", masked)
	return nil
}

// endRound 进入结算阶段,掩码换成完整的词。调用方持锁。
func (r *Room) endRound(ctx context.Context, now time.Time, reason string) error {
	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{
			Phase:           persistence.Ptr(models.PhaseDrawing),
			CurrentDrawerID: persistence.Ptr(r.game.CurrentDrawerID),
		},
		persistence.GameUpdate{
			Phase:      persistence.Ptr(models.PhaseResults),
			MaskedWord: persistence.Ptr(r.game.CurrentWord),
			TimeLeft:   persistence.Ptr(0),
		})
	if err != nil {
		return r.loseRace(ctx, err)
	}

	r.game = *game
	r.deadline = now.Add(time.Duration(r.mgr.cfg.ResultsDelaySeconds) * time.Second)
	logger.Log.Infow("Round over", "gameID", r.game.ID, "reason", reason, "word", r.game.CurrentWord)
	return nil
}

// advanceAfterResults 结算停留结束后轮换画手,每次轮换加一轮,
// 轮数用尽或人数不足则终局。调用方持锁。
func (r *Room) advanceAfterResults(ctx context.Context, now time.Time) error {
	players, err := r.mgr.store.ListPlayers(ctx, r.game.ID)
	if err != nil {
		return err
	}
	if len(players) < r.mgr.cfg.MinPlayers {
		return r.finishGame(ctx, "not enough players")
	}

	round := r.game.CurrentRound + 1
	if round > r.game.TotalRounds {
		return r.finishGame(ctx, "all rounds played")
	}

	next, pos := roster.NextDrawer(players, r.game.CurrentDrawerID, r.drawerPos)
	if next == nil {
		return r.finishGame(ctx, "empty roster")
	}
	return r.beginWordSelection(ctx, now, round, next, pos)
}

// finishGame 终局。房间保留在 game-over 阶段供客户端展示排行榜,
// 解散由名单层在玩家离开时处理。调用方持锁。
func (r *Room) finishGame(ctx context.Context, reason string) error {
	expectPhase := r.game.Phase
	game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
		persistence.GameExpect{Phase: &expectPhase},
		persistence.GameUpdate{
			Phase:    persistence.Ptr(models.PhaseGameOver),
			TimeLeft: persistence.Ptr(0),
		})
	if err != nil {
		return r.loseRace(ctx, err)
	}
	r.game = *game
	logger.Log.Infow("Game over", "gameID", r.game.ID, "reason", reason)
	return nil
}

// OnPlayerRemoved 玩家被移出后的善后:画手走了直接结束本回合,
// 等待阶段无事可做。
func (r *Room) OnPlayerRemoved(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.CurrentDrawerID != playerID {
		return nil
	}
	switch r.game.Phase {
	case models.PhaseDrawing:
		return r.endRound(ctx, time.Now(), "drawer left")
	case models.PhaseWordSelection:
		// 没选词就走了,跳过绘画直接进结算轮换下一位
		game, err := r.mgr.store.UpdateGameIf(ctx, r.game.ID,
			persistence.GameExpect{Phase: persistence.Ptr(models.PhaseWordSelection)},
			persistence.GameUpdate{
				Phase:       persistence.Ptr(models.PhaseResults),
				WordOptions: persistence.Ptr([]string{}),
				TimeLeft:    persistence.Ptr(0),
			})
		if err != nil {
			return r.loseRace(ctx, err)
		}
		r.game = *game
		r.deadline = time.Now().Add(time.Duration(r.mgr.cfg.ResultsDelaySeconds) * time.Second)
		return nil
	}
	return nil
}

// loseRace 把条件更新的竞争失败归一化:另一个写入方已经完成了
// 同一次推进,刷新快照即可。其余错误原样返回。
func (r *Room) loseRace(ctx context.Context, err error) error {
	if errors.Is(err, persistence.ErrPhaseChanged) {
		return r.refresh(ctx)
	}
	return err
}
