// registry/registry.go
// registry 负责房间的创建与查找:生成短房码、应用默认配置、落库。
package registry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matyaskozubik2/canvas-word-play/config"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
)

// 房码字母表与长度。全大写字母加数字,口头好念。
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

var (
	ErrCodeGenerationExhausted = errors.New("could not generate a unique room code")
	ErrRoomNotFound            = errors.New("room not found")
)

// Registry 房间注册表
type Registry struct {
	store persistence.Store
	cfg   config.GameConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRegistry(store persistence.Store, cfg config.GameConfig) *Registry {
	return &Registry{
		store: store,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Registry) randomCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[r.rng.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

// applyDefaults 补全缺省的房间配置并收敛到合法区间
func (r *Registry) applyDefaults(settings *models.GameSettings) {
	if settings.Rounds <= 0 {
		settings.Rounds = r.cfg.DefaultRounds
	}
	if settings.DrawTime <= 0 {
		settings.DrawTime = r.cfg.DefaultDrawTime
	}
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = r.cfg.DefaultMaxPlayers
	}
	if settings.MaxPlayers < r.cfg.MinPlayers {
		settings.MaxPlayers = r.cfg.MinPlayers
	}
	if settings.Language == "" {
		settings.Language = r.cfg.DefaultLanguage
	}
}

// CreateRoom 创建房间并写入房主玩家。房码冲突时换码重试,
// 尝试次数用尽返回 ErrCodeGenerationExhausted。
func (r *Registry) CreateRoom(ctx context.Context, hostName string, settings models.GameSettings) (*models.Game, *models.Player, error) {
	r.applyDefaults(&settings)

	hostID := uuid.NewString()
	game := &models.Game{
		ID:          uuid.NewString(),
		HostID:      hostID,
		Phase:       models.PhaseWaiting,
		TotalRounds: settings.Rounds,
		DrawTime:    settings.DrawTime,
		MaxPlayers:  settings.MaxPlayers,
		Language:    settings.Language,
	}

	attempts := r.cfg.CodeAttempts
	if attempts <= 0 {
		attempts = 10
	}
	created := false
	for i := 0; i < attempts; i++ {
		game.RoomCode = r.randomCode()
		err := r.store.CreateGame(ctx, game)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, persistence.ErrDuplicateRoomCode) {
			return nil, nil, err
		}
	}
	if !created {
		return nil, nil, ErrCodeGenerationExhausted
	}

	host := &models.Player{
		ID:          hostID,
		GameID:      game.ID,
		Name:        hostName,
		IsHost:      true,
		AvatarColor: models.AvatarColorFor(hostName),
		JoinedAt:    time.Now(),
	}
	if err := r.store.AddPlayer(ctx, host, game.MaxPlayers); err != nil {
		// 房主写入失败的空房直接回收
		if derr := r.store.DeleteGame(ctx, game.ID); derr != nil {
			logger.Log.Warnw("Failed to clean up room after host insert failure",
				"gameID", game.ID, "error", derr)
		}
		return nil, nil, err
	}

	logger.Log.Infow("Room created", "gameID", game.ID, "roomCode", game.RoomCode, "host", hostName)
	return game, host, nil
}

// FindRoomByCode 按房码查找,大小写不敏感。
func (r *Registry) FindRoomByCode(ctx context.Context, code string) (*models.Game, error) {
	game, err := r.store.GetGameByRoomCode(ctx, code)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return game, err
}
