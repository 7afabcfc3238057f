// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/matyaskozubik2/canvas-word-play/models"
)

// 错误定义
var (
	ErrNotFound           = errors.New("record not found")
	ErrPhaseChanged       = errors.New("precondition no longer holds")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrDuplicateRoomCode  = errors.New("room code already in use")
	ErrInviteCodeInvalid  = errors.New("invite code invalid or already used")
)

// Ptr is shorthand for building partial updates.
func Ptr[T any](v T) *T { return &v }

// GameExpect is the precondition of a conditional game update. Nil fields
// are not checked. A conditional update whose precondition no longer holds
// fails with ErrPhaseChanged and leaves the row untouched.
type GameExpect struct {
	Phase           *models.GamePhase
	CurrentRound    *int
	CurrentDrawerID *string
}

// GameUpdate is a partial update of a game row. Nil fields are unchanged.
type GameUpdate struct {
	Phase           *models.GamePhase
	HostID          *string
	CurrentRound    *int
	CurrentDrawerID *string
	CurrentWord     *string
	WordOptions     *[]string
	MaskedWord      *string
	TimeLeft        *int
}

// PlayerUpdate is a partial update of a player row.
type PlayerUpdate struct {
	IsHost              *bool
	IsReady             *bool
	HasGuessedCorrectly *bool
}

// Store 数据库接口。所有阶段推进都通过 UpdateGameIf 的条件更新完成，
// 变更通过 Subscribe 推送给房间的所有订阅者，与写入方无关。
type Store interface {
	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id string) (*models.Game, error)
	GetGameByRoomCode(ctx context.Context, code string) (*models.Game, error)
	UpdateGame(ctx context.Context, id string, update GameUpdate) (*models.Game, error)
	UpdateGameIf(ctx context.Context, id string, expect GameExpect, update GameUpdate) (*models.Game, error)
	DeleteGame(ctx context.Context, id string) error

	// AddPlayer re-validates capacity and the waiting phase at write time,
	// so concurrent joins can never overshoot max_players.
	AddPlayer(ctx context.Context, player *models.Player, maxPlayers int) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	ListPlayers(ctx context.Context, gameID string) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, id string, update PlayerUpdate) (*models.Player, error)
	// AwardCorrectGuess atomically sets the per-round guess flag and
	// increments the score. Returns false when the flag was already set.
	AwardCorrectGuess(ctx context.Context, playerID string, points int) (bool, error)
	ResetGuessFlags(ctx context.Context, gameID string) error
	DeletePlayer(ctx context.Context, id string) error

	AppendChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, gameID string) ([]models.ChatMessage, error)
	ClearChatMessages(ctx context.Context, gameID string) error

	AddModerationLog(ctx context.Context, entry *models.ModerationLog) error
	UseInviteCode(ctx context.Context, code string) error

	// Subscribe returns a channel of row-level change events for one room.
	// The returned func cancels the subscription.
	Subscribe(gameID string) (<-chan models.ChangeEvent, func())

	Close() error
}
