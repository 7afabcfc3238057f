// roster/roster.go
// roster 管理房间内的玩家名单:加入、离开、踢出、房主交接与画手轮换次序。
package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNotHost        = errors.New("only the host may do that")
	ErrCannotKickSelf = errors.New("cannot kick yourself")

	// 透传给调用方的写入时校验错误
	ErrRoomFull           = persistence.ErrRoomFull
	ErrGameAlreadyStarted = persistence.ErrGameAlreadyStarted
)

// Roster 玩家名单服务
type Roster struct {
	store persistence.Store
}

func NewRoster(store persistence.Store) *Roster {
	return &Roster{store: store}
}

// JoinRoom 按房码加入。容量与阶段检查在存储层写入时完成,
// 并发加入不会超员,开局后不能再进人。
func (r *Roster) JoinRoom(ctx context.Context, roomCode, name string) (*models.Game, *models.Player, error) {
	game, err := r.store.GetGameByRoomCode(ctx, roomCode)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	player := &models.Player{
		ID:          uuid.NewString(),
		GameID:      game.ID,
		Name:        name,
		AvatarColor: models.AvatarColorFor(name),
		JoinedAt:    time.Now(),
	}
	if err := r.store.AddPlayer(ctx, player, game.MaxPlayers); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, err
	}

	logger.Log.Infow("Player joined", "gameID", game.ID, "playerID", player.ID, "name", name)
	return game, player, nil
}

// LeavePlayer 把玩家移出房间。房主离开时房主席位交给最早加入的剩余
// 玩家,最后一人离开时整个房间级联删除。返回被移除的玩家与房间是否
// 已被删除。
func (r *Roster) LeavePlayer(ctx context.Context, playerID string) (*models.Player, bool, error) {
	player, err := r.store.GetPlayer(ctx, playerID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, false, ErrPlayerNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if err := r.store.DeletePlayer(ctx, playerID); err != nil {
		return nil, false, err
	}

	remaining, err := r.store.ListPlayers(ctx, player.GameID)
	if err != nil {
		return nil, false, err
	}
	if len(remaining) == 0 {
		if err := r.store.DeleteGame(ctx, player.GameID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return nil, false, err
		}
		logger.Log.Infow("Room removed, last player left", "gameID", player.GameID)
		return player, true, nil
	}

	if player.IsHost {
		if err := r.promoteHost(ctx, player.GameID, remaining[0]); err != nil {
			return nil, false, err
		}
	}
	return player, false, nil
}

// KickPlayer 房主把目标玩家移出房间。权限检查在这里,审计记录由
// 管理服务负责。
func (r *Roster) KickPlayer(ctx context.Context, gameID, actorID, targetID string) (*models.Player, error) {
	if actorID == targetID {
		return nil, ErrCannotKickSelf
	}
	game, err := r.store.GetGame(ctx, gameID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if game.HostID != actorID {
		return nil, ErrNotHost
	}

	target, err := r.store.GetPlayer(ctx, targetID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	if target.GameID != gameID {
		return nil, ErrPlayerNotFound
	}

	if err := r.store.DeletePlayer(ctx, targetID); err != nil {
		return nil, err
	}
	logger.Log.Infow("Player kicked", "gameID", gameID, "targetID", targetID, "actorID", actorID)
	return target, nil
}

// RemoveRoom 删除房间及其全部玩家与消息。
func (r *Roster) RemoveRoom(ctx context.Context, gameID string) error {
	err := r.store.DeleteGame(ctx, gameID)
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}

func (r *Roster) promoteHost(ctx context.Context, gameID string, next models.Player) error {
	if _, err := r.store.UpdatePlayer(ctx, next.ID, persistence.PlayerUpdate{IsHost: persistence.Ptr(true)}); err != nil {
		return err
	}
	if _, err := r.store.UpdateGame(ctx, gameID, persistence.GameUpdate{HostID: persistence.Ptr(next.ID)}); err != nil {
		return err
	}
	logger.Log.Infow("Host migrated", "gameID", gameID, "newHostID", next.ID)
	return nil
}

// NextDrawer 按加入顺序环形轮换。current 为空或已不在名单时从
// lastPos 的下一个位置继续,画手中途离开不会打乱轮换。返回新画手
// 及其在名单里的位置。
func NextDrawer(players []models.Player, currentID string, lastPos int) (*models.Player, int) {
	if len(players) == 0 {
		return nil, -1
	}
	pos := -1
	for i, p := range players {
		if p.ID == currentID {
			pos = i
			break
		}
	}
	if pos == -1 {
		// 画手已离开,从其原位置继续;lastPos 越界按名单长度回绕
		pos = lastPos - 1
	}
	n := len(players)
	next := ((pos+1)%n + n) % n
	return &players[next], next
}
