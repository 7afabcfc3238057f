// services/admin_service.go
package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
	"github.com/matyaskozubik2/canvas-word-play/roster"
)

// AdminService 管理面的业务:踢人要先消耗一次性邀请码换取操作资格,
// 每次操作都落审计记录。
type AdminService struct {
	store  persistence.Store
	roster *roster.Roster
}

func NewAdminService(store persistence.Store, r *roster.Roster) *AdminService {
	return &AdminService{store: store, roster: r}
}

// Authorize 消耗一个一次性邀请码。码无效或已用过返回
// persistence.ErrInviteCodeInvalid。
func (s *AdminService) Authorize(ctx context.Context, inviteCode string) error {
	return s.store.UseInviteCode(ctx, inviteCode)
}

// KickPlayer 房主踢人,带审计。踢出成功后由调用方负责断开目标的连接
// 并通知引擎。
func (s *AdminService) KickPlayer(ctx context.Context, gameID, actorID, targetID, reason string) (*models.Player, error) {
	target, err := s.roster.KickPlayer(ctx, gameID, actorID, targetID)
	if err != nil {
		return nil, err
	}

	entry := &models.ModerationLog{
		ID:         uuid.NewString(),
		GameID:     gameID,
		Action:     "kick",
		ActorID:    actorID,
		TargetID:   target.ID,
		TargetName: target.Name,
		Reason:     reason,
	}
	if err := s.store.AddModerationLog(ctx, entry); err != nil {
		// 踢出已经生效,审计失败只记日志
		logger.Log.Errorw("Failed to write moderation log", "gameID", gameID, "error", err)
	}
	return target, nil
}

// LeaderboardEntry 排行榜一行
type LeaderboardEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// Leaderboard 按分数降序的房间排行,分数相同按加入顺序。
func (s *AdminService) Leaderboard(ctx context.Context, gameID string) ([]LeaderboardEntry, error) {
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})

	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Rank:     i + 1,
		})
	}
	return entries, nil
}
