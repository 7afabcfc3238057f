// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// GormGame 房间表模型
type GormGame struct {
	ID              string         `gorm:"primaryKey;type:uuid"`
	RoomCode        string         `gorm:"uniqueIndex;size:6;not null"`
	HostID          string         `gorm:"type:uuid"`
	Phase           string         `gorm:"not null;default:waiting"`
	CurrentRound    int            `gorm:"not null;default:0"`
	TotalRounds     int            `gorm:"not null"`
	DrawTime        int            `gorm:"not null"`
	MaxPlayers      int            `gorm:"not null"`
	Language        string         `gorm:"size:8;not null;default:cs"`
	CurrentDrawerID string         `gorm:"type:uuid"`
	CurrentWord     string         `gorm:""`
	WordOptions     pq.StringArray `gorm:"type:text[]"`
	MaskedWord      string         `gorm:""`
	TimeLeft        int            `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Players         []GormPlayer      `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Messages        []GormChatMessage `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (GormGame) TableName() string { return "games" }

// GormPlayer 玩家表模型
type GormPlayer struct {
	ID                  string `gorm:"primaryKey;type:uuid"`
	GameID              string `gorm:"type:uuid;index;not null"`
	Name                string `gorm:"size:64;not null"`
	IsHost              bool   `gorm:"not null;default:false"`
	IsReady             bool   `gorm:"not null;default:false"`
	Score               int    `gorm:"not null;default:0"`
	HasGuessedCorrectly bool   `gorm:"not null;default:false"`
	AvatarColor         string `gorm:"size:32"`
	JoinedAt            time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormChatMessage 聊天消息表模型，只追加
type GormChatMessage struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	GameID     string `gorm:"type:uuid;index;not null"`
	PlayerID   string `gorm:"type:uuid"`
	PlayerName string `gorm:"size:64;not null"`
	Message    string `gorm:"not null"`
	IsGuess    bool   `gorm:"not null;default:false"`
	IsCorrect  bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

func (GormChatMessage) TableName() string { return "chat_messages" }

// GormModerationLog 审计表模型
type GormModerationLog struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	GameID     string `gorm:"type:uuid;index"`
	Action     string `gorm:"size:32;not null"`
	ActorID    string `gorm:"type:uuid"`
	TargetID   string `gorm:"type:uuid"`
	TargetName string `gorm:"size:64"`
	Reason     string `gorm:""`
	CreatedAt  time.Time
}

func (GormModerationLog) TableName() string { return "moderation_logs" }

// GormInviteCode 邀请码表模型
type GormInviteCode struct {
	Code      string `gorm:"primaryKey;size:16"`
	Used      bool   `gorm:"not null;default:false"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (GormInviteCode) TableName() string { return "invite_codes" }

// --- 模型转换 ---

func (m *GormGame) ToGame() *Game {
	return &Game{
		ID:              m.ID,
		RoomCode:        m.RoomCode,
		HostID:          m.HostID,
		Phase:           GamePhase(m.Phase),
		CurrentRound:    m.CurrentRound,
		TotalRounds:     m.TotalRounds,
		DrawTime:        m.DrawTime,
		MaxPlayers:      m.MaxPlayers,
		Language:        m.Language,
		CurrentDrawerID: m.CurrentDrawerID,
		CurrentWord:     m.CurrentWord,
		WordOptions:     []string(m.WordOptions),
		MaskedWord:      m.MaskedWord,
		TimeLeft:        m.TimeLeft,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func GameToGorm(g *Game) *GormGame {
	return &GormGame{
		ID:              g.ID,
		RoomCode:        g.RoomCode,
		HostID:          g.HostID,
		Phase:           string(g.Phase),
		CurrentRound:    g.CurrentRound,
		TotalRounds:     g.TotalRounds,
		DrawTime:        g.DrawTime,
		MaxPlayers:      g.MaxPlayers,
		Language:        g.Language,
		CurrentDrawerID: g.CurrentDrawerID,
		CurrentWord:     g.CurrentWord,
		WordOptions:     pq.StringArray(g.WordOptions),
		MaskedWord:      g.MaskedWord,
		TimeLeft:        g.TimeLeft,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

func (m *GormPlayer) ToPlayer() *Player {
	return &Player{
		ID:                  m.ID,
		GameID:              m.GameID,
		Name:                m.Name,
		IsHost:              m.IsHost,
		IsReady:             m.IsReady,
		Score:               m.Score,
		HasGuessedCorrectly: m.HasGuessedCorrectly,
		AvatarColor:         m.AvatarColor,
		JoinedAt:            m.JoinedAt,
	}
}

func PlayerToGorm(p *Player) *GormPlayer {
	return &GormPlayer{
		ID:                  p.ID,
		GameID:              p.GameID,
		Name:                p.Name,
		IsHost:              p.IsHost,
		IsReady:             p.IsReady,
		Score:               p.Score,
		HasGuessedCorrectly: p.HasGuessedCorrectly,
		AvatarColor:         p.AvatarColor,
		JoinedAt:            p.JoinedAt,
	}
}

func (m *GormChatMessage) ToChatMessage() *ChatMessage {
	return &ChatMessage{
		ID:         m.ID,
		GameID:     m.GameID,
		PlayerID:   m.PlayerID,
		PlayerName: m.PlayerName,
		Message:    m.Message,
		IsGuess:    m.IsGuess,
		IsCorrect:  m.IsCorrect,
		CreatedAt:  m.CreatedAt,
	}
}

func ChatMessageToGorm(c *ChatMessage) *GormChatMessage {
	return &GormChatMessage{
		ID:         c.ID,
		GameID:     c.GameID,
		PlayerID:   c.PlayerID,
		PlayerName: c.PlayerName,
		Message:    c.Message,
		IsGuess:    c.IsGuess,
		IsCorrect:  c.IsCorrect,
		CreatedAt:  c.CreatedAt,
	}
}
