package models

import (
	"encoding/json"
	"time"
)

// GamePhase 表示房间当前所处的游戏阶段
type GamePhase string

const (
	PhaseWaiting       GamePhase = "waiting"
	PhaseWordSelection GamePhase = "word-selection"
	PhaseDrawing       GamePhase = "drawing"
	PhaseResults       GamePhase = "results"
	PhaseGameOver      GamePhase = "game-over"
)

// GameSettings 创建房间时的配置
type GameSettings struct {
	Rounds     int    `json:"rounds"`
	DrawTime   int    `json:"draw_time"`
	MaxPlayers int    `json:"max_players"`
	Language   string `json:"language"`
}

// Game 是一个房间的权威状态。Phase 之外的易变字段只在对应阶段有意义：
// WordOptions 只在选词阶段、CurrentWord/MaskedWord 只在绘画与结算阶段。
type Game struct {
	ID              string    `json:"id"`
	RoomCode        string    `json:"room_code"`
	HostID          string    `json:"host_id"`
	Phase           GamePhase `json:"phase"`
	CurrentRound    int       `json:"current_round"`
	TotalRounds     int       `json:"total_rounds"`
	DrawTime        int       `json:"draw_time"`
	MaxPlayers      int       `json:"max_players"`
	Language        string    `json:"language"`
	CurrentDrawerID string    `json:"current_drawer_id,omitempty"`
	CurrentWord     string    `json:"current_word,omitempty"`
	WordOptions     []string  `json:"word_options,omitempty"`
	MaskedWord      string    `json:"masked_word,omitempty"`
	TimeLeft        int       `json:"time_left"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Sanitized returns a copy safe to send to the given viewer. The secret word
// and the option set are only visible to the current drawer until the round
// is over.
func (g *Game) Sanitized(viewerID string) *Game {
	out := *g
	if viewerID == g.CurrentDrawerID {
		return &out
	}
	switch g.Phase {
	case PhaseWordSelection:
		out.WordOptions = nil
		out.CurrentWord = ""
	case PhaseDrawing:
		out.CurrentWord = ""
	}
	return &out
}

// Player 玩家。房间删除时级联删除。
type Player struct {
	ID                  string    `json:"id"`
	GameID              string    `json:"game_id"`
	Name                string    `json:"name"`
	IsHost              bool      `json:"is_host"`
	IsReady             bool      `json:"is_ready"`
	Score               int       `json:"score"`
	HasGuessedCorrectly bool      `json:"has_guessed_correctly"`
	AvatarColor         string    `json:"avatar_color"`
	JoinedAt            time.Time `json:"joined_at"`
}

// ChatMessage 聊天与猜词消息，只追加，创建后不再修改。
// PlayerName 冗余存储，玩家被移除后消息仍可显示。
type ChatMessage struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	IsGuess    bool      `json:"is_guess"`
	IsCorrect  bool      `json:"is_correct"`
	CreatedAt  time.Time `json:"created_at"`
}

// ModerationLog 管理操作审计记录
type ModerationLog struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	TargetID   string    `json:"target_id"`
	TargetName string    `json:"target_name"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// InviteCode 管理后台的一次性邀请码
type InviteCode struct {
	Code      string     `json:"code"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Change feed tables.
const (
	TableGames        = "games"
	TablePlayers      = "players"
	TableChatMessages = "chat_messages"
)

// Change feed actions.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangeEvent 是持久层变更订阅推送的行级事件。Row 是变更后整行的 JSON，
// 删除事件携带删除前的行。
type ChangeEvent struct {
	Table  string          `json:"table"`
	Action string          `json:"action"`
	GameID string          `json:"game_id"`
	Row    json.RawMessage `json:"row,omitempty"`
}

// StrokeSegment 笔画分段类型
type StrokeSegment string

const (
	SegmentStart StrokeSegment = "start"
	SegmentDraw  StrokeSegment = "draw"
	SegmentEnd   StrokeSegment = "end"
)

// StrokeEvent 单个笔画点，只走广播通道，不落库。
type StrokeEvent struct {
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Color     string        `json:"color"`
	Size      int           `json:"size"`
	IsEraser  bool          `json:"is_eraser"`
	Segment   StrokeSegment `json:"segment"`
	PlayerID  string        `json:"player_id"`
	Timestamp int64         `json:"timestamp"`
}

// ClearEvent 清空画布事件
type ClearEvent struct {
	PlayerID  string `json:"player_id"`
	Timestamp int64  `json:"timestamp"`
}

// Canvas event kinds carried on the broadcast channel.
const (
	CanvasKindStroke = "drawing_stroke"
	CanvasKindClear  = "canvas_clear"
)

// CanvasEvent is the union delivered to broadcast subscribers.
type CanvasEvent struct {
	Kind   string       `json:"kind"`
	Stroke *StrokeEvent `json:"stroke,omitempty"`
	Clear  *ClearEvent  `json:"clear,omitempty"`
}

// OriginPlayer returns the id of the player that produced the event.
func (e CanvasEvent) OriginPlayer() string {
	switch {
	case e.Stroke != nil:
		return e.Stroke.PlayerID
	case e.Clear != nil:
		return e.Clear.PlayerID
	}
	return ""
}
