// network/protocol.go
// 帧内负载一律是 JSON。1xx 房间操作,2xx 画布流,3xx 服务器推送。
package network

import "github.com/matyaskozubik2/canvas-word-play/models"

const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2

	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103
	MsgTypeReady      = 104
	MsgTypeStartGame  = 105
	MsgTypeSelectWord = 106
	MsgTypeChat       = 107
	MsgTypeKickPlayer = 108

	MsgTypeStroke      = 201
	MsgTypeCanvasClear = 202

	MsgTypeRoomSnapshot = 301
	MsgTypeRoomChange   = 302
	MsgTypeCanvasEvent  = 303
	MsgTypeChatMessage  = 304
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateRoomRequest struct {
	PlayerName string              `json:"player_name"`
	Settings   models.GameSettings `json:"settings"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

type SelectWordRequest struct {
	Word string `json:"word"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type KickRequest struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

// RoomSnapshot 入房与对账时下发的全量状态。Game 按观看者视角脱敏。
type RoomSnapshot struct {
	Game     *models.Game         `json:"game"`
	You      *models.Player       `json:"you"`
	Players  []models.Player      `json:"players"`
	Messages []models.ChatMessage `json:"messages"`
}
