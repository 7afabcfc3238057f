// server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matyaskozubik2/canvas-word-play/broadcast"
	"github.com/matyaskozubik2/canvas-word-play/config"
	"github.com/matyaskozubik2/canvas-word-play/engine"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/monitor"
	"github.com/matyaskozubik2/canvas-word-play/network"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
	"github.com/matyaskozubik2/canvas-word-play/registry"
	"github.com/matyaskozubik2/canvas-word-play/roster"
	cwprpc "github.com/matyaskozubik2/canvas-word-play/rpc"
	"github.com/matyaskozubik2/canvas-word-play/services"
	"github.com/matyaskozubik2/canvas-word-play/session"
	"github.com/matyaskozubik2/canvas-word-play/timer"
	"github.com/matyaskozubik2/canvas-word-play/wordbank"
)

type GameServer struct {
	addr     string
	upgrader websocket.Upgrader

	store    persistence.Store
	registry *registry.Registry
	roster   *roster.Roster
	engines  *engine.Manager
	hub      *broadcast.Hub
	sessions *session.Manager
	admin    *services.AdminService
	mon      *monitor.Monitor
	timers   *timer.Manager

	rpcServer    *cwprpc.Server
	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:         cfg.Server.HTTPAddress,
		store:        store,
		mon:          mon,
		sessions:     session.NewManager(),
		timers:       timer.NewManager(),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.registry = registry.NewRegistry(store, cfg.Game)
	s.roster = roster.NewRoster(store)
	s.admin = services.NewAdminService(store, s.roster)

	hooks := engine.Hooks{}
	if mon != nil {
		hooks = engine.Hooks{
			RoomOpened: mon.RoomOpened,
			RoomClosed: mon.RoomClosed,
			Guess:      mon.ObserveGuess,
		}
	}
	s.engines = engine.NewManager(store, wordbank.NewBank(), cfg.Game, s.timers, hooks)

	// 画布流鉴权绑定到引擎:只有绘画阶段的当前画手可以发笔画
	s.hub = broadcast.NewHub(s.engines.IsCurrentDrawer)
	if mon != nil {
		s.hub.SetDeliveryHook(mon.AddStrokesDelivered)
	}

	// 初始化RPC服务器
	rpcServer, err := cwprpc.NewServer(cfg.Server.RPCAddress, cwprpc.NewAdminAPI(s.admin, s.engines))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

// heartbeatInterval 客户端心跳周期,读超时按两个周期算。
const heartbeatInterval = 30 * time.Second

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessions.Add(sess)
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)
		s.sessions.Remove(sess.ID)
		s.leaveCurrentRoom(sess)
		wsConn.Close()
		if s.mon != nil {
			s.mon.DecOnlinePlayers()
		}
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	if s.mon != nil {
		s.mon.IncMessagesReceived()
		defer func() { s.mon.ObserveMessageLatency(time.Since(start)) }()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// 心跳续期读超时,超过两个周期没消息连接会被读循环关掉
		sess.Conn.SetHeartbeat(heartbeatInterval)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeReady:
		s.handleReady(sess, packet)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess)
	case network.MsgTypeSelectWord:
		s.handleSelectWord(sess, packet)
	case network.MsgTypeChat:
		s.handleChat(sess, packet)
	case network.MsgTypeKickPlayer:
		s.handleKick(sess, packet)
	case network.MsgTypeStroke:
		s.handleStroke(sess, packet)
	case network.MsgTypeCanvasClear:
		s.handleCanvasClear(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) sendError(sess *session.Session, code string, err error) {
	resp := network.ErrorResponse{Code: code, Message: err.Error()}
	if serr := sess.SendJSON(network.MsgTypeError, resp); serr != nil {
		logger.Log.Debugw("Failed to send error", "sessionID", sess.ID, "error", serr)
	}
}

// sendSnapshot 下发按观看者脱敏的全量房间状态。
func (s *GameServer) sendSnapshot(sess *session.Session, game *models.Game, you *models.Player) {
	ctx := context.Background()
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		s.sendError(sess, "snapshot", err)
		return
	}
	messages, err := s.store.ListChatMessages(ctx, game.ID)
	if err != nil {
		s.sendError(sess, "snapshot", err)
		return
	}
	snap := network.RoomSnapshot{
		Game:     game.Sanitized(sess.PlayerID),
		You:      you,
		Players:  players,
		Messages: messages,
	}
	if err := sess.SendJSON(network.MsgTypeRoomSnapshot, snap); err != nil {
		logger.Log.Debugw("Failed to send snapshot", "sessionID", sess.ID, "error", err)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req network.CreateRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	if sess.GameID != "" {
		s.leaveCurrentRoom(sess)
	}

	game, host, err := s.registry.CreateRoom(context.Background(), req.PlayerName, req.Settings)
	if err != nil {
		s.sendError(sess, "create_room", err)
		return
	}

	s.engines.Ensure(game)
	sess.PlayerID = host.ID
	sess.GameID = game.ID
	sess.Attach(s.store, s.hub)
	s.sendSnapshot(sess, game, host)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	if sess.GameID != "" {
		s.leaveCurrentRoom(sess)
	}

	game, player, err := s.roster.JoinRoom(context.Background(), req.RoomCode, req.PlayerName)
	if err != nil {
		s.sendError(sess, "join_room", err)
		return
	}

	s.engines.Ensure(game)
	sess.PlayerID = player.ID
	sess.GameID = game.ID
	sess.Attach(s.store, s.hub)
	s.sendSnapshot(sess, game, player)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	s.leaveCurrentRoom(sess)
}

// leaveCurrentRoom 会话离房的共用收尾:退订、把玩家移出名单、
// 房间空了就解散,画手走了就催引擎推进。
func (s *GameServer) leaveCurrentRoom(sess *session.Session) {
	if sess.GameID == "" {
		return
	}
	gameID, playerID := sess.GameID, sess.PlayerID
	sess.Detach()
	sess.GameID = ""
	sess.PlayerID = ""

	ctx := context.Background()
	_, roomDeleted, err := s.roster.LeavePlayer(ctx, playerID)
	if err != nil {
		if !errors.Is(err, roster.ErrPlayerNotFound) {
			logger.Log.Errorw("Failed to remove player", "playerID", playerID, "error", err)
		}
		return
	}
	if roomDeleted {
		s.engines.Remove(gameID)
		s.hub.CloseRoom(gameID)
		return
	}
	if room, err := s.engines.Get(gameID); err == nil {
		if err := room.OnPlayerRemoved(ctx, playerID); err != nil {
			logger.Log.Errorw("Failed to advance after player left", "gameID", gameID, "error", err)
		}
	}
}

func (s *GameServer) handleReady(sess *session.Session, packet *network.Packet) {
	var req network.ReadyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	room, err := s.engines.Get(sess.GameID)
	if err != nil {
		s.sendError(sess, "ready", err)
		return
	}
	if err := room.ToggleReady(context.Background(), sess.PlayerID, req.Ready); err != nil {
		s.sendError(sess, "ready", err)
	}
}

func (s *GameServer) handleStartGame(sess *session.Session) {
	room, err := s.engines.Get(sess.GameID)
	if err != nil {
		s.sendError(sess, "start_game", err)
		return
	}
	if err := room.StartGame(context.Background(), sess.PlayerID); err != nil {
		s.sendError(sess, "start_game", err)
	}
}

func (s *GameServer) handleSelectWord(sess *session.Session, packet *network.Packet) {
	var req network.SelectWordRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	room, err := s.engines.Get(sess.GameID)
	if err != nil {
		s.sendError(sess, "select_word", err)
		return
	}
	if err := room.SelectWord(context.Background(), sess.PlayerID, req.Word); err != nil {
		s.sendError(sess, "select_word", err)
	}
}

func (s *GameServer) handleChat(sess *session.Session, packet *network.Packet) {
	var req network.ChatRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	if req.Message == "" {
		return
	}
	room, err := s.engines.Get(sess.GameID)
	if err != nil {
		s.sendError(sess, "chat", err)
		return
	}
	// 消息落库后经变更订阅推给房间里的每个人,包括发送者自己
	if _, _, err := room.SubmitGuess(context.Background(), sess.PlayerID, req.Message); err != nil {
		s.sendError(sess, "chat", err)
	}
}

func (s *GameServer) handleKick(sess *session.Session, packet *network.Packet) {
	var req network.KickRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	ctx := context.Background()
	gameID := sess.GameID

	target, err := s.admin.KickPlayer(ctx, gameID, sess.PlayerID, req.TargetID, req.Reason)
	if err != nil {
		s.sendError(sess, "kick", err)
		return
	}

	// 断开被踢玩家的所有会话
	for _, ts := range s.sessions.GetByPlayer(target.ID) {
		ts.GameID = ""
		ts.PlayerID = ""
		ts.Close()
		s.sessions.Remove(ts.ID)
	}

	if room, err := s.engines.Get(gameID); err == nil {
		if err := room.OnPlayerRemoved(ctx, target.ID); err != nil {
			logger.Log.Errorw("Failed to advance after kick", "gameID", gameID, "error", err)
		}
	}
}

func (s *GameServer) handleStroke(sess *session.Session, packet *network.Packet) {
	var stroke models.StrokeEvent
	if err := json.Unmarshal(packet.Data, &stroke); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}
	stroke.PlayerID = sess.PlayerID
	if stroke.Timestamp == 0 {
		stroke.Timestamp = time.Now().UnixMilli()
	}
	if err := s.hub.PublishStroke(sess.GameID, stroke); err != nil {
		s.sendError(sess, "stroke", err)
	}
}

func (s *GameServer) handleCanvasClear(sess *session.Session, packet *network.Packet) {
	clear := models.ClearEvent{PlayerID: sess.PlayerID, Timestamp: time.Now().UnixMilli()}
	if err := s.hub.PublishClear(sess.GameID, clear); err != nil {
		s.sendError(sess, "canvas_clear", err)
	}
}
