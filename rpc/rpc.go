// rpc/rpc.go
package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/matyaskozubik2/canvas-word-play/engine"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server and registers the admin surface.
func NewServer(addr string, admin *AdminAPI) (*Server, error) {
	if err := rpc.RegisterName("Admin", admin); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminAPI 运维用的带外管理面。所有调用都要先用一次性邀请码换权限。
// 方法签名遵循 net/rpc 约定。
type AdminAPI struct {
	admin   *services.AdminService
	engines *engine.Manager
}

func NewAdminAPI(admin *services.AdminService, engines *engine.Manager) *AdminAPI {
	return &AdminAPI{admin: admin, engines: engines}
}

type RoomInfo struct {
	GameID   string
	RoomCode string
	Phase    string
	Round    int
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

func (a *AdminAPI) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, snap := range a.engines.Snapshots() {
		reply.Rooms = append(reply.Rooms, RoomInfo{
			GameID:   snap.ID,
			RoomCode: snap.RoomCode,
			Phase:    string(snap.Phase),
			Round:    snap.CurrentRound,
		})
	}
	return nil
}

type KickArgs struct {
	InviteCode string
	GameID     string
	TargetID   string
	Reason     string
}

type KickReply struct {
	TargetName string
}

// KickPlayer 带外踢人:邀请码换权限,以房主身份执行。
func (a *AdminAPI) KickPlayer(args *KickArgs, reply *KickReply) error {
	ctx := context.Background()
	if err := a.admin.Authorize(ctx, args.InviteCode); err != nil {
		return err
	}

	room, err := a.engines.Get(args.GameID)
	if err != nil {
		return err
	}
	hostID := room.Snapshot().HostID

	target, err := a.admin.KickPlayer(ctx, args.GameID, hostID, args.TargetID, args.Reason)
	if err != nil {
		return err
	}
	if err := room.OnPlayerRemoved(ctx, args.TargetID); err != nil {
		return err
	}
	reply.TargetName = target.Name
	return nil
}

type LeaderboardArgs struct {
	GameID string
}

type LeaderboardReply struct {
	Entries []services.LeaderboardEntry
}

func (a *AdminAPI) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := a.admin.Leaderboard(context.Background(), args.GameID)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}
