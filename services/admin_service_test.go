package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
	"github.com/matyaskozubik2/canvas-word-play/roster"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

func newService(t *testing.T) (*AdminService, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	game := &models.Game{
		ID:          "g1",
		RoomCode:    "AAAAAA",
		HostID:      "host",
		Phase:       models.PhaseWaiting,
		TotalRounds: 3,
		DrawTime:    80,
		MaxPlayers:  8,
		Language:    "cs",
	}
	if err := store.CreateGame(context.Background(), game); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	base := time.Now()
	for i, id := range []string{"host", "p2", "p3"} {
		err := store.AddPlayer(context.Background(), &models.Player{
			ID:       id,
			GameID:   "g1",
			Name:     "player-" + id,
			IsHost:   i == 0,
			JoinedAt: base.Add(time.Duration(i) * time.Second),
		}, 8)
		if err != nil {
			t.Fatalf("AddPlayer failed: %v", err)
		}
	}
	return NewAdminService(store, roster.NewRoster(store)), store
}

func TestKickPlayer_WritesAudit(t *testing.T) {
	svc, store := newService(t)

	target, err := svc.KickPlayer(context.Background(), "g1", "host", "p2", "spamming")
	if err != nil {
		t.Fatalf("KickPlayer failed: %v", err)
	}
	if target.ID != "p2" {
		t.Errorf("Wrong target: %s", target.ID)
	}

	logs := store.ModerationLogs()
	if len(logs) != 1 {
		t.Fatalf("Expected one audit entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Action != "kick" || entry.ActorID != "host" || entry.TargetID != "p2" || entry.Reason != "spamming" {
		t.Errorf("Bad audit entry: %+v", entry)
	}
	if entry.TargetName != "player-p2" {
		t.Errorf("Audit must keep the name of the removed player, got %q", entry.TargetName)
	}
}

func TestKickPlayer_NonHostLeavesNoAudit(t *testing.T) {
	svc, store := newService(t)

	if _, err := svc.KickPlayer(context.Background(), "g1", "p2", "p3", ""); err != roster.ErrNotHost {
		t.Fatalf("Expected ErrNotHost, got %v", err)
	}
	if len(store.ModerationLogs()) != 0 {
		t.Errorf("Failed kick must not be audited")
	}
}

func TestAuthorize(t *testing.T) {
	svc, store := newService(t)
	store.SeedInviteCode("ADMIN1")

	if err := svc.Authorize(context.Background(), "ADMIN1"); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if err := svc.Authorize(context.Background(), "ADMIN1"); err != persistence.ErrInviteCodeInvalid {
		t.Errorf("Expected single-use code, got %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if _, err := store.AwardCorrectGuess(ctx, "p2", 80); err != nil {
		t.Fatalf("AwardCorrectGuess failed: %v", err)
	}
	if _, err := store.AwardCorrectGuess(ctx, "p3", 40); err != nil {
		t.Fatalf("AwardCorrectGuess failed: %v", err)
	}

	entries, err := svc.Leaderboard(ctx, "g1")
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].PlayerID != "p2" || entries[0].Rank != 1 || entries[0].Score != 80 {
		t.Errorf("Bad first entry: %+v", entries[0])
	}
	if entries[1].PlayerID != "p3" || entries[2].PlayerID != "host" {
		t.Errorf("Bad order: %+v", entries)
	}
}
