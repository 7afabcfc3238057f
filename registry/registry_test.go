package registry

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/matyaskozubik2/canvas-word-play/config"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		DefaultRounds:     3,
		DefaultDrawTime:   80,
		DefaultMaxPlayers: 8,
		DefaultLanguage:   "cs",
		MinPlayers:        2,
		CodeAttempts:      10,
	}
}

func TestCreateRoom_AppliesDefaultsAndHost(t *testing.T) {
	store := persistence.NewMemoryStore()
	reg := NewRegistry(store, testGameConfig())

	game, host, err := reg.CreateRoom(context.Background(), "Matyáš", models.GameSettings{})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	if game.TotalRounds != 3 || game.DrawTime != 80 || game.MaxPlayers != 8 || game.Language != "cs" {
		t.Errorf("Defaults not applied: %+v", game)
	}
	if game.Phase != models.PhaseWaiting {
		t.Errorf("Expected new room in waiting phase, got %s", game.Phase)
	}
	if len(game.RoomCode) != codeLength {
		t.Errorf("Expected %d-char room code, got %q", codeLength, game.RoomCode)
	}
	for _, c := range game.RoomCode {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Errorf("Room code %q contains character outside alphabet", game.RoomCode)
		}
	}

	if !host.IsHost {
		t.Errorf("Expected host flag set")
	}
	if host.ID != game.HostID {
		t.Errorf("Host id mismatch: %s vs %s", host.ID, game.HostID)
	}
	if host.AvatarColor == "" {
		t.Errorf("Expected avatar color assigned")
	}

	players, err := store.ListPlayers(context.Background(), game.ID)
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("Expected host persisted, got %d players", len(players))
	}
}

func TestCreateRoom_UniqueCodes(t *testing.T) {
	store := persistence.NewMemoryStore()
	reg := NewRegistry(store, testGameConfig())

	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		game, _, err := reg.CreateRoom(context.Background(), "host", models.GameSettings{})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if codes[game.RoomCode] {
			t.Fatalf("Duplicate room code %q", game.RoomCode)
		}
		codes[game.RoomCode] = true
	}
}

func TestFindRoomByCode_CaseInsensitive(t *testing.T) {
	store := persistence.NewMemoryStore()
	reg := NewRegistry(store, testGameConfig())

	game, _, err := reg.CreateRoom(context.Background(), "host", models.GameSettings{})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	found, err := reg.FindRoomByCode(context.Background(), strings.ToLower(game.RoomCode))
	if err != nil {
		t.Fatalf("FindRoomByCode failed: %v", err)
	}
	if found.ID != game.ID {
		t.Errorf("Wrong room: %s", found.ID)
	}

	if _, err := reg.FindRoomByCode(context.Background(), "ZZZZZZ"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestCreateRoom_MaxPlayersFloor(t *testing.T) {
	store := persistence.NewMemoryStore()
	reg := NewRegistry(store, testGameConfig())

	game, _, err := reg.CreateRoom(context.Background(), "host", models.GameSettings{MaxPlayers: 1})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if game.MaxPlayers != 2 {
		t.Errorf("Expected max players raised to the minimum, got %d", game.MaxPlayers)
	}
}
