package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/models"
)

func newTestGame(id string) *models.Game {
	return &models.Game{
		ID:          id,
		RoomCode:    "ABC" + id,
		Phase:       models.PhaseWaiting,
		TotalRounds: 3,
		DrawTime:    80,
		MaxPlayers:  8,
		Language:    "cs",
	}
}

func addTestPlayer(t *testing.T, store *MemoryStore, gameID, playerID string, max int) {
	t.Helper()
	err := store.AddPlayer(context.Background(), &models.Player{
		ID:     playerID,
		GameID: gameID,
		Name:   "player-" + playerID,
	}, max)
	if err != nil {
		t.Fatalf("AddPlayer(%s) failed: %v", playerID, err)
	}
}

func TestUpdateGameIf_PhaseMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	_, err := store.UpdateGameIf(ctx, "g1",
		GameExpect{Phase: Ptr(models.PhaseDrawing)},
		GameUpdate{Phase: Ptr(models.PhaseResults)})
	if err != ErrPhaseChanged {
		t.Fatalf("Expected ErrPhaseChanged, got %v", err)
	}

	g, err := store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if g.Phase != models.PhaseWaiting {
		t.Errorf("Failed precondition must not modify the row, phase is %s", g.Phase)
	}
}

func TestUpdateGameIf_OnlyOneWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	game := newTestGame("g1")
	game.Phase = models.PhaseDrawing
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	// 两个写入方同时从 drawing 推进,条件更新保证只有一个成功
	var wg sync.WaitGroup
	wins := make(chan string, 2)
	for _, next := range []models.GamePhase{models.PhaseResults, models.PhaseGameOver} {
		wg.Add(1)
		go func(next models.GamePhase) {
			defer wg.Done()
			_, err := store.UpdateGameIf(ctx, "g1",
				GameExpect{Phase: Ptr(models.PhaseDrawing)},
				GameUpdate{Phase: Ptr(next)})
			if err == nil {
				wins <- string(next)
			}
		}(next)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("Expected exactly one winning transition, got %v", winners)
	}
}

func TestAddPlayer_CapacityUnderConcurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	game := newTestGame("g1")
	game.MaxPlayers = 4
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	var wg sync.WaitGroup
	var added sync.Map
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			err := store.AddPlayer(ctx, &models.Player{ID: id, GameID: "g1", Name: id}, 4)
			if err == nil {
				added.Store(id, true)
			} else if err != ErrRoomFull {
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	players, err := store.ListPlayers(ctx, "g1")
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	if len(players) != 4 {
		t.Fatalf("Expected exactly 4 players, got %d", len(players))
	}
}

func TestAddPlayer_RejectedAfterStart(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := store.UpdateGame(ctx, "g1", GameUpdate{Phase: Ptr(models.PhaseWordSelection)}); err != nil {
		t.Fatalf("UpdateGame failed: %v", err)
	}

	err := store.AddPlayer(ctx, &models.Player{ID: "late", GameID: "g1", Name: "late"}, 8)
	if err != ErrGameAlreadyStarted {
		t.Fatalf("Expected ErrGameAlreadyStarted, got %v", err)
	}
}

func TestListPlayers_OrderedByJoin(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		err := store.AddPlayer(ctx, &models.Player{
			ID:       id,
			GameID:   "g1",
			Name:     id,
			JoinedAt: base.Add(time.Duration(i) * time.Second),
		}, 8)
		if err != nil {
			t.Fatalf("AddPlayer failed: %v", err)
		}
	}

	players, err := store.ListPlayers(ctx, "g1")
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	var got []string
	for _, p := range players {
		got = append(got, p.ID)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected join order %v, got %v", want, got)
		}
	}
}

func TestAwardCorrectGuess_AtMostOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	addTestPlayer(t, store, "g1", "p1", 8)

	var wg sync.WaitGroup
	awarded := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.AwardCorrectGuess(ctx, "p1", 80)
			if err != nil {
				t.Errorf("AwardCorrectGuess failed: %v", err)
				return
			}
			if ok {
				awarded <- true
			}
		}()
	}
	wg.Wait()
	close(awarded)

	count := 0
	for range awarded {
		count++
	}
	if count != 1 {
		t.Fatalf("Expected exactly one award, got %d", count)
	}

	p, _ := store.GetPlayer(ctx, "p1")
	if p.Score != 80 {
		t.Errorf("Expected score 80, got %d", p.Score)
	}
	if !p.HasGuessedCorrectly {
		t.Errorf("Expected guess flag set")
	}
}

func TestResetGuessFlags(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	addTestPlayer(t, store, "g1", "p1", 8)
	addTestPlayer(t, store, "g1", "p2", 8)
	if _, err := store.AwardCorrectGuess(ctx, "p1", 50); err != nil {
		t.Fatalf("AwardCorrectGuess failed: %v", err)
	}

	if err := store.ResetGuessFlags(ctx, "g1"); err != nil {
		t.Fatalf("ResetGuessFlags failed: %v", err)
	}
	p, _ := store.GetPlayer(ctx, "p1")
	if p.HasGuessedCorrectly {
		t.Errorf("Expected guess flag cleared")
	}
	if p.Score != 50 {
		t.Errorf("Reset must keep the score, got %d", p.Score)
	}
}

func TestSubscribe_DeliversChangesFromAnyWriter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if err := store.CreateGame(ctx, newTestGame("g2")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	events, cancel := store.Subscribe("g1")
	defer cancel()

	addTestPlayer(t, store, "g1", "p1", 8)
	addTestPlayer(t, store, "g2", "px", 8) // 另一个房间,不应看到
	if _, err := store.UpdateGame(ctx, "g1", GameUpdate{Phase: Ptr(models.PhaseWordSelection)}); err != nil {
		t.Fatalf("UpdateGame failed: %v", err)
	}

	var got []models.ChangeEvent
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("Timed out waiting for events, got %d", len(got))
		}
	}

	if got[0].Table != models.TablePlayers || got[0].Action != models.ActionInsert {
		t.Errorf("Expected player insert first, got %s/%s", got[0].Table, got[0].Action)
	}
	if got[1].Table != models.TableGames || got[1].Action != models.ActionUpdate {
		t.Errorf("Expected game update second, got %s/%s", got[1].Table, got[1].Action)
	}
	for _, ev := range got {
		if ev.GameID != "g1" {
			t.Errorf("Event leaked from another room: %+v", ev)
		}
	}
}

func TestDeleteGame_Cascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateGame(ctx, newTestGame("g1")); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	addTestPlayer(t, store, "g1", "p1", 8)
	err := store.AppendChatMessage(ctx, &models.ChatMessage{ID: "m1", GameID: "g1", PlayerID: "p1", PlayerName: "p", Message: "hi"})
	if err != nil {
		t.Fatalf("AppendChatMessage failed: %v", err)
	}

	if err := store.DeleteGame(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGame failed: %v", err)
	}
	if _, err := store.GetPlayer(ctx, "p1"); err != ErrNotFound {
		t.Errorf("Expected player removed with the room, got %v", err)
	}
	msgs, _ := store.ListChatMessages(ctx, "g1")
	if len(msgs) != 0 {
		t.Errorf("Expected chat removed with the room, got %d messages", len(msgs))
	}
}

func TestRoomCode_CaseInsensitiveLookupAndUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	game := newTestGame("g1")
	game.RoomCode = "A1B2C3"
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	g, err := store.GetGameByRoomCode(ctx, "a1b2c3")
	if err != nil {
		t.Fatalf("Expected case-insensitive lookup to succeed, got %v", err)
	}
	if g.ID != "g1" {
		t.Errorf("Wrong game: %s", g.ID)
	}

	dup := newTestGame("g2")
	dup.RoomCode = "a1b2c3"
	if err := store.CreateGame(ctx, dup); err != ErrDuplicateRoomCode {
		t.Errorf("Expected ErrDuplicateRoomCode, got %v", err)
	}
}

func TestUseInviteCode_SingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.SeedInviteCode("WELCOME1")

	if err := store.UseInviteCode(ctx, "WELCOME1"); err != nil {
		t.Fatalf("First use failed: %v", err)
	}
	if err := store.UseInviteCode(ctx, "WELCOME1"); err != ErrInviteCodeInvalid {
		t.Errorf("Expected ErrInviteCodeInvalid on reuse, got %v", err)
	}
	if err := store.UseInviteCode(ctx, "NOPE"); err != ErrInviteCodeInvalid {
		t.Errorf("Expected ErrInviteCodeInvalid for unknown code, got %v", err)
	}
}
