package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matyaskozubik2/canvas-word-play/models"
)

func TestGuessMatches(t *testing.T) {
	cases := []struct {
		guess, word string
		want        bool
	}{
		{"KOČKA", "KOČKA", true},
		{"kočka", "KOČKA", true},
		{"  kočka  ", "KOČKA", true},
		{"KOCKA", "KOČKA", false}, // 变音符号不折叠
		{"kocka", "KOČKA", false},
		{"mobilní aplikace", "MOBILNÍ APLIKACE", true},
		{"pes", "KOČKA", false},
		{"", "KOČKA", false},
	}
	for _, c := range cases {
		if got := guessMatches(c.guess, c.word); got != c.want {
			t.Errorf("guessMatches(%q, %q) = %v, want %v", c.guess, c.word, got, c.want)
		}
	}
}

func TestGuessPoints(t *testing.T) {
	cases := []struct {
		timeLeft, want int
	}{
		{80, 80},
		{79, 70},
		{45, 40},
		{10, 10},
		{9, 10}, // 保底
		{5, 10},
		{0, 10},
	}
	for _, c := range cases {
		if got := guessPoints(c.timeLeft); got != c.want {
			t.Errorf("guessPoints(%d) = %d, want %d", c.timeLeft, got, c.want)
		}
	}
}

func TestSubmitGuess_CorrectCaseInsensitive(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	word := f.toDrawing(t)

	msg, correct, err := f.room.SubmitGuess(ctx, "p2", strings.ToLower(word))
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if !correct {
		t.Fatalf("Expected correct guess for %q", word)
	}
	if !msg.IsCorrect || !msg.IsGuess {
		t.Errorf("Expected guess flags on message: %+v", msg)
	}
	if strings.EqualFold(msg.Message, word) {
		t.Errorf("Correct guess must not echo the word, got %q", msg.Message)
	}

	p2, _ := f.store.GetPlayer(ctx, "p2")
	if p2.Score != 80 {
		t.Errorf("Expected full 80 points at 80s left, got %d", p2.Score)
	}
}

func TestSubmitGuess_LatePointsFloor(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	start := time.Now()
	word := f.toDrawing(t)

	// 快进到只剩几秒
	if err := f.room.Tick(ctx, start.Add(76*time.Second)); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if _, correct, err := f.room.SubmitGuess(ctx, "p2", word); err != nil || !correct {
		t.Fatalf("Expected correct guess, got correct=%v err=%v", correct, err)
	}
	p2, _ := f.store.GetPlayer(ctx, "p2")
	if p2.Score != 10 {
		t.Errorf("Expected floor of 10 points, got %d", p2.Score)
	}
}

func TestSubmitGuess_WrongGuessIsChat(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	f.toDrawing(t)

	msg, correct, err := f.room.SubmitGuess(ctx, "p2", "definitely wrong")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct {
		t.Fatalf("Expected wrong guess")
	}
	if !msg.IsGuess || msg.IsCorrect {
		t.Errorf("Expected incorrect guess flags: %+v", msg)
	}
	if msg.Message != "definitely wrong" {
		t.Errorf("Wrong guess must echo the text, got %q", msg.Message)
	}

	msgs, _ := f.store.ListChatMessages(ctx, "g1")
	if len(msgs) != 1 {
		t.Errorf("Expected message persisted, got %d", len(msgs))
	}
}

func TestSubmitGuess_SecondCorrectGuessScoresOnce(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	word := f.toDrawing(t)

	if _, correct, _ := f.room.SubmitGuess(ctx, "p2", word); !correct {
		t.Fatalf("Expected first guess correct")
	}
	_, correct, err := f.room.SubmitGuess(ctx, "p2", word)
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct {
		t.Fatalf("Second guess must not score again")
	}
	p2, _ := f.store.GetPlayer(ctx, "p2")
	if p2.Score != 80 {
		t.Errorf("Expected score unchanged at 80, got %d", p2.Score)
	}
}

func TestSubmitGuess_DrawerCannotGuess(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	word := f.toDrawing(t)

	// 画手打出谜底直接丢弃,不落库不广播
	msg, correct, err := f.room.SubmitGuess(ctx, "host", word)
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct || msg != nil {
		t.Fatalf("Drawer typing the word must be dropped: correct=%v msg=%+v", correct, msg)
	}
	host, _ := f.store.GetPlayer(ctx, "host")
	if host.Score != 0 {
		t.Errorf("Drawer must not score by typing the word, got %d", host.Score)
	}
	msgs, _ := f.store.ListChatMessages(ctx, "g1")
	if len(msgs) != 0 {
		t.Errorf("Expected nothing persisted, got %d messages", len(msgs))
	}

	// 画手的普通聊天照常通过
	msg, correct, err = f.room.SubmitGuess(ctx, "host", "hello everyone")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct || msg == nil || msg.IsGuess {
		t.Fatalf("Drawer chat must pass through: correct=%v msg=%+v", correct, msg)
	}
}

func TestSubmitGuess_GuessedPlayerCannotRevealWord(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	word := f.toDrawing(t)

	if _, correct, _ := f.room.SubmitGuess(ctx, "p2", word); !correct {
		t.Fatalf("Expected p2 correct")
	}

	// 猜中的人再打谜底(大小写、空白都算)必须静默丢弃
	for _, text := range []string{word, strings.ToLower(word), "  " + word + "  "} {
		msg, correct, err := f.room.SubmitGuess(ctx, "p2", text)
		if err != nil {
			t.Fatalf("SubmitGuess failed: %v", err)
		}
		if correct || msg != nil {
			t.Fatalf("Guessed player typing %q must be dropped: msg=%+v", text, msg)
		}
	}

	// 聊天记录里任何地方都不能出现谜底原文
	msgs, err := f.store.ListChatMessages(ctx, "g1")
	if err != nil {
		t.Fatalf("ListChatMessages failed: %v", err)
	}
	for _, m := range msgs {
		if strings.EqualFold(strings.TrimSpace(m.Message), word) {
			t.Fatalf("Secret word leaked into chat: %+v", m)
		}
	}

	// 猜中后的普通聊天不受影响
	msg, correct, err := f.room.SubmitGuess(ctx, "p2", "that was easy")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct || msg == nil || msg.IsGuess {
		t.Fatalf("Post-guess chat must pass through: correct=%v msg=%+v", correct, msg)
	}
}

func TestSubmitGuess_AllGuessedEndsRoundEarly(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	ctx := context.Background()
	word := f.toDrawing(t)

	if _, correct, _ := f.room.SubmitGuess(ctx, "p2", word); !correct {
		t.Fatalf("Expected p2 correct")
	}
	if f.room.Snapshot().Phase != models.PhaseDrawing {
		t.Fatalf("Round must continue while someone has not guessed")
	}

	if _, correct, _ := f.room.SubmitGuess(ctx, "p3", word); !correct {
		t.Fatalf("Expected p3 correct")
	}
	if f.room.Snapshot().Phase != models.PhaseResults {
		t.Fatalf("Expected early round end once everyone guessed, got %s", f.room.Snapshot().Phase)
	}
}

func TestSubmitGuess_OutsideDrawingIsChat(t *testing.T) {
	f := newFixture(t, 3, "host", "p2")
	ctx := context.Background()

	msg, correct, err := f.room.SubmitGuess(ctx, "p2", "hello")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correct || msg.IsGuess {
		t.Fatalf("Lobby chat must not be treated as a guess")
	}
}

func TestGuessHook(t *testing.T) {
	f := newFixture(t, 3, "host", "p2", "p3")
	var correctCount, wrongCount int
	f.mgr.hooks.Guess = func(correct bool) {
		if correct {
			correctCount++
		} else {
			wrongCount++
		}
	}
	ctx := context.Background()
	word := f.toDrawing(t)

	if _, _, err := f.room.SubmitGuess(ctx, "p2", "nope"); err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if _, _, err := f.room.SubmitGuess(ctx, "p2", word); err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if correctCount != 1 || wrongCount != 1 {
		t.Errorf("Expected 1 correct and 1 wrong, got %d/%d", correctCount, wrongCount)
	}
}
