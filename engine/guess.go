// engine/guess.go
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
)

// 猜中时写进聊天的占位文本,不能把词本身泄露给还没猜中的人。
const correctGuessText = "guessed the word!"

// guessMatches 去首尾空白并做大小写折叠比较。不做变音符号归一,
// KOČKA 和 KOCKA 不算同一个词。
func guessMatches(guess, word string) bool {
	return strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(word))
}

// guessPoints 按剩余秒数计分:每满 10 秒 10 分,保底 10 分。
func guessPoints(timeLeft int) int {
	points := timeLeft / 10 * 10
	if points < 10 {
		points = 10
	}
	return points
}

// SubmitGuess 处理聊天输入。绘画阶段里未猜中的非画手的消息按猜词
// 处理,其余一律是普通聊天。猜中的消息不回显原文。返回落库后的
// 消息和这次是否猜中。
func (r *Room) SubmitGuess(ctx context.Context, playerID, text string) (*models.ChatMessage, bool, error) {
	player, err := r.mgr.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	game := r.game
	r.mu.Unlock()

	msg := &models.ChatMessage{
		ID:         uuid.NewString(),
		GameID:     game.ID,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Message:    text,
		CreatedAt:  time.Now(),
	}

	eligible := game.Phase == models.PhaseDrawing &&
		playerID != game.CurrentDrawerID &&
		!player.HasGuessedCorrectly

	if !eligible {
		// 画手或已猜中的人在绘画阶段打出谜底时静默丢弃,不能替别人泄题
		if game.Phase == models.PhaseDrawing && game.CurrentWord != "" &&
			guessMatches(text, game.CurrentWord) {
			return nil, false, nil
		}
		if err := r.mgr.store.AppendChatMessage(ctx, msg); err != nil {
			return nil, false, err
		}
		return msg, false, nil
	}

	msg.IsGuess = true
	if !guessMatches(text, game.CurrentWord) {
		if r.mgr.hooks.Guess != nil {
			r.mgr.hooks.Guess(false)
		}
		if err := r.mgr.store.AppendChatMessage(ctx, msg); err != nil {
			return nil, false, err
		}
		return msg, false, nil
	}

	// 判重与加分是一条原子更新,同一回合最多计一次分
	awarded, err := r.mgr.store.AwardCorrectGuess(ctx, playerID, guessPoints(game.TimeLeft))
	if err != nil {
		return nil, false, err
	}
	if awarded {
		msg.IsCorrect = true
		msg.Message = correctGuessText
		if r.mgr.hooks.Guess != nil {
			r.mgr.hooks.Guess(true)
		}
		logger.Log.Infow("Correct guess",
			"gameID", game.ID, "playerID", playerID, "timeLeft", game.TimeLeft)
	}
	if err := r.mgr.store.AppendChatMessage(ctx, msg); err != nil {
		return nil, false, err
	}

	if awarded {
		if err := r.maybeEndRoundAllGuessed(ctx); err != nil {
			return nil, false, err
		}
	}
	return msg, awarded, nil
}

// maybeEndRoundAllGuessed 所有非画手都猜中后不用等计时器,直接结算。
func (r *Room) maybeEndRoundAllGuessed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.Phase != models.PhaseDrawing {
		return nil
	}
	players, err := r.mgr.store.ListPlayers(ctx, r.game.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.ID == r.game.CurrentDrawerID {
			continue
		}
		if !p.HasGuessedCorrectly {
			return nil
		}
	}
	return r.endRound(ctx, time.Now(), "everyone guessed")
}
