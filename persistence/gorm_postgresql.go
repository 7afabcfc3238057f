// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lib/pq"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
)

// GormPostgreSQL 生产环境存储。写路径走 gorm,变更事件不在写路径上发布,
// 而是由数据库触发器经 LISTEN/NOTIFY 推回(见 notify.go),
// 所以任何写入方造成的变更都会到达订阅者。
type GormPostgreSQL struct {
	db       *gorm.DB
	dsn      string
	feed     *feed
	listener *changeListener
}

// NewGormPostgreSQL 创建并初始化 PostgreSQL 连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgresql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 连接池设置
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store := &GormPostgreSQL{db: db, dsn: dsn, feed: newFeed()}
	if err := store.autoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := installChangeFeed(db); err != nil {
		return nil, fmt.Errorf("failed to install change feed: %w", err)
	}
	store.listener = newChangeListener(dsn, store.feed)

	logger.Log.Infow("PostgreSQL connected", "host", host, "port", port, "dbname", dbname)
	return store, nil
}

func (s *GormPostgreSQL) autoMigrate() error {
	return s.db.AutoMigrate(
		&models.GormGame{},
		&models.GormPlayer{},
		&models.GormChatMessage{},
		&models.GormModerationLog{},
		&models.GormInviteCode{},
	)
}

// --- games ---

func (s *GormPostgreSQL) CreateGame(ctx context.Context, game *models.Game) error {
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now
	err := s.db.WithContext(ctx).Create(models.GameToGorm(game)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRoomCode
	}
	return err
}

func (s *GormPostgreSQL) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var row models.GormGame
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToGame(), nil
}

func (s *GormPostgreSQL) GetGameByRoomCode(ctx context.Context, code string) (*models.Game, error) {
	var row models.GormGame
	err := s.db.WithContext(ctx).First(&row, "upper(room_code) = upper(?)", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToGame(), nil
}

func (s *GormPostgreSQL) UpdateGame(ctx context.Context, id string, update GameUpdate) (*models.Game, error) {
	return s.UpdateGameIf(ctx, id, GameExpect{}, update)
}

// UpdateGameIf 把前置条件编译进 UPDATE 的 WHERE 子句,整条语句原子执行,
// 失败方会收到 ErrPhaseChanged,不会出现交错写。
func (s *GormPostgreSQL) UpdateGameIf(ctx context.Context, id string, expect GameExpect, update GameUpdate) (*models.Game, error) {
	values := gameUpdateValues(update)
	if len(values) == 0 {
		return s.GetGame(ctx, id)
	}
	values["updated_at"] = time.Now()

	tx := s.db.WithContext(ctx).Model(&models.GormGame{}).Where("id = ?", id)
	if expect.Phase != nil {
		tx = tx.Where("phase = ?", string(*expect.Phase))
	}
	if expect.CurrentRound != nil {
		tx = tx.Where("current_round = ?", *expect.CurrentRound)
	}
	if expect.CurrentDrawerID != nil {
		tx = tx.Where("current_drawer_id = ?", *expect.CurrentDrawerID)
	}

	res := tx.Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetGame(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrPhaseChanged
	}
	return s.GetGame(ctx, id)
}

func gameUpdateValues(update GameUpdate) map[string]any {
	values := make(map[string]any)
	if update.Phase != nil {
		values["phase"] = string(*update.Phase)
	}
	if update.HostID != nil {
		values["host_id"] = *update.HostID
	}
	if update.CurrentRound != nil {
		values["current_round"] = *update.CurrentRound
	}
	if update.CurrentDrawerID != nil {
		values["current_drawer_id"] = *update.CurrentDrawerID
	}
	if update.CurrentWord != nil {
		values["current_word"] = *update.CurrentWord
	}
	if update.WordOptions != nil {
		values["word_options"] = pq.StringArray(*update.WordOptions)
	}
	if update.MaskedWord != nil {
		values["masked_word"] = *update.MaskedWord
	}
	if update.TimeLeft != nil {
		values["time_left"] = *update.TimeLeft
	}
	return values
}

func (s *GormPostgreSQL) DeleteGame(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.GormGame{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- players ---

// AddPlayer 在事务里锁房间行后检查阶段与容量,并发加入不会超员。
func (s *GormPostgreSQL) AddPlayer(ctx context.Context, player *models.Player, maxPlayers int) error {
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.GormGame
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&game, "id = ?", player.GameID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if game.Phase != string(models.PhaseWaiting) {
			return ErrGameAlreadyStarted
		}

		var count int64
		if err := tx.Model(&models.GormPlayer{}).Where("game_id = ?", player.GameID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxPlayers) {
			return ErrRoomFull
		}
		return tx.Create(models.PlayerToGorm(player)).Error
	})
}

func (s *GormPostgreSQL) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var row models.GormPlayer
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToPlayer(), nil
}

func (s *GormPostgreSQL) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	var rows []models.GormPlayer
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("joined_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	players := make([]models.Player, 0, len(rows))
	for i := range rows {
		players = append(players, *rows[i].ToPlayer())
	}
	return players, nil
}

func (s *GormPostgreSQL) UpdatePlayer(ctx context.Context, id string, update PlayerUpdate) (*models.Player, error) {
	values := make(map[string]any)
	if update.IsHost != nil {
		values["is_host"] = *update.IsHost
	}
	if update.IsReady != nil {
		values["is_ready"] = *update.IsReady
	}
	if update.HasGuessedCorrectly != nil {
		values["has_guessed_correctly"] = *update.HasGuessedCorrectly
	}
	if len(values) > 0 {
		res := s.db.WithContext(ctx).Model(&models.GormPlayer{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetPlayer(ctx, id)
}

// AwardCorrectGuess 单条 UPDATE 完成判重与加分,同一回合重复猜中不会重复计分。
func (s *GormPostgreSQL) AwardCorrectGuess(ctx context.Context, playerID string, points int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("id = ? AND has_guessed_correctly = ?", playerID, false).
		Updates(map[string]any{
			"has_guessed_correctly": true,
			"score":                 gorm.Expr("score + ?", points),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPlayer(ctx, playerID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *GormPostgreSQL) ResetGuessFlags(ctx context.Context, gameID string) error {
	return s.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("game_id = ? AND has_guessed_correctly = ?", gameID, true).
		Update("has_guessed_correctly", false).Error
}

func (s *GormPostgreSQL) DeletePlayer(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.GormPlayer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- chat ---

func (s *GormPostgreSQL) AppendChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(models.ChatMessageToGorm(msg)).Error
}

func (s *GormPostgreSQL) ListChatMessages(ctx context.Context, gameID string) ([]models.ChatMessage, error) {
	var rows []models.GormChatMessage
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	msgs := make([]models.ChatMessage, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, *rows[i].ToChatMessage())
	}
	return msgs, nil
}

func (s *GormPostgreSQL) ClearChatMessages(ctx context.Context, gameID string) error {
	return s.db.WithContext(ctx).Delete(&models.GormChatMessage{}, "game_id = ?", gameID).Error
}

// --- admin ---

func (s *GormPostgreSQL) AddModerationLog(ctx context.Context, entry *models.ModerationLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&models.GormModerationLog{
		ID:         entry.ID,
		GameID:     entry.GameID,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		TargetID:   entry.TargetID,
		TargetName: entry.TargetName,
		Reason:     entry.Reason,
		CreatedAt:  entry.CreatedAt,
	}).Error
}

// UseInviteCode 单条 UPDATE 保证一码一用。
func (s *GormPostgreSQL) UseInviteCode(ctx context.Context, code string) error {
	res := s.db.WithContext(ctx).Model(&models.GormInviteCode{}).
		Where("code = ? AND used = ?", code, false).
		Updates(map[string]any{"used": true, "used_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInviteCodeInvalid
	}
	return nil
}

func (s *GormPostgreSQL) Subscribe(gameID string) (<-chan models.ChangeEvent, func()) {
	return s.feed.subscribe(gameID)
}

func (s *GormPostgreSQL) Close() error {
	if s.listener != nil {
		s.listener.stop()
	}
	s.feed.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
