// persistence/notify.go
package persistence

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/models"
)

// 所有表的行级变更都走同一个 NOTIFY 通道,负载自带表名与房间 id。
const notifyChannel = "cwp_changes"

// 触发器把变更后的整行连同表名、操作、房间 id 打成 JSON 推到通道,
// 删除时携带删除前的行。游戏表的房间 id 是行自己的 id。
const changeFeedSQL = `
CREATE OR REPLACE FUNCTION cwp_notify_change() RETURNS trigger AS $$
DECLARE
	row_data json;
	room_id text;
BEGIN
	IF TG_OP = 'DELETE' THEN
		row_data := row_to_json(OLD);
	ELSE
		row_data := row_to_json(NEW);
	END IF;
	IF TG_TABLE_NAME = 'games' THEN
		room_id := row_data->>'id';
	ELSE
		room_id := row_data->>'game_id';
	END IF;
	PERFORM pg_notify('cwp_changes', json_build_object(
		'table', TG_TABLE_NAME,
		'action', lower(TG_OP),
		'game_id', room_id,
		'row', row_data
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS cwp_games_change ON games;
CREATE TRIGGER cwp_games_change
	AFTER INSERT OR UPDATE OR DELETE ON games
	FOR EACH ROW EXECUTE FUNCTION cwp_notify_change();

DROP TRIGGER IF EXISTS cwp_players_change ON players;
CREATE TRIGGER cwp_players_change
	AFTER INSERT OR UPDATE OR DELETE ON players
	FOR EACH ROW EXECUTE FUNCTION cwp_notify_change();

DROP TRIGGER IF EXISTS cwp_chat_messages_change ON chat_messages;
CREATE TRIGGER cwp_chat_messages_change
	AFTER INSERT OR UPDATE OR DELETE ON chat_messages
	FOR EACH ROW EXECUTE FUNCTION cwp_notify_change();
`

func installChangeFeed(db *gorm.DB) error {
	return db.Exec(changeFeedSQL).Error
}

// changeListener 用一条专用连接 LISTEN,把通知解析后转给 feed。
// lib/pq 的 Listener 自带断线重连,重连窗口内丢失的通知由客户端
// 重新拉快照补齐。
type changeListener struct {
	listener *pq.Listener
	done     chan struct{}
}

func newChangeListener(dsn string, f *feed) *changeListener {
	l := &changeListener{done: make(chan struct{})}
	l.listener = pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Errorw("Change feed listener event", "event", ev, "error", err)
		}
	})
	if err := l.listener.Listen(notifyChannel); err != nil {
		logger.Log.Errorw("Failed to LISTEN on change feed channel", "error", err)
	}
	go l.run(f)
	return l
}

func (l *changeListener) run(f *feed) {
	for {
		select {
		case <-l.done:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// 重连后 lib/pq 发送 nil 通知
				continue
			}
			var ev models.ChangeEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				logger.Log.Warnw("Failed to decode change notification", "error", err)
				continue
			}
			f.publish(ev)
		case <-time.After(90 * time.Second):
			if err := l.listener.Ping(); err != nil {
				logger.Log.Errorw("Change feed connection lost", "error", err)
			}
		}
	}
}

func (l *changeListener) stop() {
	close(l.done)
	if err := l.listener.Close(); err != nil {
		logger.Log.Warnw("Failed to close change feed listener", "error", err)
	}
}
