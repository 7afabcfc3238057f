// 简易命令行客户端,联调用:
//
//	create <名字>          创建房间
//	join <房码> <名字>     加入房间
//	start                  开局(房主)
//	word <词>              选词(画手)
//	say <消息>             聊天 / 猜词
//	stroke                 发一个测试笔画
//	clear                  清空画布
//	leave                  离开房间
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom  = 101
	MsgTypeJoinRoom    = 102
	MsgTypeLeaveRoom   = 103
	MsgTypeStartGame   = 105
	MsgTypeSelectWord  = 106
	MsgTypeChat        = 107
	MsgTypeStroke      = 201
	MsgTypeCanvasClear = 202
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Client started. Try: create Eva")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				name := "tester"
				if len(fields) > 1 {
					name = fields[1]
				}
				err = sendJSON(c, MsgTypeCreateRoom, map[string]any{"player_name": name, "settings": map[string]any{}})
			case "join":
				if len(fields) < 3 {
					log.Println("Usage: join <code> <name>")
					continue
				}
				err = sendJSON(c, MsgTypeJoinRoom, map[string]string{"room_code": fields[1], "player_name": fields[2]})
			case "start":
				err = send(c, MsgTypeStartGame, []byte{})
			case "word":
				if len(fields) < 2 {
					log.Println("Usage: word <word>")
					continue
				}
				err = sendJSON(c, MsgTypeSelectWord, map[string]string{"word": strings.Join(fields[1:], " ")})
			case "say":
				err = sendJSON(c, MsgTypeChat, map[string]string{"message": strings.Join(fields[1:], " ")})
			case "stroke":
				err = sendJSON(c, MsgTypeStroke, map[string]any{
					"x": 0.5, "y": 0.5, "color": "#000000", "size": 4, "segment": "start",
				})
			case "clear":
				err = send(c, MsgTypeCanvasClear, []byte{})
			case "leave":
				err = send(c, MsgTypeLeaveRoom, []byte{})
			default:
				log.Printf("Unknown command %q", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
