package server

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/suryanshishere/real-time-interaction-module/auth"
	"github.com/suryanshishere/real-time-interaction-module/polls"
	"github.com/suryanshishere/real-time-interaction-module/utils"

	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// clientEvent is one inbound frame on the live channel.
type clientEvent struct {
	Event       string `json:"event"`
	Code        string `json:"code"`
	OptionIndex *int   `json:"optionIndex"`
}

// serverEvent is one outbound frame: voteUpdate to the room, voteSuccess or
// voteError to the submitter alone.
type serverEvent struct {
	Event   string  `json:"event"`
	Code    string  `json:"code,omitempty"`
	Tally   []int64 `json:"tally,omitempty"`
	Message string  `json:"message,omitempty"`
}

// liveConn serializes writes onto one websocket connection.
type liveConn struct {
	mtx sync.Mutex
	c   *websocket.Conn
}

func (l *liveConn) write(data []byte) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.c.WriteMessage(websocket.TextMessage, data)
}

func (l *liveConn) send(ev serverEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("json, err=%v", err)
		return err
	}
	return l.write(data)
}

// SendVoteUpdate implements rooms.Subscriber.
func (l *liveConn) SendVoteUpdate(code string, tally []int64) error {
	return l.send(serverEvent{Event: "voteUpdate", Code: code, Tally: tally})
}

// live mounts the bidirectional event channel at /ws.
func live(app fiber.Router, opts Options) {
	ws := app.Group("/ws")

	ws.Use(func(c *fiber.Ctx) error {
		// IsWebSocketUpgrade returns true if the client
		// requested upgrade to the WebSocket protocol.
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("credential", auth.TokenFromCookieHeader(c.Get("Cookie")))
			return c.Next()
		}
		return c.SendStatus(426)
	})

	ws.Get("/", websocket.New(func(c *websocket.Conn) {
		conn := &liveConn{c: c}
		credential, _ := c.Locals("credential").(string)

		closeChan := make(chan struct{})
		go func() {
			for {
				select {
				case <-time.After(60 * time.Second):
					if err := conn.write(utils.S2B("HEARTBEAT")); err != nil {
						return
					}
				case <-closeChan:
					return
				}
			}
		}()
		defer close(closeChan)
		defer opts.Rooms.LeaveAll(conn)

		var (
			mt  int
			msg []byte
			err error
		)
		for {
			if mt, msg, err = c.ReadMessage(); err != nil {
				break
			}

			if mt != websocket.TextMessage {
				continue
			}

			req := &clientEvent{}
			if err = json.Unmarshal(msg, req); err != nil {
				conn.send(serverEvent{Event: "voteError", Message: "Invalid request."})
				continue
			}

			switch req.Event {
			case "join":
				if req.Code == "" {
					conn.send(serverEvent{Event: "voteError", Message: "Missing session code."})
					continue
				}
				opts.Rooms.Join(req.Code, conn)

			case "castVote":
				if req.Code == "" || req.OptionIndex == nil {
					conn.send(serverEvent{Event: "voteError", Message: polls.UserMessage(polls.ErrInvalidOption)})
					continue
				}
				idx := *req.OptionIndex
				code := req.Code
				go func() {
					// a disconnect mid-request never rolls the commit
					// back, only the ack becomes undeliverable
					_, err := opts.Pipeline.CastVote(context.Background(), credential, code, idx)
					if err != nil {
						conn.send(serverEvent{Event: "voteError", Message: polls.UserMessage(err)})
						return
					}
					conn.send(serverEvent{Event: "voteSuccess", Message: "Vote recorded."})
				}()

			default:
				conn.send(serverEvent{Event: "voteError", Message: "Unknown event."})
			}
		}
	}))
}
