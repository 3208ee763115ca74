package viewserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sasha-s/go-deadlock"

	"plasa/plasa"
	"plasa/views"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = pongWait / 2

	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type webSocket struct {
	conn  *websocket.Conn
	mutex *deadlock.Mutex
}

func (ws *webSocket) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.TextMessage, b)
}

func (ws *webSocket) ping() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// message is a client request on the socket. Op is "subscribe" or
// "unsubscribe"; the rest names the view.
type message struct {
	Op string `json:"op"`
	request
}

func (q request) key() string {
	return fmt.Sprintf("%s/%s/%s", q.Kind, q.ID, q.Account)
}

// push is one update sent to a subscriber. View is set on success, Error
// otherwise.
type push struct {
	Subscription string              `json:"subscription"`
	Anchor       plasa.Anchor        `json:"anchor"`
	Digest       string              `json:"digest,omitempty"`
	View         jsoniter.RawMessage `json:"view,omitempty"`
	Error        *errorBody          `json:"error,omitempty"`
}

func (s *Server) handleWebsocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			plasa.LogCLI("failed to upgrade websocket", 3)
			return
		}
		ws := &webSocket{conn: conn, mutex: &deadlock.Mutex{}}
		ctx, cancel := context.WithCancel(context.Background())
		subs := make(map[string]context.CancelFunc)

		// writer
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := ws.ping(); err != nil {
						plasa.LogCLI("couldn't ping, closing socket", 3)
						cancel()
						return
					}
				}
			}
		}()

		// reader
		go func() {
			defer func() {
				cancel()
				conn.Close()
			}()
			conn.SetReadLimit(maxMessageSize)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				conn.SetReadDeadline(time.Now().Add(pongWait))
				return nil
			})
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						plasa.LogCLI("unexpected close of websocket", 3)
					}
					return
				}
				var m message
				if err := json.Unmarshal(raw, &m); err != nil {
					if err := ws.writeJSON(push{Error: &errorBody{Error: "could not decode request"}}); err != nil {
						plasa.LogCLI(err.Error(), 3)
					}
					continue
				}
				key := m.key()
				switch m.Op {
				case "subscribe":
					if _, ok := subs[key]; ok {
						continue
					}
					sctx, scancel := context.WithCancel(ctx)
					subs[key] = scancel
					go s.follow(sctx, ws, key, m.request)
				case "unsubscribe":
					if scancel, ok := subs[key]; ok {
						scancel()
						delete(subs, key)
					}
				default:
					if err := ws.writeJSON(push{Subscription: key, Error: &errorBody{Error: "unknown op " + m.Op}}); err != nil {
						plasa.LogCLI(err.Error(), 3)
					}
				}
			}
		}()
	}
}

// follow sends the requested view now and again whenever a new anchor changes
// it. A request pinned to a timestamp is sent once.
func (s *Server) follow(ctx context.Context, ws *webSocket, key string, q request) {
	var updates <-chan plasa.Anchor
	if q.At == nil {
		var stop func()
		updates, stop = s.conductor.Subscribe()
		defer stop()
	}
	var last string
	send := func(at *plasa.Anchor) {
		p := s.render(ctx, key, q, at)
		if p.Digest == last {
			return
		}
		last = p.Digest
		if err := ws.writeJSON(p); err != nil {
			plasa.LogCLI(err.Error(), 3)
		}
	}
	send(nil)
	if updates == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-updates:
			send(&a)
		}
	}
}

// render composes q as of at, or as of the request's own anchor when at is nil.
// Errors are rendered too, so a subscriber hears once when a view breaks.
func (s *Server) render(ctx context.Context, key string, q request, at *plasa.Anchor) push {
	p := push{Subscription: key}
	var v interface{}
	var err error
	if at != nil {
		p.Anchor = *at
		v, err = s.conductor.View(ctx, q.Kind, q.ID, q.viewer(), at)
	} else {
		v, err = s.compose(ctx, q)
		if a, ok := s.conductor.Coordinator().Anchors().Latest(); ok {
			p.Anchor = a
		}
	}
	if err != nil {
		body := errorBody{Error: err.Error()}
		if k := plasa.KindOf(err); k != plasa.KindUnknown {
			body.Kind = k.String()
		}
		p.Error = &body
		p.Digest = plasa.Sha256([]byte(body.Kind + body.Error))
		return p
	}
	digest, b, err := views.Digest(v)
	if err != nil {
		p.Error = &errorBody{Error: err.Error()}
		return p
	}
	p.Digest, p.View = digest, b
	return p
}
