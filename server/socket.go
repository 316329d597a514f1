package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 1024
)

// check if the request is for websockets
func IsWebSocket(r *http.Request) bool {
	contains := func(key, val string) bool {
		vv := strings.Split(r.Header.Get(key), ",")
		for _, v := range vv {
			if val == strings.ToLower(strings.TrimSpace(v)) {
				return true
			}
		}
		return false
	}

	if contains("Connection", "upgrade") && contains("Upgrade", "websocket") {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origin == "" || s.origin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.origin
}

// ServeWebSocket upgrades the request and runs the connection until either
// side goes away, then unbinds it from any session it joined.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	c := newConn()
	s.Register(c)

	log.WithField("conn", c.ID).Debug("client connected")

	st := &stream{
		ctx:    r.Context(),
		ws:     ws,
		server: s,
		client: c,
	}
	st.run()

	s.Deregister(c)
	log.WithField("conn", c.ID).Debug("client disconnected")
}

type stream struct {
	// request context
	ctx context.Context
	// the websocket connection
	ws *websocket.Conn
	// the relay
	server *Server
	// the registered connection
	client *conn
}

func (st *stream) run() {
	defer st.ws.Close()

	// to cancel everything
	stopCtx, cancel := context.WithCancel(context.Background())

	wg := sync.WaitGroup{}
	wg.Add(2)

	go st.writeLoop(cancel, &wg, stopCtx)
	go st.readLoop(cancel, &wg, stopCtx)
	wg.Wait()
}

func (st *stream) readLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		cancel()
		wg.Done()
	}()

	st.ws.SetReadLimit(maxMessageSize)
	st.ws.SetReadDeadline(time.Now().Add(pongWait))
	st.ws.SetPongHandler(func(string) error { st.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		select {
		case <-stopCtx.Done():
			return
		default:
		}

		_, msg, err := st.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithField("conn", st.client.ID).Warn(err)
			}
			return
		}

		st.server.Dispatch(st.client, msg)
	}
}

func (st *stream) writeLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		st.ws.Close()
		cancel()
		wg.Done()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCtx.Done():
			return
		case <-st.ctx.Done():
			return
		case <-st.client.Kill:
			st.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			st.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := st.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case e := <-st.client.Events:
			st.ws.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := st.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			b, _ := json.Marshal(e)
			if _, err := w.Write(b); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		}
	}
}
