package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the dashboard is served from another origin during development
	CheckOrigin: func(*http.Request) bool { return true },
}

// ClientSession is one connected snapshot feed.
type ClientSession struct {
	ID          string
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix timestamp

	conn      *websocket.Conn
	codec     Codec
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// close asks the write pump to say goodbye and drop the connection.
func (c *ClientSession) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// handleWebSocket upgrades the request and streams every published snapshot,
// starting with the current one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	codec, err := CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if atomic.LoadInt32(&s.closed) == 1 {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	// reserve the slot first; concurrent upgrades must not overshoot MaxClients
	if atomic.AddInt64(&s.clientCount, 1) > int64(s.config.MaxClients) {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	session := &ClientSession{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		LastSeen:    time.Now().Unix(),
		conn:        conn,
		codec:       codec,
		send:        make(chan []byte, s.config.ClientBufferSize),
		done:        make(chan struct{}),
	}

	// queue the current state before registering so it is the first frame
	if frame, err := codec.Encode(s.source.Snapshot()); err == nil {
		session.send <- frame
	} else {
		s.logger.Error("Failed to encode snapshot", log.String("codec", codec.Name()), log.Error(err))
	}

	s.clients.Store(session.ID, session)

	s.logger.Info("Client connected",
		log.String("client_id", session.ID),
		log.String("codec", codec.Name()),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	go s.writePump(session)
	s.readPump(session)
}

// readPump consumes control frames until the client goes away. Clients never
// send data; anything they send only refreshes LastSeen.
func (s *Server) readPump(session *ClientSession) {
	defer func() {
		s.clients.Delete(session.ID)
		atomic.AddInt64(&s.clientCount, -1)
		session.close()

		s.logger.Info("Client disconnected",
			log.String("client_id", session.ID),
			log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))
	}()

	session.conn.SetReadLimit(4096)
	session.conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&session.LastSeen, time.Now().Unix())
		return nil
	})

	for {
		if _, _, err := session.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Client read failed", log.String("client_id", session.ID), log.Error(err))
			}
			return
		}
		atomic.StoreInt64(&session.LastSeen, time.Now().Unix())
	}
}

func (s *Server) writePump(session *ClientSession) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	defer func() {
		session.close()
		_ = session.conn.Close()
	}()

	for {
		select {
		case frame := <-session.send:
			_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := session.conn.WriteMessage(session.codec.FrameType(), frame); err != nil {
				s.logger.Debug("Client write failed", log.String("client_id", session.ID), log.Error(err))
				return
			}
		case <-ticker.C:
			_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-session.done:
			_ = session.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// onSnapshot fans a published snapshot out to every feed client. It runs
// inside a scheduler handler, so it never blocks: a client whose buffer is
// full misses the frame.
func (s *Server) onSnapshot(e bus.Event) error {
	snap, ok := e.Data().(mission.Snapshot)
	if !ok {
		return nil
	}

	frames := make(map[string][]byte, len(codecs))
	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		name := session.codec.Name()
		frame, ok := frames[name]
		if !ok {
			var err error
			if frame, err = session.codec.Encode(snap); err != nil {
				s.logger.Error("Failed to encode snapshot", log.String("codec", name), log.Error(err))
				return true
			}
			frames[name] = frame
		}

		select {
		case session.send <- frame:
		default:
			atomic.AddUint64(&s.dropped, 1)
			s.logger.Debug("Client buffer full, frame dropped",
				log.String("client_id", session.ID),
				log.Uint64("seq", snap.Seq))
		}
		return true
	})
	return nil
}
