package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"ember/internal/book"
	"ember/internal/engine"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var ErrImproperConversion = errors.New("net: improper type conversion")

// clientSession tracks one connected TCP client, ported from the teacher's
// ClientSession.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a decoded wire message to the connection it arrived
// on, so the session handler can reply to the right socket.
type clientMessage struct {
	conn    net.Conn
	message Message
}

// Server is the thin wire gateway in front of an engine.Engine: it is an
// external collaborator per §1 ("out of scope... specified only via the
// interfaces the core offers them"), never touching a book.Book directly.
// Structure (ClientSession map, tomb-supervised accept loop, worker pool)
// is ported from the teacher's internal/net/server.go.
type Server struct {
	address string
	port    int
	engine  *engine.Engine

	pool WorkerPool

	cancel context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]clientSession

	messages chan clientMessage
}

// New builds a gateway Server in front of eng.
func New(address string, port int, eng *engine.Engine) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   eng,
		pool:     NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]clientSession),
		messages: make(chan clientMessage, 64),
	}
}

// Shutdown tears down the listener and every supervised goroutine.
func (s *Server) Shutdown() {
	log.Info().Msg("gateway shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})
	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("gateway listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
		s.addSession(conn)
		s.pool.AddTask(conn)
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.messages:
			if err := s.handleMessage(cm); err != nil {
				log.Error().Err(err).Str("remote", cm.conn.RemoteAddr().String()).Msg("error handling message")
				s.reply(cm.conn, errorReport(err))
			}
		}
	}
}

func (s *Server) handleMessage(cm clientMessage) error {
	ctx, cancelRequest := context.WithTimeout(context.Background(), defaultConnTimeout)
	defer cancelRequest()

	switch msg := cm.message.(type) {
	case NewOrderMessage:
		trades, order, err := s.engine.Submit(ctx, msg.Order())
		if err != nil {
			return err
		}
		s.reply(cm.conn, Report{
			Kind:    ExecutionReport,
			OrderID: order.OrderID,
			Status:  order.Status,
			Filled:  order.Filled,
			Remain:  order.Remaining,
			Trades:  trades,
		})
	case CancelOrderMessage:
		order, ok, err := s.engine.Cancel(ctx, msg.Symbol, msg.OrderID)
		if err != nil {
			return err
		}
		if !ok {
			s.reply(cm.conn, errorReport(fmt.Errorf("order %s not cancellable", msg.OrderID)))
			return nil
		}
		s.reply(cm.conn, Report{Kind: ExecutionReport, OrderID: msg.OrderID, Status: order.Status, Filled: order.Filled, Remain: order.Remaining})
	case SnapshotRequestMessage:
		snap, err := s.engine.Snapshot(ctx, msg.Symbol, int(msg.Depth))
		if err != nil {
			return err
		}
		s.reply(cm.conn, Report{Kind: SnapshotReport, Snapshot: toPayload(snap)})
	default:
		return ErrInvalidMessageType
	}
	return nil
}

func toPayload(snap book.Snapshot) *SnapshotPayload {
	payload := &SnapshotPayload{
		Symbol:    snap.Symbol,
		Timestamp: snap.Timestamp,
		Bids:      make([]LevelPayload, len(snap.Bids)),
		Asks:      make([]LevelPayload, len(snap.Asks)),
	}
	for i, lvl := range snap.Bids {
		payload.Bids[i] = LevelPayload{Price: lvl.Price, Aggregate: lvl.Aggregate}
	}
	for i, lvl := range snap.Asks {
		payload.Asks[i] = LevelPayload{Price: lvl.Price, Aggregate: lvl.Aggregate}
	}
	return payload
}

func (s *Server) reply(conn net.Conn, report Report) {
	if _, err := conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed to write report")
		s.removeSession(conn.RemoteAddr().String())
	}
}

func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	closeConn := func() {
		conn.Close()
		s.removeSession(conn.RemoteAddr().String())
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed to set read deadline")
		closeConn()
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		closeConn()
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection closed")
			closeConn()
			return nil
		}
		msg, err := parseMessage(buf[:n])
		if err != nil {
			log.Error().Err(err).Msg("failed to parse message")
			s.reply(conn, errorReport(err))
			closeConn()
			return nil
		}
		s.messages <- clientMessage{conn: conn, message: msg}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) removeSession(addr string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, addr)
}
