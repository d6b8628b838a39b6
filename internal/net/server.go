package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/boundary"
	"fenrir/internal/workerpool"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers     = 10
	defaultConnTimeout  = 5 * time.Second
	maxOrdersPageSize   = 500
)

var (
	ErrImproperConversion = errors.New("net: improper task type conversion")
	ErrClientGone         = errors.New("net: client connection no longer tracked")
)

// clientSession is a connected client awaiting reports.
type clientSession struct {
	conn net.Conn
	id   uuid.UUID
}

// clientMessage links a parsed frame to the session that sent it.
type clientMessage struct {
	sessionID uuid.UUID
	typ       MessageType
	body      any
}

// Server accepts TCP connections, parses frames off a worker pool, and
// drives a single boundary.Boundary actor from one session-handling
// goroutine, per the single-owner concurrency model.
type Server struct {
	address  string
	port     int
	boundary *boundary.Boundary
	pool     workerpool.Pool
	cancel   context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[uuid.UUID]*clientSession

	messages chan clientMessage
}

// New returns a Server bound to address:port, driving b.
func New(address string, port int, b *boundary.Boundary) *Server {
	return &Server{
		address:  address,
		port:     port,
		boundary: b,
		pool:     workerpool.New(defaultNWorkers),
		sessions: make(map[uuid.UUID]*clientSession),
		messages: make(chan clientMessage, 64),
	}
}

// Shutdown stops the accept loop and all workers.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run blocks, serving connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return err
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			session := s.addSession(conn)
			log.Info().Str("session", session.id.String()).Msg("client connected")
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) addSession(conn net.Conn) *clientSession {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	session := &clientSession{conn: conn, id: uuid.New()}
	s.sessions[session.id] = session
	return session
}

func (s *Server) removeSession(id uuid.UUID) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	if session, ok := s.sessions[id]; ok {
		_ = session.conn.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) sessionByID(id uuid.UUID) (*clientSession, bool) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// handleConnection is a worker task: it reads one frame off conn,
// parses it, and forwards it to sessionHandler before re-queuing conn
// for its next frame.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		return nil
	}

	var session *clientSession
	s.sessionsLock.Lock()
	for _, sess := range s.sessions {
		if sess.conn == conn {
			session = sess
			break
		}
	}
	s.sessionsLock.Unlock()
	if session == nil {
		log.Debug().Msg("dropping task for a connection removed from tracking")
		return ErrClientGone
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Info().Str("session", session.id.String()).Err(err).Msg("connection closed")
		s.removeSession(session.id)
		return nil
	}

	typ, body, err := ParseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("session", session.id.String()).Msg("failed to parse frame")
		s.writeReport(session, (&ErrorReport{Message: err.Error()}).Encode())
		s.pool.AddTask(conn)
		return nil
	}

	s.messages <- clientMessage{sessionID: session.id, typ: typ, body: body}
	s.pool.AddTask(conn)
	return nil
}

// sessionHandler is the sole goroutine that touches the boundary: it
// serializes every parsed request against the book and the ledger.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.messages:
			s.dispatch(msg)
		}
	}
}

func (s *Server) dispatch(msg clientMessage) {
	session, ok := s.sessionByID(msg.sessionID)
	if !ok {
		return
	}

	switch msg.typ {
	case Heartbeat:
		return

	case SubmitOrderMsg:
		m := msg.body.(*SubmitOrderMessage)
		id, report, err := s.boundary.SubmitOrder(m.Owner, m.Side, m.Kind, m.LimitPrice, m.AmountBase, m.MaxQuote)
		if err != nil {
			s.writeReport(session, (&ErrorReport{Message: err.Error()}).Encode())
			return
		}
		for _, tr := range report.Trades {
			wire := TradeReport{
				MakerOrderID: tr.MakerOrderID,
				TakerOrderID: tr.TakerOrderID,
				Maker:        tr.Maker,
				Taker:        tr.Taker,
				Price:        tr.Price,
				AmountBase:   tr.AmountBase,
				AmountQuote:  tr.AmountQuote,
			}
			s.writeReport(session, wire.Encode())
		}
		placement := PlacementReport{
			OrderID:        id,
			Kind:           report.Completion.Kind,
			RemainingBase:  report.Completion.RemainingBase,
			RemainingQuote: report.Completion.RemainingQuote,
		}
		s.writeReport(session, placement.Encode())

	case CancelOrderMsg:
		m := msg.body.(*CancelOrderMessage)
		if err := s.boundary.CancelOrder(m.Owner, m.OrderID); err != nil {
			s.writeReport(session, (&ErrorReport{Message: err.Error()}).Encode())
		}

	case DepositMsg:
		m := msg.body.(*DepositWithdrawMessage)
		s.boundary.Deposit(m.Owner, m.Asset, m.Amount)

	case WithdrawMsg:
		m := msg.body.(*DepositWithdrawMessage)
		if err := s.boundary.Withdraw(context.Background(), m.Owner, m.Asset, m.Amount); err != nil {
			s.writeReport(session, (&ErrorReport{Message: err.Error()}).Encode())
		}

	case GetOrdersMsg:
		m := msg.body.(*GetOrdersMessage)
		limit := int(m.Limit)
		if limit <= 0 || limit > maxOrdersPageSize {
			limit = maxOrdersPageSize
		}
		page, next, hasMore := s.boundary.Orders(m.Side, m.Cursor, limit, m.Forward)
		wire := OrdersReport{Orders: page, Next: next, HasMore: hasMore}
		s.writeReport(session, wire.Encode())
	}
}

func (s *Server) writeReport(session *clientSession, frame []byte) {
	if _, err := session.conn.Write(frame); err != nil {
		log.Error().Err(err).Str("session", session.id.String()).Msg("failed to write report")
		s.removeSession(session.id)
	}
}
