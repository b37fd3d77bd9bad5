package bridge

import (
	"encoding/binary"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/transport"
)

const (
	// Time allowed to write a response to the peer
	writeWait = 10 * time.Second
)

// Server serves the bridge frame protocol over websocket, dispatching
// requests to a transport.Target. One goroutine per connection; requests
// on a connection are handled strictly in order.
type Server struct {
	target   transport.Target
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a bridge server over the given target.
func NewServer(target transport.Target, logger *zap.Logger) *Server {
	return &Server{
		target: target,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  transport.MaxPayloadSize + transport.FrameHeaderSize,
			WriteBufferSize: transport.MaxPayloadSize + transport.FrameHeaderSize,
		},
	}
}

// Handler returns the HTTP handler exposing the bridge at /debug.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug", s.handleWebSocket)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	s.logger.Info("bridge client connected", zap.String("remote_addr", r.RemoteAddr))
	defer s.logger.Info("bridge client disconnected", zap.String("remote_addr", r.RemoteAddr))

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := transport.ParseFrame(raw)
		if err != nil {
			s.logger.Warn("dropping malformed bridge frame",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			continue
		}

		resp := s.dispatch(frame)
		out, err := transport.EncodeFrame(frame.MessageID, resp)
		if err != nil {
			s.logger.Error("failed to encode response frame", zap.Error(err))
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			return
		}
	}
}

// dispatch executes one request payload and builds the response payload.
func (s *Server) dispatch(frame *transport.Frame) []byte {
	if len(frame.Payload) == 0 {
		return respond(0, transport.StatusError, []byte("empty request"))
	}
	op := frame.Payload[0]
	args := frame.Payload[1:]

	s.logger.Debug("bridge request",
		zap.Uint32("id", frame.MessageID),
		zap.String("op", transport.OpString(op)),
	)

	switch op {
	case transport.OpReadMem:
		if len(args) != 8 {
			return respond(op, transport.StatusError, []byte("read request needs addr and length"))
		}
		addr := binary.LittleEndian.Uint32(args[0:4])
		n := binary.LittleEndian.Uint32(args[4:8])
		if n > transport.MaxPayloadSize-2 {
			return respond(op, transport.StatusError, []byte("read length exceeds frame capacity"))
		}
		data, err := s.target.ReadMemory(addr, int(n))
		if err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		return respond(op, transport.StatusOK, data)

	case transport.OpWriteMem:
		if len(args) < 4 {
			return respond(op, transport.StatusError, []byte("write request needs addr"))
		}
		addr := binary.LittleEndian.Uint32(args[0:4])
		if err := s.target.WriteMemory(addr, args[4:]); err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		return respond(op, transport.StatusOK, nil)

	case transport.OpHalt:
		if err := s.target.Halt(); err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		return respond(op, transport.StatusOK, nil)

	case transport.OpRun:
		if err := s.target.Run(); err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		return respond(op, transport.StatusOK, nil)

	case transport.OpReset:
		if err := s.target.Reset(); err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		return respond(op, transport.StatusOK, nil)

	case transport.OpReadRegs:
		rr, ok := s.target.(transport.RegisterReader)
		if !ok {
			return respond(op, transport.StatusError, []byte("target does not expose registers"))
		}
		regs, err := rr.ReadRegisters()
		if err != nil {
			return respond(op, transport.StatusError, []byte(err.Error()))
		}
		body := make([]byte, 4*len(regs))
		for i, v := range regs {
			binary.LittleEndian.PutUint32(body[i*4:], v)
		}
		return respond(op, transport.StatusOK, body)

	default:
		return respond(op, transport.StatusError, []byte("unknown operation"))
	}
}

func respond(op, status byte, body []byte) []byte {
	out := make([]byte, 2+len(body))
	out[0] = op
	out[1] = status
	copy(out[2:], body)
	return out
}
