package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fairdice.ai/internal/protocol"
	"fairdice.ai/internal/sim/controller"
)

const outQueue = 64

type Server struct {
	rt     *controller.Runtime
	hub    *Hub
	params protocol.SimParams
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(rt *controller.Runtime, hub *Hub, params protocol.SimParams, logger *log.Logger) *Server {
	s := &Server{
		rt:     rt,
		hub:    hub,
		params: params,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		rep, err := s.rt.Report(ctx)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "simulation unavailable"), time.Now().Add(time.Second))
			return
		}
		if err := writeJSON(conn, protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			Params:          s.params,
			Session:         sessionView(rep),
		}); err != nil {
			return
		}

		out := make(chan []byte, outQueue)
		s.hub.add(out)
		defer s.hub.remove(out)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.handle(ctx, msg)
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
	}
}

// handle turns one inbound frame into the reply for its sender.
func (s *Server) handle(ctx context.Context, msg []byte) any {
	base, err := protocol.ValidateInbound(msg)
	if err != nil {
		return errorMsg("", protocol.ErrProtoBadRequest, err.Error())
	}
	if base.ProtocolVersion != protocol.Version {
		return errorMsg("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	var id string
	rolls := 1
	switch base.Type {
	case protocol.TypeStartBatch:
		var m protocol.StartBatchMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrProtoBadRequest, err.Error())
		}
		id, rolls = m.ID, m.Rolls
	case protocol.TypeRollOnce:
		var m protocol.RollOnceMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrProtoBadRequest, err.Error())
		}
		id = m.ID
	}

	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: id}
	sessionID, err := s.rt.StartBatch(ctx, rolls)
	switch {
	case err == nil:
		ack.Accepted = true
		ack.SessionID = sessionID
		if rep, err := s.rt.Report(ctx); err == nil {
			ack.ServerTick = rep.Tick
		}
	case errors.Is(err, controller.ErrAlreadyRunning):
		ack.Code, ack.Message = protocol.ErrAlreadyRunning, err.Error()
	case errors.Is(err, controller.ErrInvalidRollCount):
		ack.Code, ack.Message = protocol.ErrBadRequest, err.Error()
	default:
		ack.Code, ack.Message = protocol.ErrInternal, err.Error()
		if s.log != nil {
			s.log.Printf("start batch %s: %v", id, err)
		}
	}
	return ack
}

func errorMsg(ref, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
