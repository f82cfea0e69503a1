package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"fairdice.ai/internal/protocol"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/dice"
)

// Hub fans controller events out to every connected client. It implements
// controller.Reporter and never blocks the simulation loop: a slow client
// loses its oldest queued message.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: map[chan []byte]struct{}{}}
}

func (h *Hub) add(out chan []byte) {
	h.mu.Lock()
	h.clients[out] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(out chan []byte) {
	h.mu.Lock()
	delete(h.clients, out)
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for out := range h.clients {
		sendLatest(out, b)
	}
}

func (h *Hub) RollSettled(rec controller.RollRecord, rep controller.Report) {
	h.broadcast(protocol.RollMsg{
		Type:            protocol.TypeRoll,
		ProtocolVersion: protocol.Version,
		SessionID:       rec.SessionID,
		Roll:            rec.Roll,
		LaunchTick:      rec.LaunchTick,
		Tick:            rec.Tick,
		Faces:           rec.Faces,
		Session:         sessionView(rep),
	})
}

func (h *Hub) BatchComplete(rep controller.Report) {
	h.broadcast(protocol.BatchCompleteMsg{
		Type:            protocol.TypeBatchComplete,
		ProtocolVersion: protocol.Version,
		Session:         sessionView(rep),
	})
}

func (h *Hub) LaunchFailed(sessionID string, err error) {
	code := protocol.ErrInternal
	if errors.Is(err, dice.ErrInsufficientEntropy) {
		code = protocol.ErrInsufficientEntropy
	}
	h.broadcast(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Ref:             sessionID,
		Code:            code,
		Message:         err.Error(),
	})
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
