package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

// Session is one live real-time connection scoped to a single game.
type Session interface {
	ID() string
	IsOpen() bool
	Send(ctx context.Context, payload []byte) error
	Close(reason string) error
}

type hubMsg interface{ isHubMsg() }

type register struct {
	Code    engine.Code
	Session Session
	Done    chan struct{}
}

type unregister struct {
	Code    engine.Code
	Session Session
	Done    chan struct{}
}

type sessionsFor struct {
	Code  engine.Code
	Reply chan []Session
}

type countFor struct {
	Code  engine.Code
	Reply chan int
}

type detach struct {
	Code  engine.Code
	Reply chan []Session
}

type gameCount struct {
	Reply chan int
}

type shutdown struct{}

func (register) isHubMsg()    {}
func (unregister) isHubMsg()  {}
func (sessionsFor) isHubMsg() {}
func (countFor) isHubMsg()    {}
func (detach) isHubMsg()      {}
func (gameCount) isHubMsg()   {}
func (shutdown) isHubMsg()    {}

// Hub is the session registry. A single goroutine owns the map, so callers
// never lock; every method is a message to that goroutine.
type Hub struct {
	inbox  chan hubMsg
	games  map[engine.Code]map[string]Session
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan hubMsg, 64),
		games:  make(map[engine.Code]map[string]Session),
		log:    log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

// Register adds s to the game's entry, creating the entry on first use.
// Registering the same session twice is a no-op.
func (h *Hub) Register(code engine.Code, s Session) {
	done := make(chan struct{})
	if h.send(register{Code: engine.NormalizeCode(string(code)), Session: s, Done: done}) {
		h.wait(done)
	}
}

// Unregister removes s and drops the entry once it is empty.
func (h *Hub) Unregister(code engine.Code, s Session) {
	done := make(chan struct{})
	if h.send(unregister{Code: engine.NormalizeCode(string(code)), Session: s, Done: done}) {
		h.wait(done)
	}
}

// Sessions returns a copy of the sessions registered for the game.
func (h *Hub) Sessions(code engine.Code) []Session {
	reply := make(chan []Session, 1)
	if !h.send(sessionsFor{Code: engine.NormalizeCode(string(code)), Reply: reply}) {
		return nil
	}
	return recv(h, reply)
}

func (h *Hub) Count(code engine.Code) int {
	reply := make(chan int, 1)
	if !h.send(countFor{Code: engine.NormalizeCode(string(code)), Reply: reply}) {
		return 0
	}
	return recv(h, reply)
}

// Detach removes the game's entry and hands its sessions to the caller.
func (h *Hub) Detach(code engine.Code) []Session {
	reply := make(chan []Session, 1)
	if !h.send(detach{Code: engine.NormalizeCode(string(code)), Reply: reply}) {
		return nil
	}
	return recv(h, reply)
}

// Games is the number of games with at least one session.
func (h *Hub) Games() int {
	reply := make(chan int, 1)
	if !h.send(gameCount{Reply: reply}) {
		return 0
	}
	return recv(h, reply)
}

// Shutdown closes every session and stops the hub. Later calls return
// zero values.
func (h *Hub) Shutdown() {
	h.send(shutdown{})
	<-h.ctx.Done()
}

func (h *Hub) send(m hubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) wait(done <-chan struct{}) {
	select {
	case <-done:
	case <-h.ctx.Done():
	}
}

func recv[T any](h *Hub, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-h.ctx.Done():
		var zero T
		return zero
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case register:
				set := h.games[msg.Code]
				if set == nil {
					set = make(map[string]Session)
					h.games[msg.Code] = set
				}
				set[msg.Session.ID()] = msg.Session
				close(msg.Done)

			case unregister:
				if set := h.games[msg.Code]; set != nil {
					delete(set, msg.Session.ID())
					if len(set) == 0 {
						delete(h.games, msg.Code)
					}
				}
				close(msg.Done)

			case sessionsFor:
				msg.Reply <- snapshot(h.games[msg.Code])

			case countFor:
				msg.Reply <- len(h.games[msg.Code])

			case detach:
				msg.Reply <- snapshot(h.games[msg.Code])
				delete(h.games, msg.Code)

			case gameCount:
				msg.Reply <- len(h.games)

			case shutdown:
				var wg sync.WaitGroup
				for code, set := range h.games {
					for _, s := range set {
						wg.Add(1)
						go func() {
							defer wg.Done()
							if err := s.Close("server shutting down"); err != nil {
								h.log.Debug("close on shutdown", zap.String("game", string(code)), zap.Error(err))
							}
						}()
					}
				}
				wg.Wait()
				clear(h.games)
				h.cancel()
				return
			}
		}
	}
}

func snapshot(set map[string]Session) []Session {
	if len(set) == 0 {
		return nil
	}
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}
