package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/hub"
	"github.com/DoyleJ11/pubcrawl-backend/internal/types"
	pub "github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

const replyTimeout = 3 * time.Second

type GameLookup interface {
	Get(ctx context.Context, code engine.Code) (engine.Game, error)
}

// Handler serves /ws/games/{gameID}. Sessions only receive broadcasts;
// the one thing a client may send is a PING.
func Handler(h *hub.Hub, games GameLookup, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "gameID")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Warn("accept failed", zap.String("game", raw), zap.Error(err))
			return
		}

		code, err := engine.ParseCode(raw)
		if err != nil {
			log.Info("rejecting session", zap.String("game", raw), zap.Error(err))
			_ = conn.Close(websocket.StatusInvalidFramePayloadData, "bad data")
			return
		}

		g, err := games.Get(r.Context(), code)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			log.Info("rejecting session for unknown game", zap.String("game", string(code)))
			_ = conn.Close(websocket.StatusInvalidFramePayloadData, "bad data")
			return
		case err != nil:
			log.Error("load game", zap.String("game", string(code)), zap.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "internal error")
			return
		case g.Status == engine.StatusCompleted:
			_ = conn.Close(websocket.StatusNormalClosure, "game completed")
			return
		}

		s := newSession(conn)
		log := log.With(zap.String("game", string(code)), zap.String("session", s.ID()))

		h.Register(code, s)
		defer func() {
			h.Unregister(code, s)
			_ = s.Close("bye")
			log.Debug("session ended")
		}()

		// Completion may have been dispatched between the first read and
		// Register, in which case nothing will close this session later.
		if g, err := games.Get(r.Context(), code); err == nil && g.Status == engine.StatusCompleted {
			log.Debug("game completed while connecting")
			_ = s.Close("game completed")
			return
		}
		log.Debug("session started")

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if s.IsOpen() {
						log.Debug("read ended", zap.Error(err))
					}
				}
				s.markClosed()
				return
			}

			cm, err := types.ParseClientMessage(data)
			if err != nil {
				reply(r.Context(), s, log, pub.Error(err.Error()))
				continue
			}
			switch cm.Type {
			case pub.MsgPing:
				reply(r.Context(), s, log, pub.Pong())
			default:
				reply(r.Context(), s, log, pub.Error("unknown type"))
			}
		}
	}
}

func reply(ctx context.Context, s *session, log *zap.Logger, msg pub.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error("marshal reply", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := s.Send(ctx, payload); err != nil {
		log.Debug("reply failed", zap.Error(err))
	}
}
