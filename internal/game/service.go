package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/store"
)

const (
	CodeLength     = 6
	codeCharset    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeRetries = 5
)

var ErrNoFreeCode = errors.New("could not allocate a free game code")

type NewGame struct {
	Name   string
	Holes  []engine.Hole
	Events []engine.SpecialEvent
}

// Service runs game commands as units of work against the store.
type Service struct {
	store store.Transactor
	log   *zap.Logger
	now   func() time.Time
	code  func() (engine.Code, error)
}

func NewService(s store.Transactor, log *zap.Logger) *Service {
	return &Service{
		store: s,
		log:   log.Named("game"),
		now:   func() time.Time { return time.Now().UTC() },
		code:  GenerateCode,
	}
}

func GenerateCode() (engine.Code, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return engine.Code(code), nil
}

func (s *Service) Create(ctx context.Context, req NewGame) (engine.Game, error) {
	for attempt := 1; attempt <= maxCodeRetries; attempt++ {
		code, err := s.code()
		if err != nil {
			return engine.Game{}, fmt.Errorf("generate code: %w", err)
		}

		g, created, err := engine.NewGame(code, req.Name, req.Holes, req.Events, s.now())
		if err != nil {
			return engine.Game{}, err
		}

		err = s.store.Within(ctx, code, func(tx store.Tx) error {
			if err := tx.Insert(ctx, g); err != nil {
				return err
			}
			tx.Record(created)
			return nil
		})
		if errors.Is(err, store.ErrCodeTaken) {
			s.log.Info("game code collision, regenerating", zap.String("game", string(code)), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return engine.Game{}, err
		}
		return g, nil
	}
	return engine.Game{}, ErrNoFreeCode
}

func (s *Service) Get(ctx context.Context, code engine.Code) (engine.Game, error) {
	return s.store.Get(ctx, code)
}

func (s *Service) Scoreboard(ctx context.Context, code engine.Code) ([]engine.Standing, error) {
	g, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return engine.Standings(g), nil
}

func (s *Service) Join(ctx context.Context, code engine.Code, name string) (engine.Player, error) {
	g, err := s.apply(ctx, code, engine.Command{Type: engine.CmdJoin, Name: name})
	if err != nil {
		return engine.Player{}, err
	}
	return g.Players[len(g.Players)-1], nil
}

func (s *Service) SubmitScore(ctx context.Context, code engine.Code, playerID string, hole, strokes int) (engine.Game, error) {
	return s.apply(ctx, code, engine.Command{Type: engine.CmdSubmitScore, PlayerID: playerID, Hole: hole, Strokes: strokes})
}

func (s *Service) ActivateEvent(ctx context.Context, code engine.Code, eventID string) (engine.Game, error) {
	return s.apply(ctx, code, engine.Command{Type: engine.CmdActivateEvent, EventID: eventID})
}

func (s *Service) EndEvent(ctx context.Context, code engine.Code, eventID string) (engine.Game, error) {
	return s.apply(ctx, code, engine.Command{Type: engine.CmdEndEvent, EventID: eventID})
}

func (s *Service) Complete(ctx context.Context, code engine.Code) (engine.Game, error) {
	return s.apply(ctx, code, engine.Command{Type: engine.CmdComplete})
}

func (s *Service) Randomise(ctx context.Context, code engine.Code, playerID string) (engine.Player, error) {
	g, err := s.apply(ctx, code, engine.Command{Type: engine.CmdRandomise, PlayerID: playerID})
	if err != nil {
		return engine.Player{}, err
	}
	p, _ := g.Player(playerID)
	return p, nil
}

// apply loads the game, runs cmd through the engine and saves the result in
// one unit of work. Events reach the notifier only if the save commits.
func (s *Service) apply(ctx context.Context, code engine.Code, cmd engine.Command) (engine.Game, error) {
	var next engine.Game
	err := s.store.Within(ctx, code, func(tx store.Tx) error {
		cur, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		evs, g, err := engine.Apply(cur, cmd, s.now())
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, g); err != nil {
			return err
		}
		tx.Record(evs...)
		next = g
		return nil
	})
	if err != nil {
		s.log.Debug("command rejected",
			zap.String("game", string(code)), zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return engine.Game{}, err
	}
	return next, nil
}
