package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

const pgUniqueViolation = "23505"

type Postgres struct {
	db       *gorm.DB
	locks    gameLocks
	notifier Notifier
	log      *zap.Logger
}

func OpenPostgres(dsn string, n Notifier, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", apperror.ErrPersistence, err)
	}
	return &Postgres{db: db, notifier: n, log: log.Named("store")}, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&gameRecord{}, &playerRecord{}, &scoreRecord{}); err != nil {
		return fmt.Errorf("%w: migrate: %w", apperror.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) Get(ctx context.Context, code engine.Code) (engine.Game, error) {
	return loadGame(p.db.WithContext(ctx), code, false)
}

func (p *Postgres) Within(ctx context.Context, code engine.Code, fn func(Tx) error) error {
	unlock := p.locks.lock(code)
	defer unlock()

	tx := &postgresTx{code: code}
	var fnErr error
	err := p.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx.db = db
		fnErr = fn(tx)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		p.log.Error("commit failed", zap.String("game", string(code)), zap.Error(err))
		return fmt.Errorf("%w: commit game %s: %w", apperror.ErrPersistence, code, err)
	}

	notify(ctx, p.notifier, tx.events)
	return nil
}

type postgresTx struct {
	db     *gorm.DB
	code   engine.Code
	events []engine.DomainEvent
}

// Load reads the game and holds its row lock until the transaction ends.
func (t *postgresTx) Load(_ context.Context) (engine.Game, error) {
	return loadGame(t.db, t.code, true)
}

func (t *postgresTx) Insert(_ context.Context, g engine.Game) error {
	if g.Code != t.code {
		return apperror.Validation("game code %s does not match unit of work %s", g.Code, t.code)
	}
	rec := toRecord(g)
	if err := t.db.Omit(clause.Associations).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return persistenceErr("insert game", err)
	}
	return t.savePlayers(rec.Players)
}

func (t *postgresTx) Save(_ context.Context, g engine.Game) error {
	if g.Code != t.code {
		return apperror.Validation("game code %s does not match unit of work %s", g.Code, t.code)
	}
	rec := toRecord(g)
	res := t.db.Model(&gameRecord{}).Where("code = ?", rec.Code).Select("*").Omit(clause.Associations).Updates(&rec)
	if res.Error != nil {
		return persistenceErr("update game", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("game %s: %w", t.code, apperror.ErrNotFound)
	}
	return t.savePlayers(rec.Players)
}

// Players and scores are never removed, so upserting the full set is
// enough to bring the rows in line with the game.
func (t *postgresTx) savePlayers(players []playerRecord) error {
	if len(players) == 0 {
		return nil
	}

	var scores []scoreRecord
	for _, p := range players {
		scores = append(scores, p.Scores...)
	}

	err := t.db.Omit("Scores").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "name_key", "randomise_used", "wheel_result"}),
	}).Create(&players).Error
	if err != nil {
		if isUniqueViolation(err) {
			return engine.ErrPlayerExists
		}
		return persistenceErr("save players", err)
	}

	if len(scores) == 0 {
		return nil
	}
	err = t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "hole"}},
		DoUpdates: clause.AssignmentColumns([]string{"strokes"}),
	}).Create(&scores).Error
	if err != nil {
		return persistenceErr("save scores", err)
	}
	return nil
}

func (t *postgresTx) Record(evs ...engine.DomainEvent) {
	t.events = append(t.events, evs...)
}

func loadGame(db *gorm.DB, code engine.Code, forUpdate bool) (engine.Game, error) {
	q := db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec gameRecord
	if err := q.Where("code = ?", string(code)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Game{}, fmt.Errorf("game %s: %w", code, apperror.ErrNotFound)
		}
		return engine.Game{}, persistenceErr("load game", err)
	}

	err := db.Where("game_code = ?", rec.Code).
		Order("joined_at, id").
		Preload("Scores").
		Find(&rec.Players).Error
	if err != nil {
		return engine.Game{}, persistenceErr("load players", err)
	}
	return rec.toGame(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperror.ErrPersistence, op, err)
}
