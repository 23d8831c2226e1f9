// Package postgres persists venue events for offline analytics.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carbonvenue/model"
)

// Store writes venue events to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertEvents appends a batch of venue events.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO venue_events (
				kind, ts, strategy_id, owner, token0, token1,
				trader, source_token, target_token, source_amount, target_amount,
				fee_amount, fee_ppm, caller, token, amount,
				reward_amount, burned_amount, prev_ppm, new_ppm, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now())
		`,
			e.Kind,
			int64(e.Timestamp),
			int64(e.StrategyID),
			e.Owner,
			e.Token0,
			e.Token1,
			e.Trader,
			e.SourceToken,
			e.TargetToken,
			e.SourceAmount,
			e.TargetAmount,
			e.FeeAmount,
			int64(e.FeePPM),
			e.Caller,
			e.Token,
			e.Amount,
			e.RewardAmount,
			e.BurnedAmount,
			int64(e.PrevPPM),
			int64(e.NewPPM),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch implements the storage.Sink interface with a background
// context, for embedding the store behind the venue's audit hook.
func (s *Store) PutEventBatch(events []model.Event) error {
	return s.InsertEvents(context.Background(), events)
}
