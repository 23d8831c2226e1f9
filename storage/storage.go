// Package storage provides append-only audit sinks for venue events. The
// ledger itself is purely in-memory; sinks only export what happened.
package storage

import "carbonvenue/model"

// Sink receives batches of venue events.
type Sink interface {
	PutEventBatch(events []model.Event) error
}

// MultiSink fans each batch out to every sink in order, stopping at the
// first failure.
type MultiSink []Sink

func (m MultiSink) PutEventBatch(events []model.Event) error {
	for _, sink := range m {
		if err := sink.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}
