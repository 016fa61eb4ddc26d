package rob

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Store is the persistence a Writer chains against. Lock must serialize
// writers of one chain until the surrounding transaction ends. Last returns
// the final quantity and entry date of the newest entry, zero values when
// the chain is empty.
type Store interface {
	Lock(ctx context.Context, k Key) error
	Last(ctx context.Context, k Key) (float64, time.Time, error)
	Insert(ctx context.Context, e Entry) error
}

type head struct {
	final float64
	date  time.Time
}

// Writer appends chained entries inside one transaction. Each chain is
// locked the first time it is read; multi-chain operations lock in key
// order so concurrent writers cannot deadlock. Entry dates never go
// backwards within a chain: a backdated entry is stamped with the chain's
// last date so it stays the newest row.
type Writer struct {
	store   Store
	locked  map[Key]bool
	heads   map[Key]head
	entries []Entry
}

func NewWriter(s Store) *Writer {
	return &Writer{store: s, locked: map[Key]bool{}, heads: map[Key]head{}}
}

// Entries returns what was appended so far (for metrics and responses).
func (w *Writer) Entries() []Entry { return w.entries }

func (w *Writer) last(ctx context.Context, k Key) (float64, error) {
	if h, ok := w.heads[k]; ok {
		return h.final, nil
	}
	if !w.locked[k] {
		if err := w.store.Lock(ctx, k); err != nil {
			return 0, fmt.Errorf("lock %s: %w", k, err)
		}
		w.locked[k] = true
	}
	v, at, err := w.store.Last(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("last rob %s: %w", k, err)
	}
	w.heads[k] = head{final: v, date: at}
	return v, nil
}

func (w *Writer) append(ctx context.Context, e Entry) error {
	if h := w.heads[e.Key()]; e.EntryDate.Before(h.date) {
		e.EntryDate = h.date
	}
	if err := w.store.Insert(ctx, e); err != nil {
		return fmt.Errorf("append rob %s: %w", e.Key(), err)
	}
	w.heads[e.Key()] = head{final: e.Final, date: e.EntryDate}
	w.entries = append(w.entries, e)
	return nil
}

// RecordBunker appends the vessel entry and, when bdn is set, the batch entry for one bunker record.
func (w *Writer) RecordBunker(ctx context.Context, vessel Key, bdn string, qty float64, op OpType, sign string, at time.Time, recordID int64) error {
	last, err := w.last(ctx, vessel)
	if err != nil {
		return err
	}
	ve, err := VesselEntry(vessel, last, qty, op, sign, at)
	if err != nil {
		return err
	}
	ve.BunkerRecordID = &recordID
	if err := w.append(ctx, ve); err != nil {
		return err
	}
	if bdn == "" {
		return nil
	}

	batch := vessel
	batch.BDNNumber = bdn
	lastBatch, err := w.last(ctx, batch)
	if err != nil {
		return err
	}
	be, err := BatchEntry(batch, lastBatch, qty, op, sign, at)
	if err != nil {
		return fmt.Errorf("bdn %s: %w", bdn, err)
	}
	be.BunkerRecordID = &recordID
	return w.append(ctx, be)
}

// RecordAdjustments appends one adjustment per chain in eff.
func (w *Writer) RecordAdjustments(ctx context.Context, eff Effect, at time.Time, recordID int64) error {
	for _, k := range sortedKeys(eff) {
		last, err := w.last(ctx, k)
		if err != nil {
			return err
		}
		e, err := AdjustmentEntry(k, last, eff[k], at)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		e.BunkerRecordID = &recordID
		if err := w.append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// RecordConsumption draws a submitted report's consumption from the vessel and BDN chains.
func (w *Writer) RecordConsumption(ctx context.Context, shipID int64, lines []ConsumptionLine, at time.Time, reportID int64) error {
	vessel, batch, err := GroupConsumption(shipID, lines)
	if err != nil {
		return err
	}
	all := make(map[Key]float64, len(vessel)+len(batch))
	for k, v := range vessel {
		all[k] = v
	}
	for k, v := range batch {
		all[k] = v
	}
	for _, k := range sortedKeys(all) {
		last, err := w.last(ctx, k)
		if err != nil {
			return err
		}
		e, err := ConsumptionEntry(k, last, all[k], at)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		e.ReportID = &reportID
		if err := w.append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
