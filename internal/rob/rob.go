// Package rob maintains running-on-board balances for fuel and lube oil.
//
// Two chained ledgers exist. The vessel ledger holds one chain per
// (ship, category, item type). The BDN ledger holds one chain per
// delivery note. Every entry's initial quantity is the previous entry's
// final quantity. Rows are append-only; corrections and edits add
// adjustment entries instead of rewriting history.
package rob

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// OpType is the bunker operation that produced a ledger entry.
type OpType string

const (
	OpBunker      OpType = "BUNKER"
	OpDebunker    OpType = "DEBUNKER"
	OpCorrection  OpType = "CORRECTION"
	OpLOTopUp     OpType = "LO_TOPUP"
	OpInitialFill OpType = "INITIAL_FILL"
)

// Entry modes that are not bunker operations.
const (
	ModeConsumption = "CONSUMPTION"
	ModeAdjustment  = "ADJUSTMENT"
)

// Category separates fuel from lube oil chains.
type Category string

const (
	CategoryFuel    Category = "FUEL"
	CategoryLubeOil Category = "LUBE_OIL"
)

var (
	ErrInvalidOp       = errors.New("invalid operation type")
	ErrInvalidCategory = errors.New("invalid item category")
	ErrInvalidQuantity = errors.New("quantity must be a finite number >= 0")
	ErrInsufficientROB = errors.New("insufficient ROB")
)

// epsilon absorbs float noise from NUMERIC(14,3) round trips.
const epsilon = 1e-9

func ParseOp(s string) (OpType, error) {
	op := OpType(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case OpBunker, OpDebunker, OpCorrection, OpLOTopUp, OpInitialFill:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOp, s)
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryFuel, CategoryLubeOil:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// IsSupply reports operations that bring a new delivery on board.
func (o OpType) IsSupply() bool {
	return o == OpBunker || o == OpLOTopUp || o == OpInitialFill
}

// SignedDelta is the change an operation makes to the vessel balance.
// A correction is positive only when sign is "+".
func SignedDelta(op OpType, qty float64, correctionSign string) float64 {
	switch op {
	case OpBunker, OpLOTopUp, OpInitialFill:
		return qty
	case OpDebunker:
		return -qty
	case OpCorrection:
		if strings.TrimSpace(correctionSign) == "+" {
			return qty
		}
		return -qty
	}
	return 0
}

// Entry is one ledger row before it is stored.
type Entry struct {
	ShipID    int64
	Category  Category
	ItemType  string
	BDNNumber string // empty on vessel ledger rows
	EntryDate time.Time
	Bunkered  float64
	Consumed  float64
	Initial   float64
	Final     float64
	Mode      string

	BunkerRecordID *int64
	ReportID       *int64
}

// Key identifies one chain.
type Key struct {
	ShipID    int64
	Category  Category
	ItemType  string
	BDNNumber string
}

func (k Key) IsBatch() bool { return k.BDNNumber != "" }

func (k Key) String() string {
	if k.IsBatch() {
		return fmt.Sprintf("%d/%s/%s/%s", k.ShipID, k.Category, k.ItemType, k.BDNNumber)
	}
	return fmt.Sprintf("%d/%s/%s", k.ShipID, k.Category, k.ItemType)
}

func (e Entry) Key() Key {
	return Key{ShipID: e.ShipID, Category: e.Category, ItemType: e.ItemType, BDNNumber: e.BDNNumber}
}

func validQty(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

func checkFinal(final float64) (float64, error) {
	if final < -epsilon {
		return 0, fmt.Errorf("%w: balance would become %.3f", ErrInsufficientROB, final)
	}
	if final < 0 {
		final = 0
	}
	return final, nil
}

// VesselEntry chains a bunker operation onto the vessel ledger: the last
// final becomes the initial and the operation's signed delta is applied.
func VesselEntry(key Key, last, qty float64, op OpType, sign string, at time.Time) (Entry, error) {
	if err := validQty(qty); err != nil {
		return Entry{}, err
	}
	final, err := checkFinal(last + SignedDelta(op, qty, sign))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ShipID: key.ShipID, Category: key.Category, ItemType: key.ItemType,
		EntryDate: at, Bunkered: qty, Initial: last, Final: final, Mode: string(op),
	}, nil
}

// BatchEntry chains a bunker operation onto a delivery note ledger. A
// supply opens the batch at 0 -> qty; debunkers and corrections continue
// from the batch's last final.
func BatchEntry(key Key, lastBatch, qty float64, op OpType, sign string, at time.Time) (Entry, error) {
	if err := validQty(qty); err != nil {
		return Entry{}, err
	}
	e := Entry{
		ShipID: key.ShipID, Category: key.Category, ItemType: key.ItemType, BDNNumber: key.BDNNumber,
		EntryDate: at, Bunkered: qty, Mode: string(op),
	}
	if op.IsSupply() {
		e.Initial, e.Final = 0, qty
		return e, nil
	}
	final, err := checkFinal(lastBatch + SignedDelta(op, qty, sign))
	if err != nil {
		return Entry{}, err
	}
	e.Initial, e.Final = lastBatch, final
	return e, nil
}

// ConsumptionEntry draws consumed from the chain.
func ConsumptionEntry(key Key, last, consumed float64, at time.Time) (Entry, error) {
	if err := validQty(consumed); err != nil {
		return Entry{}, err
	}
	final, err := checkFinal(last - consumed)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ShipID: key.ShipID, Category: key.Category, ItemType: key.ItemType, BDNNumber: key.BDNNumber,
		EntryDate: at, Consumed: consumed, Initial: last, Final: final, Mode: ModeConsumption,
	}, nil
}

// AdjustmentEntry applies a signed delta produced by editing an earlier record.
func AdjustmentEntry(key Key, last, delta float64, at time.Time) (Entry, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return Entry{}, ErrInvalidQuantity
	}
	final, err := checkFinal(last + delta)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ShipID: key.ShipID, Category: key.Category, ItemType: key.ItemType, BDNNumber: key.BDNNumber,
		EntryDate: at, Initial: last, Final: final, Mode: ModeAdjustment,
	}
	if delta >= 0 {
		e.Bunkered = delta
	} else {
		e.Consumed = -delta
	}
	return e, nil
}

// Effect is the signed contribution of one bunker record to each chain it touches.
type Effect map[Key]float64

// BunkerEffect returns what a bunker record contributes to the vessel chain and its BDN chain.
// Supplies add qty to the batch; debunker and correction apply their signed delta.
func BunkerEffect(vessel Key, bdn string, qty float64, op OpType, sign string) Effect {
	d := SignedDelta(op, qty, sign)
	eff := Effect{vessel: d}
	if bdn != "" {
		batch := vessel
		batch.BDNNumber = bdn
		eff[batch] += d
	}
	return eff
}

// Diff returns next - prev for every key, dropping zero deltas.
func Diff(prev, next Effect) Effect {
	out := Effect{}
	for k, v := range next {
		out[k] += v
	}
	for k, v := range prev {
		out[k] -= v
	}
	for k, v := range out {
		if math.Abs(v) < epsilon {
			delete(out, k)
		}
	}
	return out
}

// ConsumptionLine is one consumption figure from a report.
type ConsumptionLine struct {
	Category  Category
	ItemType  string
	BDNNumber string
	Quantity  float64
}

// GroupConsumption sums lines per vessel chain and per BDN chain. Lines without a BDN only reach the vessel chain.
func GroupConsumption(shipID int64, lines []ConsumptionLine) (vessel, batch map[Key]float64, err error) {
	vessel, batch = map[Key]float64{}, map[Key]float64{}
	for _, l := range lines {
		if err := validQty(l.Quantity); err != nil {
			return nil, nil, err
		}
		if l.Quantity == 0 {
			continue
		}
		k := Key{ShipID: shipID, Category: l.Category, ItemType: l.ItemType}
		vessel[k] += l.Quantity
		if l.BDNNumber != "" {
			k.BDNNumber = l.BDNNumber
			batch[k] += l.Quantity
		}
	}
	return vessel, batch, nil
}
