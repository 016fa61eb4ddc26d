// Package bunkers records bunker deliveries, debunkers and corrections and
// keeps the ROB ledgers in step with them.
package bunkers

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
)

var (
	ErrNotFound = errors.New("bunker record not found")
	ErrInvalid  = errors.New("invalid bunker record")
	ErrInactive = errors.New("bunker record is inactive")
)

type Record struct {
	ID                     int64      `json:"id"`
	ShipID                 int64      `json:"shipId"`
	ShipName               string     `json:"shipName,omitempty"`
	VoyageID               *int64     `json:"voyageId,omitempty"`
	VoyageLegID            *int64     `json:"voyageLegId,omitempty"`
	BunkerPortCode         *string    `json:"bunkerPortCode,omitempty"`
	BunkerDate             time.Time  `json:"bunkerDate"`
	BDNNumber              string     `json:"bdnNumber"`
	BunkerCategory         string     `json:"bunkerCategory"`
	FuelTypeKey            *string    `json:"fuelTypeKey,omitempty"`
	LubeOilTypeKey         *string    `json:"lubeOilTypeKey,omitempty"`
	BunkeredQuantity       float64    `json:"bunkeredQuantity"`
	DensityAt15C           *float64   `json:"densityAt15C,omitempty"`
	SulphurContentPercent  *float64   `json:"sulphurContentPercent,omitempty"`
	FlashPointC            *float64   `json:"flashPointC,omitempty"`
	ViscosityAt50CcSt      *float64   `json:"viscosityAt50CcSt,omitempty"`
	WaterContentPercent    *float64   `json:"waterContentPercent,omitempty"`
	LCV                    *float64   `json:"lcv,omitempty"`
	TemperatureC           *float64   `json:"temperatureC,omitempty"`
	PressureBar            *float64   `json:"pressureBar,omitempty"`
	SupplierName           *string    `json:"supplierName,omitempty"`
	BargeName              *string    `json:"bargeName,omitempty"`
	MarpolSampleSealNumber *string    `json:"marpolSampleSealNumber,omitempty"`
	BDNDeclarationReceived bool       `json:"bdnDeclarationReceived"`
	InitialQuantityMT      float64    `json:"initialQuantityMt"`
	FinalQuantityMT        float64    `json:"finalQuantityMt"`
	InitialVolumeM3        *float64   `json:"initialVolumeM3,omitempty"`
	FinalVolumeM3          *float64   `json:"finalVolumeM3,omitempty"`
	BunkeredVolumeM3       *float64   `json:"bunkeredVolumeM3,omitempty"`
	OperationType          rob.OpType `json:"operationType"`
	CorrectionSign         *string    `json:"correctionSign,omitempty"`
	Remarks                *string    `json:"remarks,omitempty"`
	IsActive               bool       `json:"isActive"`
	CreatedBy              *string    `json:"createdBy,omitempty"`
	ModifiedBy             *string    `json:"modifiedBy,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// Category returns the ledger category of the record.
func (r Record) Category() rob.Category { return rob.Category(r.BunkerCategory) }

// ItemType is the fuel type key for fuel records and the lube-oil key otherwise.
func (r Record) ItemType() string {
	if r.Category() == rob.CategoryLubeOil {
		return deref(r.LubeOilTypeKey)
	}
	return deref(r.FuelTypeKey)
}

func (r Record) sign() string { return deref(r.CorrectionSign) }

// Effect is what the record contributes to the vessel chain and its BDN chain.
func (r Record) Effect() rob.Effect {
	vessel := rob.Key{ShipID: r.ShipID, Category: r.Category(), ItemType: r.ItemType()}
	return rob.BunkerEffect(vessel, r.BDNNumber, r.BunkeredQuantity, r.OperationType, r.sign())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Input is the multipart "data" JSON for create and update. On update every
// nil field keeps its stored value.
type Input struct {
	ShipID                 *int64     `json:"shipId"`
	VoyageID               *int64     `json:"voyageId"`
	VoyageLegID            *int64     `json:"voyageLegId"`
	BunkerPortCode         *string    `json:"bunkerPortCode"`
	BunkerDate             *time.Time `json:"bunkerDate"`
	BDNNumber              *string    `json:"bdnNumber"`
	BunkerCategory         *string    `json:"bunkerCategory"`
	FuelTypeKey            *string    `json:"fuelTypeKey"`
	LubeOilTypeKey         *string    `json:"lubeOilTypeKey"`
	BunkeredQuantity       *float64   `json:"bunkeredQuantity"`
	DensityAt15C           *float64   `json:"densityAt15C"`
	SulphurContentPercent  *float64   `json:"sulphurContentPercent"`
	FlashPointC            *float64   `json:"flashPointC"`
	ViscosityAt50CcSt      *float64   `json:"viscosityAt50CcSt"`
	WaterContentPercent    *float64   `json:"waterContentPercent"`
	LCV                    *float64   `json:"lcv"`
	TemperatureC           *float64   `json:"temperatureC"`
	PressureBar            *float64   `json:"pressureBar"`
	SupplierName           *string    `json:"supplierName"`
	BargeName              *string    `json:"bargeName"`
	MarpolSampleSealNumber *string    `json:"marpolSampleSealNumber"`
	BDNDeclarationReceived *bool      `json:"bdnDeclarationReceived"`
	InitialVolumeM3        *float64   `json:"initialVolumeM3"`
	FinalVolumeM3          *float64   `json:"finalVolumeM3"`
	BunkeredVolumeM3       *float64   `json:"bunkeredVolumeM3"`
	OperationType          *string    `json:"operationType"`
	CorrectionSign         *string    `json:"correctionSign"`
	Remarks                *string    `json:"remarks"`
}

// Apply overlays the non-nil fields of in onto rec.
func (in Input) Apply(rec Record) Record {
	set := func(dst **string, v *string) {
		if v != nil {
			*dst = v
		}
	}
	setF := func(dst **float64, v *float64) {
		if v != nil {
			*dst = v
		}
	}
	if in.ShipID != nil {
		rec.ShipID = *in.ShipID
	}
	if in.VoyageID != nil {
		rec.VoyageID = in.VoyageID
	}
	if in.VoyageLegID != nil {
		rec.VoyageLegID = in.VoyageLegID
	}
	set(&rec.BunkerPortCode, in.BunkerPortCode)
	if in.BunkerDate != nil {
		rec.BunkerDate = in.BunkerDate.UTC()
	}
	if in.BDNNumber != nil {
		rec.BDNNumber = strings.TrimSpace(*in.BDNNumber)
	}
	if in.BunkerCategory != nil {
		rec.BunkerCategory = strings.ToUpper(strings.TrimSpace(*in.BunkerCategory))
	}
	set(&rec.FuelTypeKey, in.FuelTypeKey)
	set(&rec.LubeOilTypeKey, in.LubeOilTypeKey)
	if in.BunkeredQuantity != nil {
		rec.BunkeredQuantity = *in.BunkeredQuantity
	}
	setF(&rec.DensityAt15C, in.DensityAt15C)
	setF(&rec.SulphurContentPercent, in.SulphurContentPercent)
	setF(&rec.FlashPointC, in.FlashPointC)
	setF(&rec.ViscosityAt50CcSt, in.ViscosityAt50CcSt)
	setF(&rec.WaterContentPercent, in.WaterContentPercent)
	setF(&rec.LCV, in.LCV)
	setF(&rec.TemperatureC, in.TemperatureC)
	setF(&rec.PressureBar, in.PressureBar)
	set(&rec.SupplierName, in.SupplierName)
	set(&rec.BargeName, in.BargeName)
	set(&rec.MarpolSampleSealNumber, in.MarpolSampleSealNumber)
	if in.BDNDeclarationReceived != nil {
		rec.BDNDeclarationReceived = *in.BDNDeclarationReceived
	}
	setF(&rec.InitialVolumeM3, in.InitialVolumeM3)
	setF(&rec.FinalVolumeM3, in.FinalVolumeM3)
	setF(&rec.BunkeredVolumeM3, in.BunkeredVolumeM3)
	if in.OperationType != nil {
		rec.OperationType = rob.OpType(strings.ToUpper(strings.TrimSpace(*in.OperationType)))
	}
	set(&rec.CorrectionSign, in.CorrectionSign)
	set(&rec.Remarks, in.Remarks)
	if rec.BunkerPortCode != nil {
		c := strings.ToUpper(strings.TrimSpace(*rec.BunkerPortCode))
		rec.BunkerPortCode = &c
	}
	// Only the key of the record's category is kept.
	switch rob.Category(rec.BunkerCategory) {
	case rob.CategoryFuel:
		rec.LubeOilTypeKey = nil
	case rob.CategoryLubeOil:
		rec.FuelTypeKey = nil
	}
	if rec.OperationType != rob.OpCorrection && in.CorrectionSign == nil {
		rec.CorrectionSign = nil
	}
	return rec
}

// Validate checks a complete record before it is written. An empty BDN is
// allowed only for supply operations, where the caller allocates one.
func Validate(rec Record) error {
	if rec.ShipID <= 0 {
		return fmt.Errorf("%w: shipId is required", ErrInvalid)
	}
	if rec.BunkerDate.IsZero() {
		return fmt.Errorf("%w: bunkerDate is required", ErrInvalid)
	}
	cat, err := rob.ParseCategory(rec.BunkerCategory)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	op, err := rob.ParseOp(string(rec.OperationType))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if rec.ItemType() == "" {
		if cat == rob.CategoryFuel {
			return fmt.Errorf("%w: fuelTypeKey is required for fuel", ErrInvalid)
		}
		return fmt.Errorf("%w: lubeOilTypeKey is required for lube oil", ErrInvalid)
	}
	q := rec.BunkeredQuantity
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return fmt.Errorf("%w: bunkeredQuantity must be >= 0", ErrInvalid)
	}
	if op == rob.OpLOTopUp && cat != rob.CategoryLubeOil {
		return fmt.Errorf("%w: LO_TOPUP applies to lube oil only", ErrInvalid)
	}
	switch s := rec.sign(); {
	case op == rob.OpCorrection && s != "+" && s != "-":
		return fmt.Errorf("%w: correctionSign must be + or - for corrections", ErrInvalid)
	case op != rob.OpCorrection && s != "":
		return fmt.Errorf("%w: correctionSign is only valid for corrections", ErrInvalid)
	}
	if rec.BDNNumber == "" && !op.IsSupply() {
		return fmt.Errorf("%w: bdnNumber is required for %s", ErrInvalid, op)
	}
	if p := rec.SulphurContentPercent; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("%w: sulphur content must be a percentage", ErrInvalid)
	}
	if p := rec.WaterContentPercent; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("%w: water content must be a percentage", ErrInvalid)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	ShipID          int64
	Category        string
	IncludeInactive bool
}
