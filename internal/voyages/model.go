// Package voyages stores voyages and their legs.
package voyages

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("voyage not found")
	ErrLegNotFound = errors.New("voyage leg not found")
	ErrConflict    = errors.New("voyage number already exists for this ship")
	ErrInvalid     = errors.New("invalid voyage")
)

const (
	StatusPlanned   = "Planned"
	StatusActive    = "Active"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

var statuses = map[string]bool{StatusPlanned: true, StatusActive: true, StatusCompleted: true, StatusCancelled: true}

type Voyage struct {
	ID                int64      `json:"id"`
	ShipID            int64      `json:"shipId"`
	ShipName          string     `json:"shipName,omitempty"`
	VoyageNumber      string     `json:"voyageNumber"`
	DeparturePortCode *string    `json:"departurePortCode,omitempty"`
	ArrivalPortCode   *string    `json:"arrivalPortCode,omitempty"`
	ETD               *time.Time `json:"etd,omitempty"`
	ATD               *time.Time `json:"atd,omitempty"`
	ETA               *time.Time `json:"eta,omitempty"`
	ATA               *time.Time `json:"ata,omitempty"`
	DistancePlannedNM *float64   `json:"distancePlannedNm,omitempty"`
	DistanceSailedNM  *float64   `json:"distanceSailedNm,omitempty"`
	CargoDescription  *string    `json:"cargoDescription,omitempty"`
	CargoWeightMT     *float64   `json:"cargoWeightMt,omitempty"`
	VoyageStatus      string     `json:"voyageStatus"`
	Notes             *string    `json:"notes,omitempty"`
	LastLegNumber     int32      `json:"lastLegNumber"`
	IsActive          bool       `json:"isActive"`
	CreatedBy         *string    `json:"createdBy,omitempty"`
	ModifiedBy        *string    `json:"modifiedBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Patch is the create body (multipart "data" JSON) and the partial update body.
type Patch struct {
	ShipID            *int64     `json:"shipId"`
	VoyageNumber      *string    `json:"voyageNumber"`
	DeparturePortCode *string    `json:"departurePortCode"`
	ArrivalPortCode   *string    `json:"arrivalPortCode"`
	ETD               *time.Time `json:"etd"`
	ATD               *time.Time `json:"atd"`
	ETA               *time.Time `json:"eta"`
	ATA               *time.Time `json:"ata"`
	DistancePlannedNM *float64   `json:"distancePlannedNm"`
	DistanceSailedNM  *float64   `json:"distanceSailedNm"`
	CargoDescription  *string    `json:"cargoDescription"`
	CargoWeightMT     *float64   `json:"cargoWeightMt"`
	VoyageStatus      *string    `json:"voyageStatus"`
	Notes             *string    `json:"notes"`
}

func upperPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	return &v
}

func (p *Patch) Validate(create bool) error {
	if create && (p.ShipID == nil || *p.ShipID <= 0) {
		return fmt.Errorf("%w: shipId is required", ErrInvalid)
	}
	if p.VoyageNumber != nil && strings.TrimSpace(*p.VoyageNumber) == "" {
		return fmt.Errorf("%w: voyage number is empty", ErrInvalid)
	}
	if p.VoyageStatus != nil && !statuses[*p.VoyageStatus] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, *p.VoyageStatus)
	}
	if err := checkOrder(p.ETD, p.ETA, "eta before etd"); err != nil {
		return err
	}
	if err := checkOrder(p.ATD, p.ATA, "ata before atd"); err != nil {
		return err
	}
	for _, v := range []*float64{p.DistancePlannedNM, p.DistanceSailedNM, p.CargoWeightMT} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: distances and cargo must be >= 0", ErrInvalid)
		}
	}
	p.DeparturePortCode = upperPtr(p.DeparturePortCode)
	p.ArrivalPortCode = upperPtr(p.ArrivalPortCode)
	return nil
}

func checkOrder(from, to *time.Time, msg string) error {
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("%w: %s", ErrInvalid, msg)
	}
	return nil
}

type Leg struct {
	ID                int64      `json:"id"`
	VoyageID          int64      `json:"voyageId"`
	ShipID            int64      `json:"shipId"`
	LegNumber         int32      `json:"legNumber"`
	LegName           *string    `json:"legName,omitempty"`
	DeparturePortCode *string    `json:"departurePortCode,omitempty"`
	ArrivalPortCode   *string    `json:"arrivalPortCode,omitempty"`
	ETD               *time.Time `json:"etd,omitempty"`
	ATD               *time.Time `json:"atd,omitempty"`
	ETA               *time.Time `json:"eta,omitempty"`
	ATA               *time.Time `json:"ata,omitempty"`
	DistanceNM        *float64   `json:"distanceNm,omitempty"`
	CargoDescription  *string    `json:"cargoDescription,omitempty"`
	CargoWeightMT     *float64   `json:"cargoWeightMt,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type LegPatch struct {
	LegName           *string    `json:"legName"`
	DeparturePortCode *string    `json:"departurePortCode"`
	ArrivalPortCode   *string    `json:"arrivalPortCode"`
	ETD               *time.Time `json:"etd"`
	ATD               *time.Time `json:"atd"`
	ETA               *time.Time `json:"eta"`
	ATA               *time.Time `json:"ata"`
	DistanceNM        *float64   `json:"distanceNm"`
	CargoDescription  *string    `json:"cargoDescription"`
	CargoWeightMT     *float64   `json:"cargoWeightMt"`
}

func (p *LegPatch) Validate() error {
	if err := checkOrder(p.ETD, p.ETA, "eta before etd"); err != nil {
		return err
	}
	if err := checkOrder(p.ATD, p.ATA, "ata before atd"); err != nil {
		return err
	}
	if p.DistanceNM != nil && *p.DistanceNM < 0 {
		return fmt.Errorf("%w: distance must be >= 0", ErrInvalid)
	}
	p.DeparturePortCode = upperPtr(p.DeparturePortCode)
	p.ArrivalPortCode = upperPtr(p.ArrivalPortCode)
	return nil
}

// LegName defaults to "DEP - ARR" when the client sent none.
func defaultLegName(p LegPatch) *string {
	if p.LegName != nil && strings.TrimSpace(*p.LegName) != "" {
		return p.LegName
	}
	if p.DeparturePortCode == nil && p.ArrivalPortCode == nil {
		return nil
	}
	deref := func(s *string) string {
		if s == nil {
			return "?"
		}
		return *s
	}
	name := deref(p.DeparturePortCode) + " - " + deref(p.ArrivalPortCode)
	return &name
}
