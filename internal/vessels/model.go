// Package vessels stores ships, fleets and the fleet to ship mapping.
package vessels

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("ship not found")
	ErrFleetNotFound = errors.New("fleet not found")
	ErrConflict      = errors.New("ship already exists")
	ErrFleetConflict = errors.New("fleet already exists")
	ErrInvalid       = errors.New("invalid ship")
)

type Ship struct {
	ID             int64     `json:"id"`
	IMONumber      string    `json:"imoNumber"`
	ShipName       string    `json:"shipName"`
	ShortName      string    `json:"shortName"`
	VesselTypeKey  string    `json:"vesselTypeKey"`
	CapacityDWT    *float64  `json:"capacityDwt,omitempty"`
	CapacityGT     *float64  `json:"capacityGt,omitempty"`
	NetTonnage     *float64  `json:"netTonnage,omitempty"`
	YearOfBuild    *int32    `json:"yearOfBuild,omitempty"`
	FlagState      *string   `json:"flagState,omitempty"`
	PortOfRegistry *string   `json:"portOfRegistry,omitempty"`
	CallSign       *string   `json:"callSign,omitempty"`
	MMSI           *string   `json:"mmsi,omitempty"`
	EEDI           *float64  `json:"eedi,omitempty"`
	EEXI           *float64  `json:"eexi,omitempty"`
	ClassSociety   *string   `json:"classSociety,omitempty"`
	LengthOverall  *float64  `json:"lengthOverall,omitempty"`
	Breadth        *float64  `json:"breadth,omitempty"`
	Depth          *float64  `json:"depth,omitempty"`
	Displacement   *float64  `json:"displacement,omitempty"`
	IceClass       *string   `json:"iceClass,omitempty"`
	ImagePath      *string   `json:"imagePath,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ShipPatch is both the create body and the partial update body.
type ShipPatch struct {
	IMONumber      *string  `json:"imoNumber"`
	ShipName       *string  `json:"shipName"`
	ShortName      *string  `json:"shortName"`
	VesselTypeKey  *string  `json:"vesselTypeKey"`
	CapacityDWT    *float64 `json:"capacityDwt"`
	CapacityGT     *float64 `json:"capacityGt"`
	NetTonnage     *float64 `json:"netTonnage"`
	YearOfBuild    *int32   `json:"yearOfBuild"`
	FlagState      *string  `json:"flagState"`
	PortOfRegistry *string  `json:"portOfRegistry"`
	CallSign       *string  `json:"callSign"`
	MMSI           *string  `json:"mmsi"`
	EEDI           *float64 `json:"eedi"`
	EEXI           *float64 `json:"eexi"`
	ClassSociety   *string  `json:"classSociety"`
	LengthOverall  *float64 `json:"lengthOverall"`
	Breadth        *float64 `json:"breadth"`
	Depth          *float64 `json:"depth"`
	Displacement   *float64 `json:"displacement"`
	IceClass       *string  `json:"iceClass"`
	ImagePath      *string  `json:"-"`
}

var imoRe = regexp.MustCompile(`^[0-9]{7}$`)

// Validate checks the fields that are present. create additionally requires the identity fields.
func (p *ShipPatch) Validate(create bool) error {
	if create && (p.IMONumber == nil || p.ShipName == nil || p.ShortName == nil || p.VesselTypeKey == nil) {
		return fmt.Errorf("%w: imoNumber, shipName, shortName and vesselTypeKey are required", ErrInvalid)
	}
	if p.IMONumber != nil {
		imo := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(*p.IMONumber)), "IMO")
		imo = strings.TrimSpace(imo)
		if !imoRe.MatchString(imo) {
			return fmt.Errorf("%w: IMO number must be 7 digits", ErrInvalid)
		}
		p.IMONumber = &imo
	}
	if p.ShortName != nil {
		sn := strings.ToUpper(strings.TrimSpace(*p.ShortName))
		if sn == "" || strings.ContainsAny(sn, " /\\") {
			return fmt.Errorf("%w: short name must be a single token", ErrInvalid)
		}
		p.ShortName = &sn
	}
	if p.ShipName != nil && strings.TrimSpace(*p.ShipName) == "" {
		return fmt.Errorf("%w: ship name is empty", ErrInvalid)
	}
	for _, v := range []*float64{p.CapacityDWT, p.CapacityGT, p.NetTonnage} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: tonnage must be >= 0", ErrInvalid)
		}
	}
	if p.YearOfBuild != nil && (*p.YearOfBuild < 1900 || *p.YearOfBuild > int32(time.Now().Year()+5)) {
		return fmt.Errorf("%w: year of build out of range", ErrInvalid)
	}
	return nil
}

type Fleet struct {
	ID          int64      `json:"id"`
	FleetName   string     `json:"fleetName"`
	Description *string    `json:"description,omitempty"`
	LogoPath    *string    `json:"logoPath,omitempty"`
	IsActive    bool       `json:"isActive"`
	ShipCount   int        `json:"shipCount"`
	Ships       []ShipName `json:"ships,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type FleetPatch struct {
	FleetName   *string `json:"fleetName"`
	Description *string `json:"description"`
	LogoPath    *string `json:"-"`
}

// ShipName is the short form used by dropdowns and fleet mapping.
type ShipName struct {
	ID        int64  `json:"id"`
	ShipName  string `json:"shipName"`
	ShortName string `json:"shortName"`
	IMONumber string `json:"imoNumber"`
	FleetID   *int64 `json:"fleetId,omitempty"`
}
