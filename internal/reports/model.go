// Package reports stores vessel noon/departure/arrival reports and posts
// their consumption to the ROB ledger on submission.
package reports

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
)

var (
	ErrNotFound = errors.New("report not found")
	ErrNotDraft = errors.New("report is already submitted")
	ErrInvalid  = errors.New("invalid report")
)

const (
	StatusDraft     = "DRAFT"
	StatusSubmitted = "SUBMITTED"
)

type FuelLine struct {
	FuelTypeKey string  `json:"fuelTypeKey"`
	BDNNumber   *string `json:"bdnNumber,omitempty"`
	MachineryID *int64  `json:"machineryId,omitempty"`
	ConsumedMT  float64 `json:"consumedMt"`
}

type LubeLine struct {
	LubeOilTypeKey string  `json:"lubeOilTypeKey"`
	BDNNumber      *string `json:"bdnNumber,omitempty"`
	MachineryID    *int64  `json:"machineryId,omitempty"`
	ConsumedQty    float64 `json:"consumedQty"`
}

type Report struct {
	ID                  int64      `json:"id"`
	ShipID              int64      `json:"shipId"`
	VoyageID            *int64     `json:"voyageId,omitempty"`
	VoyageLegID         *int64     `json:"voyageLegId,omitempty"`
	ReportTypeKey       string     `json:"reportTypeKey"`
	ReportDateTimeUTC   time.Time  `json:"reportDateTimeUtc"`
	ReportDateTimeLocal *time.Time `json:"reportDateTimeLocal,omitempty"`
	TimeZoneAtPort      *string    `json:"timeZoneAtPort,omitempty"`
	CurrentPortCode     *string    `json:"currentPortCode,omitempty"`
	VoyageNumber        *string    `json:"voyageNumber,omitempty"`
	FromPortCode        *string    `json:"fromPortCode,omitempty"`
	ToPortCode          *string    `json:"toPortCode,omitempty"`
	LegNumber           *int       `json:"legNumber,omitempty"`
	DistanceSailedNM    *float64   `json:"distanceSailedNm,omitempty"`
	SteamingHours       *float64   `json:"steamingHours,omitempty"`
	CargoWeightMT       *float64   `json:"cargoWeightMt,omitempty"`
	Latitude            *float64   `json:"latitude,omitempty"`
	Longitude           *float64   `json:"longitude,omitempty"`
	Remarks             *string    `json:"remarks,omitempty"`
	Status              string     `json:"status"`
	SubmittedAt         *time.Time `json:"submittedAt,omitempty"`
	CreatedBy           *string    `json:"createdBy,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`

	Fuel []FuelLine `json:"fuelConsumption"`
	Lube []LubeLine `json:"lubeOilConsumption"`
}

// ConsumptionLines converts the report lines to ledger input.
func (r Report) ConsumptionLines() []rob.ConsumptionLine {
	out := make([]rob.ConsumptionLine, 0, len(r.Fuel)+len(r.Lube))
	for _, f := range r.Fuel {
		out = append(out, rob.ConsumptionLine{Category: rob.CategoryFuel, ItemType: f.FuelTypeKey, BDNNumber: deref(f.BDNNumber), Quantity: f.ConsumedMT})
	}
	for _, l := range r.Lube {
		out = append(out, rob.ConsumptionLine{Category: rob.CategoryLubeOil, ItemType: l.LubeOilTypeKey, BDNNumber: deref(l.BDNNumber), Quantity: l.ConsumedQty})
	}
	return out
}

// Input opens a draft. Voyage fields left empty are copied from the ship's previous report.
type Input struct {
	ShipID              int64     `json:"shipId" binding:"required"`
	ReportTypeKey       string    `json:"reportTypeKey" binding:"required"`
	ReportDateTimeLocal time.Time `json:"reportDateTimeLocal" binding:"required"`
	TimeZoneAtPort      string    `json:"timeZoneAtPort"`
	CurrentPortCode     *string   `json:"currentPortCode"`
	VoyageDetails
}

type VoyageDetails struct {
	VoyageID     *int64  `json:"voyageId"`
	VoyageLegID  *int64  `json:"voyageLegId"`
	VoyageNumber *string `json:"voyageNumber"`
	FromPortCode *string `json:"fromPortCode"`
	ToPortCode   *string `json:"toPortCode"`
	LegNumber    *int    `json:"legNumber"`
}

func (v *VoyageDetails) normalize() {
	v.FromPortCode = upper(v.FromPortCode)
	v.ToPortCode = upper(v.ToPortCode)
}

// prefill copies the voyage context of prev into the empty fields of in.
func (in *Input) prefill(prev *Report) {
	if prev == nil {
		return
	}
	if in.VoyageID == nil {
		in.VoyageID = prev.VoyageID
	}
	if in.VoyageLegID == nil {
		in.VoyageLegID = prev.VoyageLegID
	}
	if in.VoyageNumber == nil {
		in.VoyageNumber = prev.VoyageNumber
	}
	if in.LegNumber == nil {
		in.LegNumber = prev.LegNumber
	}
	if in.FromPortCode == nil {
		in.FromPortCode = prev.FromPortCode
	}
	if in.ToPortCode == nil {
		in.ToPortCode = prev.ToPortCode
	}
	if in.CurrentPortCode == nil {
		in.CurrentPortCode = prev.CurrentPortCode
	}
	if in.TimeZoneAtPort == "" && prev.TimeZoneAtPort != nil {
		in.TimeZoneAtPort = *prev.TimeZoneAtPort
	}
}

func (in *Input) Validate() error {
	if in.ShipID <= 0 {
		return fmt.Errorf("%w: shipId is required", ErrInvalid)
	}
	in.ReportTypeKey = strings.ToUpper(strings.TrimSpace(in.ReportTypeKey))
	if in.ReportTypeKey == "" {
		return fmt.Errorf("%w: reportTypeKey is required", ErrInvalid)
	}
	if in.ReportDateTimeLocal.IsZero() {
		return fmt.Errorf("%w: reportDateTimeLocal is required", ErrInvalid)
	}
	if _, err := ParseOffset(in.TimeZoneAtPort); err != nil {
		return err
	}
	in.CurrentPortCode = upper(in.CurrentPortCode)
	in.normalize()
	return nil
}

// Patch is the draft edit body. Non-nil line slices replace the stored lines.
type Patch struct {
	ReportTypeKey       *string    `json:"reportTypeKey"`
	ReportDateTimeLocal *time.Time `json:"reportDateTimeLocal"`
	TimeZoneAtPort      *string    `json:"timeZoneAtPort"`
	CurrentPortCode     *string    `json:"currentPortCode"`
	DistanceSailedNM    *float64   `json:"distanceSailedNm"`
	SteamingHours       *float64   `json:"steamingHours"`
	CargoWeightMT       *float64   `json:"cargoWeightMt"`
	Latitude            *float64   `json:"latitude"`
	Longitude           *float64   `json:"longitude"`
	Remarks             *string    `json:"remarks"`

	Fuel []FuelLine `json:"fuelConsumption"`
	Lube []LubeLine `json:"lubeOilConsumption"`
}

func (p *Patch) Validate() error {
	p.ReportTypeKey = upper(p.ReportTypeKey)
	p.CurrentPortCode = upper(p.CurrentPortCode)
	if p.TimeZoneAtPort != nil {
		if _, err := ParseOffset(*p.TimeZoneAtPort); err != nil {
			return err
		}
	}
	for _, v := range []*float64{p.DistanceSailedNM, p.SteamingHours, p.CargoWeightMT} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: distance, hours and cargo must be >= 0", ErrInvalid)
		}
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalid)
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalid)
	}
	for i := range p.Fuel {
		f := &p.Fuel[i]
		f.FuelTypeKey = strings.ToUpper(strings.TrimSpace(f.FuelTypeKey))
		f.BDNNumber = trimmed(f.BDNNumber)
		if f.FuelTypeKey == "" || f.ConsumedMT < 0 {
			return fmt.Errorf("%w: fuel line %d needs a fuel type and a quantity >= 0", ErrInvalid, i+1)
		}
	}
	for i := range p.Lube {
		l := &p.Lube[i]
		l.LubeOilTypeKey = strings.ToUpper(strings.TrimSpace(l.LubeOilTypeKey))
		l.BDNNumber = trimmed(l.BDNNumber)
		if l.LubeOilTypeKey == "" || l.ConsumedQty < 0 {
			return fmt.Errorf("%w: lube oil line %d needs a type and a quantity >= 0", ErrInvalid, i+1)
		}
	}
	return nil
}

var offsetRe = regexp.MustCompile(`^(?:UTC|GMT)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseOffset reads a port time zone such as "+05:30", "UTC-3" or "GMT+0800".
// Empty, "UTC" and "GMT" mean zero.
func ParseOffset(tz string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(tz))
	if s == "" || s == "UTC" || s == "GMT" || s == "Z" {
		return 0, nil
	}
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: unrecognised time zone %q", ErrInvalid, tz)
	}
	h, _ := strconv.Atoi(m[2])
	mins := 0
	if m[3] != "" {
		mins, _ = strconv.Atoi(m[3])
	}
	if h > 14 || mins > 59 {
		return 0, fmt.Errorf("%w: time zone offset out of range %q", ErrInvalid, tz)
	}
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// ToUTC interprets the wall clock of local in the port time zone.
func ToUTC(local time.Time, tz string) (time.Time, error) {
	off, err := ParseOffset(tz)
	if err != nil {
		return time.Time{}, err
	}
	return wallClock(local).Add(-off), nil
}

// wallClock drops the zone of t and keeps its clock reading, as UTC.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	return &v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
