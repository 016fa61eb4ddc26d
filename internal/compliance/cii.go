// Package compliance computes the IMO carbon intensity indicator and the
// EU/UK MRV and ETS emission summaries from submitted vessel reports.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrUnknownShipType = errors.New("unknown ship type")
	ErrUnknownFuel     = errors.New("unknown fuel type")
	ErrInvalid         = errors.New("invalid compliance input")
)

// CO2 conversion factors, t CO2 per t fuel.
var conversionFactors = map[string]float64{
	"HFO":         3.114,
	"VLSFO":       3.114,
	"LFO":         3.151,
	"ULSFO":       3.151,
	"MDO":         3.206,
	"MGO":         3.206,
	"LNG":         2.750,
	"LPG_PROPANE": 3.000,
	"LPG_BUTANE":  3.030,
	"METHANOL":    1.375,
	"ETHANOL":     1.913,
}

// ConversionFactor returns Cf for a fuel type code.
func ConversionFactor(fuelType string) (float64, error) {
	cf, ok := conversionFactors[strings.ToUpper(fuelType)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFuel, fuelType)
	}
	return cf, nil
}

// CO2 sums the emissions of a fuel map in tonnes.
func CO2(fuel map[string]float64) (float64, error) {
	var total float64
	for ft, t := range fuel {
		cf, err := ConversionFactor(ft)
		if err != nil {
			return 0, err
		}
		total += t * cf
	}
	return total, nil
}

// Reduction factors Z (%) relative to the 2019 reference line. Ratings start in 2023.
var reductionFactors = map[int]float64{
	2023: 5, 2024: 7, 2025: 9, 2026: 11,
	2027: 13.625, 2028: 16.25, 2029: 18.875, 2030: 21.5,
}

func ReductionFactor(year int) (float64, error) {
	z, ok := reductionFactors[year]
	if !ok {
		return 0, fmt.Errorf("%w: no reduction factor for %d", ErrInvalid, year)
	}
	return z, nil
}

// referenceLine is one row of the reference line table: Reference = a * capacity^-c.
// refCap, when set, replaces the capacity in the reference formula.
type referenceLine struct {
	a, c   float64
	refCap float64
}

// dd vectors (MEPC.354(78)) give the A/B, B/C, C/D and D/E boundaries as
// multiples of the required CII. Some classes change vector with size.
type shipClass struct {
	byGT  bool
	lines func(capacity float64) referenceLine
	dd    func(capacity float64) [4]float64
}

func fixed(a, c float64) func(float64) referenceLine {
	return func(float64) referenceLine { return referenceLine{a: a, c: c} }
}

func bands(d1, d2, d3, d4 float64) func(float64) [4]float64 {
	return func(float64) [4]float64 { return [4]float64{d1, d2, d3, d4} }
}

var shipClasses = map[string]shipClass{
	"BULK_CARRIER": {
		lines: func(capacity float64) referenceLine {
			if capacity >= 279000 {
				return referenceLine{a: 4745, c: 0.622, refCap: 279000}
			}
			return referenceLine{a: 4745, c: 0.622}
		},
		dd: bands(0.86, 0.94, 1.06, 1.18),
	},
	"GAS_CARRIER": {
		lines: func(capacity float64) referenceLine {
			if capacity >= 65000 {
				return referenceLine{a: 14405e7, c: 2.071}
			}
			return referenceLine{a: 8104, c: 0.639}
		},
		dd: func(capacity float64) [4]float64 {
			if capacity >= 65000 {
				return [4]float64{0.81, 0.91, 1.12, 1.44}
			}
			return [4]float64{0.85, 0.95, 1.06, 1.25}
		},
	},
	"TANKER":    {lines: fixed(5247, 0.610), dd: bands(0.82, 0.93, 1.08, 1.28)},
	"CONTAINER": {lines: fixed(1984, 0.489), dd: bands(0.83, 0.94, 1.07, 1.19)},
	"GENERAL_CARGO": {
		lines: func(capacity float64) referenceLine {
			if capacity >= 20000 {
				return referenceLine{a: 31948, c: 0.792}
			}
			return referenceLine{a: 588, c: 0.3885}
		},
		dd: bands(0.83, 0.94, 1.06, 1.19),
	},
	"REFRIGERATED_CARGO":  {lines: fixed(4600, 0.557), dd: bands(0.78, 0.91, 1.07, 1.20)},
	"COMBINATION_CARRIER": {lines: fixed(5119, 0.622), dd: bands(0.87, 0.96, 1.06, 1.14)},
	"LNG_CARRIER": {
		lines: func(capacity float64) referenceLine {
			switch {
			case capacity >= 100000:
				return referenceLine{a: 9.827, c: 0}
			case capacity >= 65000:
				return referenceLine{a: 14479e10, c: 2.673}
			}
			return referenceLine{a: 14479e10, c: 2.673, refCap: 65000}
		},
		dd: func(capacity float64) [4]float64 {
			if capacity >= 100000 {
				return [4]float64{0.89, 0.98, 1.06, 1.13}
			}
			return [4]float64{0.78, 0.92, 1.10, 1.37}
		},
	},
	"RORO_VEHICLE": {
		byGT: true,
		lines: func(capacity float64) referenceLine {
			switch {
			case capacity >= 57700:
				return referenceLine{a: 3627, c: 0.590, refCap: 57700}
			case capacity >= 30000:
				return referenceLine{a: 3627, c: 0.590}
			}
			return referenceLine{a: 330, c: 0.329}
		},
		dd: bands(0.86, 0.94, 1.06, 1.16),
	},
	"RORO_CARGO":       {lines: fixed(1967, 0.485), dd: bands(0.76, 0.89, 1.08, 1.27)},
	"RORO_PASSENGER":   {byGT: true, lines: fixed(2023, 0.460), dd: bands(0.76, 0.92, 1.14, 1.30)},
	"CRUISE_PASSENGER": {byGT: true, lines: fixed(930, 0.383), dd: bands(0.87, 0.95, 1.06, 1.16)},
}

// ShipTypes lists the ship type codes the calculator knows.
func ShipTypes() []string {
	out := make([]string, 0, len(shipClasses))
	for k := range shipClasses {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type CIIInput struct {
	ShipType   string             `json:"shipType"`
	DWT        float64            `json:"dwt"`
	GT         float64            `json:"gt"`
	DistanceNM float64            `json:"distanceNm"`
	Fuel       map[string]float64 `json:"fuel"`
	Year       int                `json:"year"`
}

type CIIResult struct {
	Year            int        `json:"year"`
	ShipType        string     `json:"shipType"`
	CapacityUnit    string     `json:"capacityUnit"`
	Capacity        float64    `json:"capacity"`
	DistanceNM      float64    `json:"distanceNm"`
	CO2Tonnes       float64    `json:"co2Tonnes"`
	Attained        float64    `json:"attainedCii"`
	Reference       float64    `json:"referenceCii"`
	ReductionFactor float64    `json:"reductionFactor"`
	Required        float64    `json:"requiredCii"`
	Ratio           float64    `json:"ratio"`
	Boundaries      [4]float64 `json:"boundaries"`
	Rating          string     `json:"rating"`
}

// CalculateCII computes attained, reference and required CII (g CO2 per
// capacity-nm) and the A to E rating for one reporting year.
func CalculateCII(in CIIInput) (CIIResult, error) {
	shipType := strings.ToUpper(strings.TrimSpace(in.ShipType))
	cls, ok := shipClasses[shipType]
	if !ok {
		return CIIResult{}, fmt.Errorf("%w: %s", ErrUnknownShipType, in.ShipType)
	}
	res := CIIResult{Year: in.Year, ShipType: shipType, CapacityUnit: "DWT", Capacity: in.DWT, DistanceNM: in.DistanceNM}
	if cls.byGT {
		res.CapacityUnit, res.Capacity = "GT", in.GT
	}
	if res.Capacity <= 0 {
		return CIIResult{}, fmt.Errorf("%w: %s capacity is required", ErrInvalid, res.CapacityUnit)
	}
	if in.DistanceNM <= 0 {
		return CIIResult{}, fmt.Errorf("%w: distance must be > 0", ErrInvalid)
	}
	z, err := ReductionFactor(in.Year)
	if err != nil {
		return CIIResult{}, err
	}
	co2, err := CO2(in.Fuel)
	if err != nil {
		return CIIResult{}, err
	}

	line := cls.lines(res.Capacity)
	refCap := res.Capacity
	if line.refCap > 0 {
		refCap = line.refCap
	}
	res.CO2Tonnes = co2
	res.Attained = co2 * 1e6 / (res.Capacity * in.DistanceNM)
	res.Reference = line.a * math.Pow(refCap, -line.c)
	res.ReductionFactor = z
	res.Required = (1 - z/100) * res.Reference
	res.Ratio = res.Attained / res.Required
	for i, d := range cls.dd(res.Capacity) {
		res.Boundaries[i] = d * res.Required
	}
	res.Rating = rate(res.Attained, res.Boundaries)
	return res, nil
}

func rate(attained float64, b [4]float64) string {
	for i, bound := range b {
		if attained < bound {
			return string(rune('A' + i))
		}
	}
	return "E"
}
