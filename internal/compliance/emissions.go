package compliance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Scheme string

const (
	SchemeEU Scheme = "EU"
	SchemeUK Scheme = "UK"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToUpper(strings.TrimSpace(s))) {
	case SchemeEU, "":
		return SchemeEU, nil
	case SchemeUK:
		return SchemeUK, nil
	}
	return "", fmt.Errorf("%w: unknown scheme %q", ErrInvalid, s)
}

// Leg is one submitted report reduced to what emissions reporting needs.
// AtPort is set for reports made alongside, where FromPort/ToPort may be empty.
type Leg struct {
	ReportID   int64
	ReportDate time.Time
	FromPort   string
	ToPort     string
	AtPort     string
	DistanceNM float64
	Hours      float64
	Fuel       map[string]float64
}

// PortScope tells whether a port code lies inside the scheme's area.
type PortScope func(code string) bool

// Coverage returns the share of a leg's emissions inside the scheme:
// 1 when every known end is in scope, 0.5 for voyages with one end in
// scope, 0 otherwise.
func Coverage(l Leg, inScope PortScope) float64 {
	from, to := l.FromPort, l.ToPort
	if from == "" && to == "" || from == to {
		p := l.AtPort
		if p == "" {
			p = from
		}
		if p != "" && inScope(p) {
			return 1
		}
		return 0
	}
	a, b := from != "" && inScope(from), to != "" && inScope(to)
	switch {
	case a && b:
		return 1
	case a || b:
		return 0.5
	}
	return 0
}

type FuelTotal struct {
	FuelType string  `json:"fuelType"`
	Tonnes   float64 `json:"tonnes"`
	CO2      float64 `json:"co2Tonnes"`
}

type MRVSummary struct {
	Scheme     Scheme      `json:"scheme"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	Legs       int         `json:"legs"`
	DistanceNM float64     `json:"distanceNm"`
	Hours      float64     `json:"hours"`
	Fuel       []FuelTotal `json:"fuel"`
	CO2Tonnes  float64     `json:"co2Tonnes"`
	// ETS weighted CO2: legs with one end outside the area count half.
	WeightedCO2 float64 `json:"weightedCo2Tonnes"`
}

// Aggregate sums the legs touching the scheme's area. MRV reporting takes
// every such leg in full; the weighted total feeds ETS.
func Aggregate(scheme Scheme, from, to time.Time, legs []Leg, inScope PortScope) (MRVSummary, error) {
	s := MRVSummary{Scheme: scheme, From: from, To: to, Fuel: []FuelTotal{}}
	byFuel := map[string]*FuelTotal{}
	for _, l := range legs {
		share := Coverage(l, inScope)
		if share == 0 {
			continue
		}
		s.Legs++
		s.DistanceNM += l.DistanceNM
		s.Hours += l.Hours
		for ft, t := range l.Fuel {
			cf, err := ConversionFactor(ft)
			if err != nil {
				return MRVSummary{}, err
			}
			key := strings.ToUpper(ft)
			tot, ok := byFuel[key]
			if !ok {
				tot = &FuelTotal{FuelType: key}
				byFuel[key] = tot
			}
			tot.Tonnes += t
			tot.CO2 += t * cf
			s.CO2Tonnes += t * cf
			s.WeightedCO2 += t * cf * share
		}
	}
	for _, t := range byFuel {
		s.Fuel = append(s.Fuel, *t)
	}
	sort.Slice(s.Fuel, func(i, j int) bool { return s.Fuel[i].FuelType < s.Fuel[j].FuelType })
	return s, nil
}

// PhaseIn is the share of in-scope emissions for which allowances must be
// surrendered in the given year.
func PhaseIn(scheme Scheme, year int) float64 {
	if scheme == SchemeUK {
		return 1
	}
	switch {
	case year < 2024:
		return 0
	case year == 2024:
		return 0.4
	case year == 2025:
		return 0.7
	}
	return 1
}

type ETSSummary struct {
	Scheme      Scheme  `json:"scheme"`
	Year        int     `json:"year"`
	InScopeCO2  float64 `json:"inScopeCo2Tonnes"`
	PhaseIn     float64 `json:"phaseIn"`
	Allowances  float64 `json:"allowances"`
	TotalCO2    float64 `json:"totalCo2Tonnes"`
	LegsInScope int     `json:"legsInScope"`
	DistanceNM  float64 `json:"distanceNm"`
	Hours       float64 `json:"hours"`
}

// ETS applies the phase-in of the year the period starts in.
func ETS(m MRVSummary) ETSSummary {
	year := m.From.Year()
	p := PhaseIn(m.Scheme, year)
	return ETSSummary{
		Scheme:      m.Scheme,
		Year:        year,
		InScopeCO2:  m.WeightedCO2,
		PhaseIn:     p,
		Allowances:  m.WeightedCO2 * p,
		TotalCO2:    m.CO2Tonnes,
		LegsInScope: m.Legs,
		DistanceNM:  m.DistanceNM,
		Hours:       m.Hours,
	}
}

// Totals sums every leg regardless of area, as CII needs.
func Totals(legs []Leg) (distance float64, fuel map[string]float64) {
	fuel = map[string]float64{}
	for _, l := range legs {
		distance += l.DistanceNM
		for ft, t := range l.Fuel {
			fuel[strings.ToUpper(ft)] += t
		}
	}
	return distance, fuel
}
