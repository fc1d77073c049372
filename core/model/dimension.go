package model

import "fmt"

// Dimension identifies one of the five scoring axes.
type Dimension int

const (
	DimCost Dimension = iota
	DimEthics
	DimMarket
	DimTech
	DimTiming
)

// Dimensions lists every axis in canonical order.
var Dimensions = []Dimension{DimCost, DimEthics, DimMarket, DimTech, DimTiming}

// String returns a human-readable representation of the dimension.
func (d Dimension) String() string {
	switch d {
	case DimCost:
		return "cost"
	case DimEthics:
		return "ethics"
	case DimMarket:
		return "market"
	case DimTech:
		return "tech"
	case DimTiming:
		return "timing"
	default:
		return "unknown"
	}
}

// ParseDimension converts a wire name into a Dimension.
func ParseDimension(s string) (Dimension, error) {
	switch s {
	case "cost":
		return DimCost, nil
	case "ethics":
		return DimEthics, nil
	case "market":
		return DimMarket, nil
	case "tech":
		return DimTech, nil
	case "timing":
		return DimTiming, nil
	default:
		return 0, fmt.Errorf("unknown dimension %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so dimensions serialize as
// their names in JSON payloads and map keys.
func (d Dimension) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dimension) UnmarshalText(b []byte) error {
	parsed, err := ParseDimension(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
