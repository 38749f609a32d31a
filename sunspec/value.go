package sunspec

import (
	"fmt"
	"math"

	"github.com/GoAethereal/sunspec/codec"
)

// Value returns the point's cooked value — value_base × 10^value_sf when a
// scale factor is bound, else value_base — and whether the point is
// currently implemented. An unimplemented point reports (nil, false).
func (p *Point) Value() (interface{}, bool) {
	if !p.Impl {
		return nil, false
	}
	if p.ValueSF == nil {
		return p.ValueBase, true
	}
	base, err := toFloat64Generic(p.ValueBase)
	if err != nil {
		return p.ValueBase, true
	}
	if *p.ValueSF < 0 {
		return base / math.Pow(10, float64(-*p.ValueSF)), true
	}
	return base * math.Pow(10, float64(*p.ValueSF)), true
}

// SetValue is the write accessor: with a scale factor bound, v is rounded
// to |value_sf| decimal places, divided by 10^value_sf, and the integer
// result stored as value_base; without one, a string v is coerced through
// the point type's to-value function and any other v is stored as given.
// Either path always sets Dirty.
func (p *Point) SetValue(v interface{}) error {
	defer func() { p.Dirty = true; p.Impl = true }()

	if p.ValueSF == nil {
		if s, ok := v.(string); ok {
			coerced, err := codec.ToValue(p.PointType.Type, s)
			if err != nil {
				return err
			}
			p.ValueBase = coerced
			return nil
		}
		p.ValueBase = v
		return nil
	}

	f, err := toFloat64Generic(v)
	if err != nil {
		return fmt.Errorf("sunspec: point %s: %w", p.PointType.ID, err)
	}
	decimals := int(*p.ValueSF)
	if decimals < 0 {
		decimals = -decimals
	}
	rounded := roundToDecimals(f, decimals)
	base := rounded / math.Pow(10, float64(*p.ValueSF))
	p.ValueBase = int64(math.Round(base))
	return nil
}

func roundToDecimals(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(v*shift) / shift
}

func toFloat64Generic(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("cannot use %T as a numeric value", v)
}
