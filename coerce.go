package starschema

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Integers no larger in magnitude than maxExactFloat are exactly
// representable as float64.
const maxExactFloat = 1 << 53

// The to* helpers coerce decoded JSON values. A nil value is never passed to
// them; callers decide what null means for each field.

func toString(val interface{}) (string, error) {
	switch vt := val.(type) {
	case string:
		return vt, nil
	case []byte:
		return string(vt), nil
	case float64:
		return strconv.FormatFloat(vt, 'f', -1, 64), nil
	case json.Number:
		return vt.String(), nil
	case bool:
		return strconv.FormatBool(vt), nil
	default:
		return "", errors.Errorf("couldn't convert %v of %[1]T to string", vt)
	}
}

func toInt64(val interface{}) (int64, error) {
	switch vt := val.(type) {
	case int:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case int64:
		return vt, nil
	case float64:
		if vt != math.Trunc(vt) || math.IsInf(vt, 0) {
			return 0, errors.Errorf("couldn't convert non-integral %v to int64", vt)
		}
		if vt < -maxExactFloat || vt > maxExactFloat {
			return 0, errors.Errorf("couldn't convert %v to int64 exactly", vt)
		}
		return int64(vt), nil
	case json.Number:
		return vt.Int64()
	case string:
		i, err := strconv.ParseInt(vt, 10, 64)
		return i, errors.Wrapf(err, "couldn't convert '%s' to int64", vt)
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to int64", vt)
	}
}

func toFloat64(val interface{}) (float64, error) {
	switch vt := val.(type) {
	case float64:
		return vt, nil
	case float32:
		return float64(vt), nil
	case int:
		return float64(vt), nil
	case int64:
		return float64(vt), nil
	case json.Number:
		return vt.Float64()
	case string:
		f, err := strconv.ParseFloat(vt, 64)
		return f, errors.Wrapf(err, "couldn't convert '%s' to float64", vt)
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to float64", vt)
	}
}

// fields wraps a decoded object and remembers the first coercion failure so
// that parsers read as a flat list of assignments.
type fields struct {
	m   map[string]interface{}
	err error
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = errors.Wrapf(err, "field '%s'", key)
	}
}

func (f *fields) str(key string) string {
	v, ok := f.m[key]
	if !ok || v == nil {
		return ""
	}
	s, err := toString(v)
	if err != nil {
		f.fail(key, err)
	}
	return s
}

func (f *fields) strPtr(key string) *string {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil
	}
	s := f.str(key)
	return &s
}

func (f *fields) integer(key string) int64 {
	v, ok := f.m[key]
	if !ok || v == nil {
		return 0
	}
	i, err := toInt64(v)
	if err != nil {
		f.fail(key, err)
	}
	return i
}

func (f *fields) requiredInteger(key string) int64 {
	v, ok := f.m[key]
	if !ok || v == nil {
		f.fail(key, ErrMissingField)
		return 0
	}
	return f.integer(key)
}

func (f *fields) float(key string) float64 {
	v, ok := f.m[key]
	if !ok || v == nil {
		return 0
	}
	fl, err := toFloat64(v)
	if err != nil {
		f.fail(key, err)
	}
	return fl
}

func (f *fields) floatPtr(key string) *float64 {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil
	}
	fl := f.float(key)
	return &fl
}
