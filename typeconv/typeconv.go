// Package typeconv provides the default arm.TypeConverter: the mapping
// between native Go values and the database-storable representation of each
// declared column type.
package typeconv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	arm "github.com/lokhman/silex-arm"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

// Converter is the default type converter. The zero value is ready to use.
type Converter struct{}

// New returns a Converter.
func New() *Converter { return &Converter{} }

// ToDatabase converts a native value to its storage representation.
func (c *Converter) ToDatabase(t arm.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case arm.Int, arm.SmallInt:
		return toInt64(v)
	case arm.Bool:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case arm.Float:
		return toFloat64(v)
	case arm.String, arm.Text:
		return toString(v)
	case arm.DateTime:
		return toTimeString(v, dateTimeLayout)
	case arm.Date:
		return toTimeString(v, dateLayout)
	case arm.Time:
		return toTimeString(v, timeLayout)
	case arm.JSON:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding json value: %w", err)
		}
		return string(raw), nil
	case arm.Blob:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("cannot store %T as blob", v)
	}
	return nil, fmt.Errorf("unknown column type %q", t)
}

// FromDatabase converts a storage representation back to a native value:
// int64 for integer types, bool, float64, string, time.Time for temporal
// types, decoded any for json, []byte for blob.
func (c *Converter) FromDatabase(t arm.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case arm.Int, arm.SmallInt:
		return toInt64(v)
	case arm.Bool:
		return toBool(v)
	case arm.Float:
		return toFloat64(v)
	case arm.String, arm.Text:
		return toString(v)
	case arm.DateTime:
		return toTime(v, dateTimeLayout)
	case arm.Date:
		return toTime(v, dateLayout)
	case arm.Time:
		return toTime(v, timeLayout)
	case arm.JSON:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("decoding json value: %w", err)
		}
		return out, nil
	case arm.Blob:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("cannot read %T as blob", v)
	}
	return nil, fmt.Errorf("unknown column type %q", t)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case []byte:
		return strconv.ParseBool(string(b))
	case string:
		return strconv.ParseBool(b)
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case int:
		return float64(f), nil
	case []byte:
		return strconv.ParseFloat(string(f), 64)
	case string:
		return strconv.ParseFloat(f, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case int:
		return strconv.Itoa(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

func toTimeString(v any, layout string) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(layout), nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return "", fmt.Errorf("cannot convert %T to a temporal value", v)
}

func toTime(v any, layout string) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(layout, t)
	case []byte:
		return time.Parse(layout, string(t))
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a temporal value", v)
}

// Compile-time check that Converter implements the arm.TypeConverter
// interface.
var _ arm.TypeConverter = (*Converter)(nil)
