package sqlite

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ColumnKind is the declared type of a column, reduced to the cases the
// fixture export knows how to coerce.
type ColumnKind int

const (
	KindOther ColumnKind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

var kindNames = map[string]ColumnKind{
	"INTEGER": KindInteger,
	"REAL":    KindReal,
	"TEXT":    KindText,
	"BLOB":    KindBlob,
}

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "OTHER"
	}
}

// ParseKind maps a declared column type to its kind. Only the four storage
// class names match; "varchar(50)" or "datetime" are KindOther.
func ParseKind(declType string) ColumnKind {
	return kindNames[strings.ToUpper(strings.TrimSpace(declType))]
}

// Column is one entry of PRAGMA table_info.
type Column struct {
	Name       string
	DeclType   string
	Kind       ColumnKind
	NotNull    bool
	PrimaryKey bool
}

// driverConverted are the declared types the driver turns into time.Time
// or bool when reading.
var driverConverted = []string{"date", "datetime", "timestamp", "boolean"}

// selectExpr is the quoted column, or for a date or boolean column an
// expression without a declared type, so the driver hands back the stored
// value untouched.
func (c Column) selectExpr() string {
	name := pq.QuoteIdentifier(c.Name)
	decl := strings.ToLower(strings.TrimSpace(c.DeclType))
	for _, t := range driverConverted {
		if strings.HasPrefix(decl, t) {
			return fmt.Sprintf("CASE WHEN typeof(%[1]s) = 'text' THEN CAST(%[1]s AS TEXT) ELSE %[1]s END AS %[1]s", name)
		}
	}
	return name
}

type coerceFunc func(any) (any, error)

var coercions = map[ColumnKind]coerceFunc{
	KindInteger: toInteger,
	KindReal:    toReal,
	KindText:    toText,
	KindBlob:    toBlob,
	KindOther:   passthrough,
}

// Coerce converts a raw driver value to the JSON-friendly value for kind.
// NULL stays nil whatever the kind.
func Coerce(kind ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	fn, ok := coercions[kind]
	if !ok {
		fn = passthrough
	}
	return fn(v)
}

func toInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	}
	return nil, fmt.Errorf("cannot convert %T to integer", v)
}

func parseInt(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func toReal(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	}
	return nil, fmt.Errorf("cannot convert %T to real", v)
}

func parseFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid real %q", s)
	}
	return f, nil
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return fmt.Sprint(v), nil
}

// toBlob keeps a non-empty blob as text and turns an empty one into null.
func toBlob(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		if len(x) == 0 {
			return nil, nil
		}
		return string(x), nil
	case string:
		if x == "" {
			return nil, nil
		}
		return x, nil
	case int64:
		if x == 0 {
			return nil, nil
		}
	case float64:
		if x == 0 {
			return nil, nil
		}
	}
	return fmt.Sprint(v), nil
}

func passthrough(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return string(x), nil
	case time.Time:
		return nil, fmt.Errorf("stored value was converted to time %s", x)
	}
	return v, nil
}
