package trino

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"golang.org/x/exp/constraints"
)

const timestampLayout = "2006-01-02 15:04:05.999999999"

// decimalLiteral is how Trino renders decimal values as JSON strings.
var decimalLiteral = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

func produce[T any](p *Parser, target string, conv func(any) (T, error)) (T, error) {
	var zero T
	row, col, v, err := p.next()
	if err != nil {
		return zero, err
	}
	out, err := conv(v)
	if err != nil {
		return zero, &CellError{Row: row, Col: col, Value: v, Target: target, Err: err}
	}
	return out, nil
}

func produceNull[T any](p *Parser, target string, conv func(any) (T, error)) (sql.Null[T], error) {
	row, col, v, err := p.next()
	if err != nil {
		return sql.Null[T]{}, err
	}
	if v == nil {
		return sql.Null[T]{}, nil
	}
	out, err := conv(v)
	if err != nil {
		return sql.Null[T]{}, &CellError{Row: row, Col: col, Value: v, Target: "Nullable(" + target + ")", Err: err}
	}
	return sql.Null[T]{V: out, Valid: true}, nil
}

// --- Converters ---

func toInt[T constraints.Signed](v any) (T, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, ErrTypeMismatch
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrOverflow
		}
		// Fractions and exponents have no integer representation.
		return 0, ErrTypeMismatch
	}
	if int64(T(i)) != i {
		return 0, ErrOverflow
	}
	return T(i), nil
}

// toFloat also takes the strings Trino uses for decimal values and for
// NaN and the infinities of real and double columns.
func toFloat[T constraints.Float](v any) (T, error) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		switch {
		case x == "NaN", x == "Infinity", x == "-Infinity", decimalLiteral.MatchString(x):
			s = x
		default:
			return 0, ErrTypeMismatch
		}
	default:
		return 0, ErrTypeMismatch
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrTypeMismatch
	}
	return T(f), nil
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, ErrTypeMismatch
	}
	return b, nil
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", ErrTypeMismatch
	}
	return s, nil
}

// toChar accepts a single character, ignoring the space padding of char(n).
func toChar(v any) (rune, error) {
	s, ok := v.(string)
	if !ok {
		return 0, ErrTypeMismatch
	}
	if utf8.RuneCountInString(s) != 1 {
		s = strings.TrimRight(s, " ")
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: want a single character, got %d", ErrParseFailure, utf8.RuneCountInString(s))
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func toDate(v any) (civil.Date, error) {
	s, ok := v.(string)
	if !ok {
		return civil.Date{}, ErrTypeMismatch
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}
	return d, nil
}

func toTime(v any) (civil.Time, error) {
	s, ok := v.(string)
	if !ok {
		return civil.Time{}, ErrTypeMismatch
	}
	t, err := civil.ParseTime(s)
	if err != nil {
		return civil.Time{}, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}
	return t, nil
}

func toTimestamp(v any) (civil.DateTime, error) {
	s, ok := v.(string)
	if !ok {
		return civil.DateTime{}, ErrTypeMismatch
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return civil.DateTime{}, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}
	return civil.DateTimeOf(t), nil
}

// --- Produce methods ---

func (p *Parser) ProduceInt8() (int8, error)   { return produce(p, "Int8", toInt[int8]) }
func (p *Parser) ProduceInt16() (int16, error) { return produce(p, "Int16", toInt[int16]) }
func (p *Parser) ProduceInt32() (int32, error) { return produce(p, "Int32", toInt[int32]) }
func (p *Parser) ProduceInt64() (int64, error) { return produce(p, "Int64", toInt[int64]) }

func (p *Parser) ProduceFloat32() (float32, error) { return produce(p, "Float32", toFloat[float32]) }
func (p *Parser) ProduceFloat64() (float64, error) { return produce(p, "Float64", toFloat[float64]) }

func (p *Parser) ProduceBool() (bool, error)     { return produce(p, "Bool", toBool) }
func (p *Parser) ProduceString() (string, error) { return produce(p, "String", toString) }
func (p *Parser) ProduceChar() (rune, error)     { return produce(p, "Char", toChar) }

func (p *Parser) ProduceDate() (civil.Date, error) { return produce(p, "Date", toDate) }
func (p *Parser) ProduceTime() (civil.Time, error) { return produce(p, "Time", toTime) }

func (p *Parser) ProduceTimestamp() (civil.DateTime, error) {
	return produce(p, "Timestamp", toTimestamp)
}

// The ProduceNull variants return an invalid sql.Null for JSON null and
// otherwise behave like their non-null counterparts.

func (p *Parser) ProduceNullInt8() (sql.Null[int8], error) {
	return produceNull(p, "Int8", toInt[int8])
}

func (p *Parser) ProduceNullInt16() (sql.Null[int16], error) {
	return produceNull(p, "Int16", toInt[int16])
}

func (p *Parser) ProduceNullInt32() (sql.Null[int32], error) {
	return produceNull(p, "Int32", toInt[int32])
}

func (p *Parser) ProduceNullInt64() (sql.Null[int64], error) {
	return produceNull(p, "Int64", toInt[int64])
}

func (p *Parser) ProduceNullFloat32() (sql.Null[float32], error) {
	return produceNull(p, "Float32", toFloat[float32])
}

func (p *Parser) ProduceNullFloat64() (sql.Null[float64], error) {
	return produceNull(p, "Float64", toFloat[float64])
}

func (p *Parser) ProduceNullBool() (sql.Null[bool], error) {
	return produceNull(p, "Bool", toBool)
}

func (p *Parser) ProduceNullString() (sql.Null[string], error) {
	return produceNull(p, "String", toString)
}

func (p *Parser) ProduceNullChar() (sql.Null[rune], error) {
	return produceNull(p, "Char", toChar)
}

func (p *Parser) ProduceNullDate() (sql.Null[civil.Date], error) {
	return produceNull(p, "Date", toDate)
}

func (p *Parser) ProduceNullTime() (sql.Null[civil.Time], error) {
	return produceNull(p, "Time", toTime)
}

func (p *Parser) ProduceNullTimestamp() (sql.Null[civil.DateTime], error) {
	return produceNull(p, "Timestamp", toTimestamp)
}
