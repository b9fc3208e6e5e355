package trino

import (
	"encoding/json"
	"math"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majkshkurti/connector-x/trinoclient"
)

func num(s string) json.Number { return json.Number(s) }

func singleCell(v any) *Parser {
	return newParser([]trinoclient.QueryRow{{v}}, 1)
}

func requireCellError(t *testing.T, err error, sentinel error, row, col int) {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var ce *CellError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, row, ce.Row)
	assert.Equal(t, col, ce.Col)
}

func TestParser_CursorAdvance(t *testing.T) {
	rows := []trinoclient.QueryRow{
		{num("1"), num("2"), num("3")},
		{num("4"), num("5"), num("6")},
	}
	p := newParser(rows, 3)

	n, last := p.FetchNext()
	assert.Equal(t, 2, n)
	assert.True(t, last)

	for k := 0; k < 6; k++ {
		row, col := p.Position()
		assert.Equal(t, k/3, row)
		assert.Equal(t, k%3, col)

		v, err := p.ProduceInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(k+1), v)
	}

	_, err := p.ProduceInt64()
	assert.ErrorIs(t, err, ErrCursorExhausted)
	_, err = p.ProduceNullString()
	assert.ErrorIs(t, err, ErrCursorExhausted)
}

func TestParser_FetchNextMidRowPanics(t *testing.T) {
	p := newParser([]trinoclient.QueryRow{{num("1"), num("2")}}, 2)
	_, err := p.ProduceInt64()
	require.NoError(t, err)
	assert.Panics(t, func() { p.FetchNext() })

	_, err = p.ProduceInt64()
	require.NoError(t, err)
	assert.NotPanics(t, func() { p.FetchNext() })
}

func TestParser_EmptyResult(t *testing.T) {
	p := newParser(nil, 2)
	n, last := p.FetchNext()
	assert.Equal(t, 0, n)
	assert.True(t, last)

	_, err := p.ProduceString()
	assert.ErrorIs(t, err, ErrCursorExhausted)
}

func TestParser_ZeroColumns(t *testing.T) {
	p := newParser([]trinoclient.QueryRow{{}}, 0)
	_, err := p.ProduceBool()
	assert.ErrorIs(t, err, ErrCursorExhausted)
}

func TestProduce_Integers(t *testing.T) {
	t.Run("int8 boundary", func(t *testing.T) {
		v, err := singleCell(num("127")).ProduceInt8()
		require.NoError(t, err)
		assert.Equal(t, int8(127), v)

		v, err = singleCell(num("-128")).ProduceInt8()
		require.NoError(t, err)
		assert.Equal(t, int8(-128), v)

		_, err = singleCell(num("128")).ProduceInt8()
		requireCellError(t, err, ErrOverflow, 0, 0)

		_, err = singleCell(num("-129")).ProduceInt8()
		requireCellError(t, err, ErrOverflow, 0, 0)
	})

	t.Run("int16 and int32 boundaries", func(t *testing.T) {
		v16, err := singleCell(num("32767")).ProduceInt16()
		require.NoError(t, err)
		assert.Equal(t, int16(math.MaxInt16), v16)
		_, err = singleCell(num("32768")).ProduceInt16()
		assert.ErrorIs(t, err, ErrOverflow)

		v32, err := singleCell(num("-2147483648")).ProduceInt32()
		require.NoError(t, err)
		assert.Equal(t, int32(math.MinInt32), v32)
		_, err = singleCell(num("2147483648")).ProduceInt32()
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("int64 full range", func(t *testing.T) {
		v, err := singleCell(num("9223372036854775807")).ProduceInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), v)

		_, err = singleCell(num("9223372036854775808")).ProduceInt64()
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("fraction is a type mismatch", func(t *testing.T) {
		_, err := singleCell(num("1.5")).ProduceInt64()
		requireCellError(t, err, ErrTypeMismatch, 0, 0)

		_, err = singleCell(num("1e3")).ProduceInt32()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("non-number is a type mismatch", func(t *testing.T) {
		for _, v := range []any{"1", true, nil, []any{num("1")}} {
			_, err := singleCell(v).ProduceInt16()
			assert.ErrorIs(t, err, ErrTypeMismatch, "value %v", v)
		}
	})
}

func TestProduce_Floats(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"fraction", num("2.5"), 2.5},
		{"integer-valued number", num("1"), 1},
		{"exponent", num("1e3"), 1000},
		{"decimal string", "12345.67", 12345.67},
		{"negative decimal string", "-0.50", -0.5},
		{"integral decimal string", "42", 42},
		{"negative", num("-0.25"), -0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := singleCell(tt.in).ProduceFloat64()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)

			v32, err := singleCell(tt.in).ProduceFloat32()
			require.NoError(t, err)
			assert.Equal(t, float32(tt.want), v32)
		})
	}

	t.Run("special values", func(t *testing.T) {
		v, err := singleCell("NaN").ProduceFloat64()
		require.NoError(t, err)
		assert.True(t, math.IsNaN(v))

		v, err = singleCell("-Infinity").ProduceFloat64()
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, -1))
	})

	t.Run("mismatch", func(t *testing.T) {
		for _, v := range []any{"abc", true, map[string]any{}, "0x1p-2", "inf", "+Inf", "nan", "1e3", " 1.5", ""} {
			_, err := singleCell(v).ProduceFloat64()
			assert.ErrorIs(t, err, ErrTypeMismatch, "value %v", v)
		}
	})
}

func TestProduce_BoolAndString(t *testing.T) {
	b, err := singleCell(true).ProduceBool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = singleCell(num("1")).ProduceBool()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	s, err := singleCell("héllo").ProduceString()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	_, err = singleCell(num("1")).ProduceString()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestProduce_Char(t *testing.T) {
	tests := []struct {
		in      any
		want    rune
		wantErr error
	}{
		{in: "a", want: 'a'},
		{in: "é", want: 'é'},
		{in: " ", want: ' '},
		{in: "x   ", want: 'x'},
		{in: "ab", wantErr: ErrParseFailure},
		{in: "", wantErr: ErrParseFailure},
		{in: num("1"), wantErr: ErrTypeMismatch},
	}
	for _, tt := range tests {
		r, err := singleCell(tt.in).ProduceChar()
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "input %q", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, r)
	}
}

func TestProduce_Temporal(t *testing.T) {
	t.Run("date", func(t *testing.T) {
		d, err := singleCell("2024-02-29").ProduceDate()
		require.NoError(t, err)
		assert.Equal(t, civil.Date{Year: 2024, Month: 2, Day: 29}, d)

		_, err = singleCell("2023-02-29").ProduceDate()
		assert.ErrorIs(t, err, ErrParseFailure)
		_, err = singleCell(num("20240101")).ProduceDate()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("time", func(t *testing.T) {
		tm, err := singleCell("23:59:59.123456").ProduceTime()
		require.NoError(t, err)
		assert.Equal(t, civil.Time{Hour: 23, Minute: 59, Second: 59, Nanosecond: 123456000}, tm)

		tm, err = singleCell("08:00:00").ProduceTime()
		require.NoError(t, err)
		assert.Equal(t, civil.Time{Hour: 8}, tm)

		_, err = singleCell("25:00:00").ProduceTime()
		requireCellError(t, err, ErrParseFailure, 0, 0)
	})

	t.Run("timestamp", func(t *testing.T) {
		ts, err := singleCell("2024-01-02 03:04:05.678").ProduceTimestamp()
		require.NoError(t, err)
		want := civil.DateTime{
			Date: civil.Date{Year: 2024, Month: 1, Day: 2},
			Time: civil.Time{Hour: 3, Minute: 4, Second: 5, Nanosecond: 678000000},
		}
		assert.Equal(t, want, ts)

		ts, err = singleCell("2024-01-02 03:04:05.123456789").ProduceTimestamp()
		require.NoError(t, err)
		assert.Equal(t, 123456789, ts.Time.Nanosecond)

		_, err = singleCell("2024-01-02T03:04:05").ProduceTimestamp()
		assert.ErrorIs(t, err, ErrParseFailure)
		_, err = singleCell("2024-01-02 03:04:05.000 UTC").ProduceTimestamp()
		assert.ErrorIs(t, err, ErrParseFailure)
	})
}

// Nullable producers differ from the plain ones only on JSON null.
func TestProduce_NullableMatchesPlain(t *testing.T) {
	cells := []any{nil, num("42"), num("300"), num("1.5"), "7", true, "2024-01-02", "12:00:00", "2024-01-02 12:00:00", "z"}

	check := func(t *testing.T, name string, plain func(*Parser) (any, error), null func(*Parser) (any, bool, error)) {
		t.Run(name, func(t *testing.T) {
			for _, c := range cells {
				nv, valid, nerr := null(singleCell(c))
				if c == nil {
					require.NoError(t, nerr)
					assert.False(t, valid)
					continue
				}
				pv, perr := plain(singleCell(c))
				if perr != nil {
					require.Error(t, nerr, "cell %v", c)
					var pe, ne *CellError
					require.ErrorAs(t, perr, &pe)
					require.ErrorAs(t, nerr, &ne)
					assert.Equal(t, pe.Err, ne.Err, "cell %v", c)
					continue
				}
				require.NoError(t, nerr, "cell %v", c)
				assert.True(t, valid)
				assert.Equal(t, pv, nv)
			}
		})
	}

	check(t, "int8",
		func(p *Parser) (any, error) { return p.ProduceInt8() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullInt8(); return v.V, v.Valid, err })
	check(t, "int16",
		func(p *Parser) (any, error) { return p.ProduceInt16() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullInt16(); return v.V, v.Valid, err })
	check(t, "int32",
		func(p *Parser) (any, error) { return p.ProduceInt32() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullInt32(); return v.V, v.Valid, err })
	check(t, "int64",
		func(p *Parser) (any, error) { return p.ProduceInt64() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullInt64(); return v.V, v.Valid, err })
	check(t, "float32",
		func(p *Parser) (any, error) { return p.ProduceFloat32() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullFloat32(); return v.V, v.Valid, err })
	check(t, "float64",
		func(p *Parser) (any, error) { return p.ProduceFloat64() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullFloat64(); return v.V, v.Valid, err })
	check(t, "bool",
		func(p *Parser) (any, error) { return p.ProduceBool() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullBool(); return v.V, v.Valid, err })
	check(t, "string",
		func(p *Parser) (any, error) { return p.ProduceString() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullString(); return v.V, v.Valid, err })
	check(t, "char",
		func(p *Parser) (any, error) { return p.ProduceChar() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullChar(); return v.V, v.Valid, err })
	check(t, "date",
		func(p *Parser) (any, error) { return p.ProduceDate() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullDate(); return v.V, v.Valid, err })
	check(t, "time",
		func(p *Parser) (any, error) { return p.ProduceTime() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullTime(); return v.V, v.Valid, err })
	check(t, "timestamp",
		func(p *Parser) (any, error) { return p.ProduceTimestamp() },
		func(p *Parser) (any, bool, error) { v, err := p.ProduceNullTimestamp(); return v.V, v.Valid, err })
}

func TestCellError_Message(t *testing.T) {
	_, err := singleCell(num("200")).ProduceInt8()
	require.Error(t, err)
	assert.Equal(t, "trino: cannot produce Int8 at (0, 0) from 200: value out of range", err.Error())

	_, err = newParser([]trinoclient.QueryRow{{num("1"), "x"}}, 2).ProduceNullBool()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nullable(Bool) at (0, 0) from 1")

	p := newParser([]trinoclient.QueryRow{{num("1"), "25:61:00"}}, 2)
	_, _ = p.ProduceInt64()
	_, err = p.ProduceTime()
	requireCellError(t, err, ErrParseFailure, 0, 1)
	assert.Contains(t, err.Error(), `"25:61:00"`)
}
