package arrowdest

import (
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/majkshkurti/connector-x/trino"
)

// ArrowType returns the Arrow type a column of t is written as. Temporal
// values carry no zone. Times use nanoseconds; timestamps use microseconds,
// which cover every year civil dates can hold.
func ArrowType(t trino.Type) (arrow.DataType, error) {
	switch t.Kind {
	case trino.Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case trino.Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case trino.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case trino.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case trino.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case trino.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case trino.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case trino.String:
		return arrow.BinaryTypes.String, nil
	case trino.Date:
		return arrow.FixedWidthTypes.Date32, nil
	case trino.Time:
		return arrow.FixedWidthTypes.Time64ns, nil
	case trino.Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	default:
		return nil, fmt.Errorf("arrowdest: no arrow type for %s", t)
	}
}

// columnWriter produces the parser's next cell and appends it to b.
type columnWriter func(p *trino.Parser, b array.Builder) error

type appender[V any] interface {
	array.Builder
	Append(V)
}

func plain[B appender[V], T, V any](produce func(*trino.Parser) (T, error), conv func(T) V) columnWriter {
	return func(p *trino.Parser, b array.Builder) error {
		v, err := produce(p)
		if err != nil {
			return err
		}
		b.(B).Append(conv(v))
		return nil
	}
}

func nullable[B appender[V], T, V any](produce func(*trino.Parser) (sql.Null[T], error), conv func(T) V) columnWriter {
	return func(p *trino.Parser, b array.Builder) error {
		v, err := produce(p)
		if err != nil {
			return err
		}
		if !v.Valid {
			b.AppendNull()
			return nil
		}
		b.(B).Append(conv(v.V))
		return nil
	}
}

func same[T any](v T) T { return v }

func date32(d civil.Date) arrow.Date32 {
	return arrow.Date32FromTime(d.In(time.UTC))
}

func time64(t civil.Time) arrow.Time64 {
	return arrow.Time64(time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Nanosecond))
}

// timestamp truncates to microseconds. Nanosecond epoch offsets overflow
// int64 outside 1678-2262.
func timestamp(dt civil.DateTime) arrow.Timestamp {
	return arrow.Timestamp(dt.In(time.UTC).UnixMicro())
}

// writerFor picks the Produce method for t once, so the row loop never
// inspects types.
func writerFor(t trino.Type) (columnWriter, error) {
	if t.Nullable {
		switch t.Kind {
		case trino.Int8:
			return nullable[*array.Int8Builder]((*trino.Parser).ProduceNullInt8, same[int8]), nil
		case trino.Int16:
			return nullable[*array.Int16Builder]((*trino.Parser).ProduceNullInt16, same[int16]), nil
		case trino.Int32:
			return nullable[*array.Int32Builder]((*trino.Parser).ProduceNullInt32, same[int32]), nil
		case trino.Int64:
			return nullable[*array.Int64Builder]((*trino.Parser).ProduceNullInt64, same[int64]), nil
		case trino.Float32:
			return nullable[*array.Float32Builder]((*trino.Parser).ProduceNullFloat32, same[float32]), nil
		case trino.Float64:
			return nullable[*array.Float64Builder]((*trino.Parser).ProduceNullFloat64, same[float64]), nil
		case trino.Bool:
			return nullable[*array.BooleanBuilder]((*trino.Parser).ProduceNullBool, same[bool]), nil
		case trino.String:
			return nullable[*array.StringBuilder]((*trino.Parser).ProduceNullString, same[string]), nil
		case trino.Date:
			return nullable[*array.Date32Builder]((*trino.Parser).ProduceNullDate, date32), nil
		case trino.Time:
			return nullable[*array.Time64Builder]((*trino.Parser).ProduceNullTime, time64), nil
		case trino.Timestamp:
			return nullable[*array.TimestampBuilder]((*trino.Parser).ProduceNullTimestamp, timestamp), nil
		}
	} else {
		switch t.Kind {
		case trino.Int8:
			return plain[*array.Int8Builder]((*trino.Parser).ProduceInt8, same[int8]), nil
		case trino.Int16:
			return plain[*array.Int16Builder]((*trino.Parser).ProduceInt16, same[int16]), nil
		case trino.Int32:
			return plain[*array.Int32Builder]((*trino.Parser).ProduceInt32, same[int32]), nil
		case trino.Int64:
			return plain[*array.Int64Builder]((*trino.Parser).ProduceInt64, same[int64]), nil
		case trino.Float32:
			return plain[*array.Float32Builder]((*trino.Parser).ProduceFloat32, same[float32]), nil
		case trino.Float64:
			return plain[*array.Float64Builder]((*trino.Parser).ProduceFloat64, same[float64]), nil
		case trino.Bool:
			return plain[*array.BooleanBuilder]((*trino.Parser).ProduceBool, same[bool]), nil
		case trino.String:
			return plain[*array.StringBuilder]((*trino.Parser).ProduceString, same[string]), nil
		case trino.Date:
			return plain[*array.Date32Builder]((*trino.Parser).ProduceDate, date32), nil
		case trino.Time:
			return plain[*array.Time64Builder]((*trino.Parser).ProduceTime, time64), nil
		case trino.Timestamp:
			return plain[*array.TimestampBuilder]((*trino.Parser).ProduceTimestamp, timestamp), nil
		}
	}
	return nil, fmt.Errorf("arrowdest: no writer for %s", t)
}
