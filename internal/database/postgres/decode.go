package postgres

import (
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Unknown is the text of any cell whose type is unsupported or whose value
// could not be decoded.
const Unknown = "?"

var errUnsupportedType = errors.New("unsupported column type")

// Row is one low-level result row: the field descriptions reported by the
// server and the raw wire value of each column.
type Row struct {
	Fields []pgconn.FieldDescription
	Values [][]byte
}

// Decoder turns raw wire values into their canonical text rendering.
type Decoder struct {
	types  *pgtype.Map
	logger *slog.Logger
}

// NewDecoder creates a decoder using the given type map.
// A nil map gets a fresh pgtype.Map, a nil logger a discard logger.
func NewDecoder(types *pgtype.Map, logger *slog.Logger) *Decoder {
	if types == nil {
		types = pgtype.NewMap()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{types: types, logger: logger}
}

// DecodeCell returns the text of column i of row. It never fails: anything
// that cannot be decoded comes back as Unknown.
func (d *Decoder) DecodeCell(row Row, i int) string {
	if i < 0 || i >= len(row.Fields) || i >= len(row.Values) {
		return Unknown
	}
	field := row.Fields[i]
	s, err := d.decode(field, row.Values[i])
	if err != nil {
		d.logger.Debug("could not decode column",
			slog.String("column", field.Name),
			slog.Uint64("oid", uint64(field.DataTypeOID)),
			slog.Any("error", err))
		return Unknown
	}
	return s
}

// DecodeRow decodes every column of row.
func (d *Decoder) DecodeRow(row Row) []string {
	out := make([]string, len(row.Fields))
	for i := range row.Fields {
		out[i] = d.DecodeCell(row, i)
	}
	return out
}

func (d *Decoder) decode(field pgconn.FieldDescription, src []byte) (string, error) {
	switch field.DataTypeOID {
	case pgtype.BoolOID:
		return scanAs(d.types, field, src, strconv.FormatBool)
	case pgtype.Int2OID:
		return scanAs(d.types, field, src, func(v int16) string { return strconv.FormatInt(int64(v), 10) })
	case pgtype.Int4OID:
		return scanAs(d.types, field, src, func(v int32) string { return strconv.FormatInt(int64(v), 10) })
	case pgtype.Int8OID:
		return scanAs(d.types, field, src, func(v int64) string { return strconv.FormatInt(v, 10) })
	case pgtype.Float4OID:
		return scanAs(d.types, field, src, func(v float32) string { return formatFloat(float64(v), 32) })
	case pgtype.Float8OID:
		return scanAs(d.types, field, src, func(v float64) string { return formatFloat(v, 64) })
	case pgtype.VarcharOID, pgtype.TextOID, pgtype.BPCharOID, pgtype.NameOID:
		return scanAs(d.types, field, src, func(v string) string { return v })
	default:
		return "", errUnsupportedType
	}
}

// formatFloat renders v the way PostgreSQL prints it, without an exponent.
func formatFloat(v float64, bitSize int) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, bitSize)
}

func scanAs[T any](types *pgtype.Map, field pgconn.FieldDescription, src []byte, render func(T) string) (string, error) {
	var v T
	if err := types.Scan(field.DataTypeOID, field.Format, src, &v); err != nil {
		return "", err
	}
	return render(v), nil
}
