package table

import (
	"database/sql"
	"strings"
)

// Type categories reported for columns.
const (
	TypeInteger   = "INTEGER"
	TypeReal      = "REAL"
	TypeDecimal   = "DECIMAL"
	TypeText      = "TEXT"
	TypeBoolean   = "BOOLEAN"
	TypeDate      = "DATE"
	TypeTime      = "TIME"
	TypeTimestamp = "TIMESTAMP"
	TypeBinary    = "BINARY"
	TypeJSON      = "JSON"
	TypeGeometry  = "GEOMETRY"
)

// Column describes one column of a table view.
type Column struct {
	Name         string
	DatabaseType string // type name reported by the driver
	Type         string // normalized category
	Nullable     bool
	Geometry     bool
	Length       int64
	Precision    int64
	Scale        int64
}

// typeMapping maps driver type names to normalized categories.
var typeMapping = map[string]string{
	"BIGINT":             TypeInteger,
	"INTEGER":            TypeInteger,
	"INT":                TypeInteger,
	"INT4":               TypeInteger,
	"INT8":               TypeInteger,
	"SMALLINT":           TypeInteger,
	"TINYINT":            TypeInteger,
	"HUGEINT":            TypeInteger,
	"DOUBLE":             TypeReal,
	"FLOAT":              TypeReal,
	"FLOAT4":             TypeReal,
	"FLOAT8":             TypeReal,
	"REAL":               TypeReal,
	"DECIMAL":            TypeDecimal,
	"NUMERIC":            TypeDecimal,
	"NUMBER":             TypeDecimal,
	"FIXED":              TypeDecimal,
	"VARCHAR":            TypeText,
	"TEXT":               TypeText,
	"STRING":             TypeText,
	"CHAR":               TypeText,
	"BPCHAR":             TypeText,
	"UUID":               TypeText,
	"INTERVAL":           TypeText,
	"BOOLEAN":            TypeBoolean,
	"BOOL":               TypeBoolean,
	"DATE":               TypeDate,
	"TIME":               TypeTime,
	"TIMESTAMP":          TypeTimestamp,
	"TIMESTAMP_NS":       TypeTimestamp,
	"TIMESTAMP_MS":       TypeTimestamp,
	"TIMESTAMP_S":        TypeTimestamp,
	"TIMESTAMPTZ":        TypeTimestamp,
	"TIMESTAMP_NTZ":      TypeTimestamp,
	"TIMESTAMP_TZ":       TypeTimestamp,
	"DATETIME":           TypeTimestamp,
	"BLOB":               TypeBinary,
	"BYTEA":              TypeBinary,
	"BINARY":             TypeBinary,
	"VARBINARY":          TypeBinary,
	"JSON":               TypeJSON,
	"JSONB":              TypeJSON,
	"VARIANT":            TypeJSON,
	"GEOMETRY":           TypeGeometry,
	"GEOGRAPHY":          TypeGeometry,
	"POINT":              TypeGeometry,
	"LINESTRING":         TypeGeometry,
	"POLYGON":            TypeGeometry,
	"MULTIPOINT":         TypeGeometry,
	"MULTILINESTRING":    TypeGeometry,
	"MULTIPOLYGON":       TypeGeometry,
	"GEOMETRYCOLLECTION": TypeGeometry,
	"POINT_2D":           TypeGeometry,
	"LINESTRING_2D":      TypeGeometry,
	"POLYGON_2D":         TypeGeometry,
	"BOX_2D":             TypeGeometry,
	"WKB_BLOB":           TypeGeometry,
}

// MapType converts a driver type name to its normalized category.
// Parameterized names such as DECIMAL(18,3) or GEOMETRY(POINT, 4326) map by
// their base name. Unknown names map to TEXT.
func MapType(dbType string) string {
	base := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if t, ok := typeMapping[base]; ok {
		return t
	}
	return TypeText
}

// inferColumns builds column metadata from an open cursor.
func inferColumns(rows *sql.Rows) ([]Column, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: TypeText, Nullable: true}
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return cols, nil
	}
	for i := range cols {
		if i >= len(columnTypes) {
			break
		}
		ct := columnTypes[i]
		cols[i].DatabaseType = ct.DatabaseTypeName()
		cols[i].Type = MapType(cols[i].DatabaseType)
		cols[i].Geometry = cols[i].Type == TypeGeometry

		if length, ok := ct.Length(); ok {
			cols[i].Length = length
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			cols[i].Precision = precision
			cols[i].Scale = scale
		}
		if nullable, ok := ct.Nullable(); ok {
			cols[i].Nullable = nullable
		}
	}
	return cols, nil
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
