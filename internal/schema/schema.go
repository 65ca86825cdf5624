package schema

// FieldType describes one of the unsigned integer column types a table
// field may take. The set is closed: every column in every table is one
// of these, so validation only ever needs a byte width and a maximum.
type FieldType struct {
	// SQL is the column type keyword as it appears in DDL.
	SQL string

	// ByteWidth is the storage width of the column in bytes.
	ByteWidth int

	// MaxValue is the largest value the column can hold. Columns are
	// unsigned, so the minimum is always 0.
	MaxValue uint64
}

// The closed set of field types.
// See https://dev.mysql.com/doc/refman/8.0/en/integer-types.html
var (
	TinyInt   = FieldType{SQL: "TINYINT", ByteWidth: 1, MaxValue: 255}
	SmallInt  = FieldType{SQL: "SMALLINT", ByteWidth: 2, MaxValue: 65535}
	MediumInt = FieldType{SQL: "MEDIUMINT", ByteWidth: 3, MaxValue: 16777215}
	Int       = FieldType{SQL: "INT", ByteWidth: 4, MaxValue: 4294967295}
	BigInt    = FieldType{SQL: "BIGINT", ByteWidth: 8, MaxValue: 18446744073709551615}
)

// Field is a named column with its type.
type Field struct {
	Name string
	Type FieldType
}

// Table describes one logical table: its name, primary key, ordered
// fields, and which fields carry secondary indexes. Tables are immutable
// after construction; one instance per table lives in the registry.
type Table struct {
	Name       string
	PrimaryKey string
	Fields     []Field
	Indexed    []string
}

// FieldType returns the type of the named field and whether the field
// exists in the table's schema.
func (t *Table) FieldType(name string) (FieldType, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return FieldType{}, false
}

// HasField reports whether name is a schema field of the table.
func (t *Table) HasField(name string) bool {
	_, ok := t.FieldType(name)
	return ok
}
