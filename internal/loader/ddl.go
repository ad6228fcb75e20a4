package loader

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

func qualified(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ConstraintName returns the explicit constraint name or fk_<table>_<column>
func (fk ForeignKey) ConstraintName(table string) string {
	if fk.Constraint != "" {
		return fk.Constraint
	}
	return "fk_" + strings.ToLower(table) + "_" + strings.ToLower(fk.Column)
}

// DropTableSQL drops the table and any constraints referencing it
func DropTableSQL(schema string, t *Table) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", qualified(schema, t.Name))
}

// CreateTableSQL renders CREATE TABLE with primary and foreign keys
func CreateTableSQL(schema string, t *Table) string {
	defs := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))

	for _, col := range t.Columns {
		defs = append(defs, ident(col.Name)+" "+col.Type)
	}

	if t.PrimaryKey != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", ident(t.PrimaryKey)))
	}

	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE SET NULL",
			ident(fk.ConstraintName(t.Name)),
			ident(fk.Column),
			qualified(schema, fk.RefTable),
			ident(fk.RefColumn),
		))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);", qualified(schema, t.Name), strings.Join(defs, ",\n\t"))
}

// CopySQL renders COPY ... FROM STDIN for a CSV stream with the declared columns
func CopySQL(schema string, t *Table, delimiter rune) string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = ident(col.Name)
	}

	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, DELIMITER %s)",
		qualified(schema, t.Name),
		strings.Join(cols, ", "),
		quoteLiteral(string(delimiter)),
	)
}
