// Package loader declares table schemas and bulk-loads CSV files into them.
package loader

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// columnTypeRe limits column types to what plain DDL needs, e.g. INT,
// VARCHAR(64), NUMERIC(10, 2), TIMESTAMP WITH TIME ZONE.
var columnTypeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\([0-9, ]+\))?(\[\])?$`)

// Column is a column name and its SQL type
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ForeignKey references a column of another table. The referenced table must
// be declared earlier in the catalog.
type ForeignKey struct {
	Column     string `yaml:"column"`
	RefTable   string `yaml:"ref_table"`
	RefColumn  string `yaml:"ref_column"`
	Constraint string `yaml:"constraint,omitempty"` // defaults to fk_<table>_<column>
}

// Table declares a table and the CSV file it is loaded from
type Table struct {
	Name        string       `yaml:"name"`
	Source      string       `yaml:"source"`
	PrimaryKey  string       `yaml:"primary_key"`
	Columns     []Column     `yaml:"columns"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
}

// Catalog is an ordered set of tables
type Catalog struct {
	Schema string  `yaml:"schema,omitempty"` // defaults to public
	Tables []Table `yaml:"tables"`
}

// LoadCatalog reads and validates a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if c.Schema == "" {
		c.Schema = "public"
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks every table and that foreign keys point backwards
func (c *Catalog) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("catalog declares no tables")
	}

	declared := make(map[string]*Table, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := declared[t.Name]; dup {
			return fmt.Errorf("table %s declared twice", t.Name)
		}

		for _, fk := range t.ForeignKeys {
			ref, ok := declared[fk.RefTable]
			if !ok && fk.RefTable != t.Name {
				return fmt.Errorf("table %s: foreign key %s references undeclared table %s", t.Name, fk.Column, fk.RefTable)
			}
			if ref == nil {
				ref = t
			}
			if !ref.HasColumn(fk.RefColumn) {
				return fmt.Errorf("table %s: foreign key %s references unknown column %s.%s", t.Name, fk.Column, fk.RefTable, fk.RefColumn)
			}
		}

		declared[t.Name] = t
	}

	return nil
}

// Lookup returns the table called name
func (c *Catalog) Lookup(name string) (*Table, bool) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// Validate checks the table on its own
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if t.Source == "" {
		return fmt.Errorf("table %s: source is required", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if col.Name == "" || col.Type == "" {
			return fmt.Errorf("table %s: columns need a name and a type", t.Name)
		}
		if !columnTypeRe.MatchString(col.Type) {
			return fmt.Errorf("table %s: column %s has unsupported type %q", t.Name, col.Name, col.Type)
		}
		if seen[col.Name] {
			return fmt.Errorf("table %s: column %s declared twice", t.Name, col.Name)
		}
		seen[col.Name] = true
	}

	if t.PrimaryKey != "" && !seen[t.PrimaryKey] {
		return fmt.Errorf("table %s: primary key %s is not a column", t.Name, t.PrimaryKey)
	}

	for _, fk := range t.ForeignKeys {
		if !seen[fk.Column] {
			return fmt.Errorf("table %s: foreign key column %s is not a column", t.Name, fk.Column)
		}
		if fk.RefTable == "" || fk.RefColumn == "" {
			return fmt.Errorf("table %s: foreign key %s needs ref_table and ref_column", t.Name, fk.Column)
		}
	}

	return nil
}

// HasColumn reports whether the table declares a column called name
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}
