package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Sink accepts statements and bulk copies. lifecycle.Session satisfies it.
type Sink interface {
	Exec(ctx context.Context, sql string) (int64, error)
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)
}

// Options controls how source files are read
type Options struct {
	DataDir    string
	SkipHeader int  // lines skipped at the top of every source file
	Delimiter  rune // defaults to ','
}

// Report is the outcome of loading one table
type Report struct {
	Table string
	Rows  int64
}

// Loader recreates catalog tables and fills them from CSV files
type Loader struct {
	sink    Sink
	catalog *Catalog
	opts    Options
	logger  *zap.Logger
}

// New creates a Loader. A nil logger discards output.
func New(sink Sink, catalog *Catalog, opts Options, logger *zap.Logger) *Loader {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		sink:    sink,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// DropTable drops t if it exists
func (l *Loader) DropTable(ctx context.Context, t *Table) error {
	sql := DropTableSQL(l.catalog.Schema, t)
	l.logger.Debug("executing", zap.String("sql", sql))
	if _, err := l.sink.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.Name, err)
	}
	return nil
}

// CreateTable drops and recreates t
func (l *Loader) CreateTable(ctx context.Context, t *Table) error {
	if err := l.DropTable(ctx, t); err != nil {
		return err
	}

	sql := CreateTableSQL(l.catalog.Schema, t)
	l.logger.Debug("executing", zap.String("sql", sql))
	if _, err := l.sink.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}

	l.logger.Info("table created", zap.String("table", t.Name))
	return nil
}

// LoadData copies the table's source file into it
func (l *Loader) LoadData(ctx context.Context, t *Table) (int64, error) {
	path := filepath.Join(l.opts.DataDir, t.Source)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open source for %s: %w", t.Name, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := skipLines(r, l.opts.SkipHeader); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rows, err := l.sink.CopyFrom(ctx, r, CopySQL(l.catalog.Schema, t, l.opts.Delimiter))
	if err != nil {
		return 0, fmt.Errorf("failed to copy %s into %s: %w", path, t.Name, err)
	}

	l.logger.Info("table loaded", zap.String("table", t.Name), zap.String("source", path), zap.Int64("rows", rows))
	return rows, nil
}

// LoadAll recreates and loads the named tables, or every table when names is
// empty. Tables are processed in catalog order.
func (l *Loader) LoadAll(ctx context.Context, names ...string) ([]Report, error) {
	tables, err := l.selectTables(names)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(tables))
	for _, t := range tables {
		if err := l.CreateTable(ctx, t); err != nil {
			return reports, err
		}
		rows, err := l.LoadData(ctx, t)
		if err != nil {
			return reports, err
		}
		reports = append(reports, Report{Table: t.Name, Rows: rows})
	}

	return reports, nil
}

func (l *Loader) selectTables(names []string) ([]*Table, error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := l.catalog.Lookup(name); !ok {
			return nil, fmt.Errorf("table %s is not in the catalog", name)
		}
		want[name] = true
	}

	var tables []*Table
	for i := range l.catalog.Tables {
		t := &l.catalog.Tables[i]
		if len(want) == 0 || want[t.Name] {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func skipLines(r *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}
