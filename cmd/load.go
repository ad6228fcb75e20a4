package cmd

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/vietdv277/rdsctl/internal/loader"
	"github.com/vietdv277/rdsctl/internal/ui"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Recreate tables and bulk-load them from CSV files",
	Long: `Drop, create and fill the tables declared in a catalog file.

Every table is recreated from its declaration and its source CSV is streamed
in with COPY. Tables are processed in catalog order so foreign keys always
reference tables that already exist.

Examples:
  rdsctl load --schema tables.yaml --data ./data
  rdsctl load --schema tables.yaml --data ./data --table Users --table Trips
  rdsctl load --schema tables.yaml --data ./data --skip-header 0 --delimiter ';'`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

var (
	loadSchema     string
	loadDataDir    string
	loadTables     []string
	loadSkipHeader int
	loadDelimiter  string
	loadDatabase   string
)

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadSchema, "schema", "", "Table catalog file (YAML)")
	loadCmd.Flags().StringVar(&loadDataDir, "data", "", "Directory holding the CSV sources (default: catalog directory)")
	loadCmd.Flags().StringArrayVar(&loadTables, "table", nil, "Only load this table (repeatable)")
	loadCmd.Flags().IntVar(&loadSkipHeader, "skip-header", 1, "Lines to skip at the top of each CSV file")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", ",", "CSV field delimiter")
	loadCmd.Flags().StringVarP(&loadDatabase, "database", "d", "", "Target database (default from config)")
	_ = loadCmd.MarkFlagRequired("schema")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	delimiter, size := utf8.DecodeRuneInString(loadDelimiter)
	if size == 0 || size != len(loadDelimiter) {
		return fmt.Errorf("delimiter must be a single character")
	}
	if loadSkipHeader < 0 {
		return fmt.Errorf("--skip-header must not be negative")
	}

	catalog, err := loader.LoadCatalog(loadSchema)
	if err != nil {
		return err
	}

	dataDir := loadDataDir
	if dataDir == "" {
		dataDir = filepath.Dir(loadSchema)
	}

	cfg, err := loadSettings(true)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	database := cfg.Database
	if loadDatabase != "" {
		database = loadDatabase
	}

	client, err := newAWSClient(ctx, cfg)
	if err != nil {
		return err
	}

	controller, err := newSessionController(ctx, client, cfg, logger)
	if err != nil {
		return err
	}

	session := controller.Connect(ctx, database)
	if session == nil {
		return fmt.Errorf("could not connect to %s on %s", database, cfg.Instance)
	}
	defer session.Close(ctx)

	l := loader.New(session, catalog, loader.Options{
		DataDir:    dataDir,
		SkipHeader: loadSkipHeader,
		Delimiter:  delimiter,
	}, logger)

	reports, err := l.LoadAll(ctx, loadTables...)
	for _, r := range reports {
		fmt.Printf("  %s %s  %s\n",
			ui.AvailableStyle.Render("✓"),
			ui.NameStyle.Render(r.Table),
			ui.MutedStyle.Render(fmt.Sprintf("%d rows", r.Rows)))
	}
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d tables into %s\n", len(reports), database)
	return nil
}
