package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/config"
	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/db"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbURL      string
	tableName  string
	shape      string
	limit      int
)

var rootCmd = &cobra.Command{
	Use:           "csvsql",
	Short:         "Import CSV files as SQL tables and query them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Create a table from a CSV, TSV or XLSX file, replacing any table of the same name",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run an SQL statement and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE:  runTables,
}

var dropCmd = &cobra.Command{
	Use:   "drop <table>",
	Short: "Drop a table if it exists",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrop,
}

var previewCmd = &cobra.Command{
	Use:   "preview <table>",
	Short: "Print the first rows of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var schemaCmd = &cobra.Command{
	Use:   "schema <table>",
	Short: "Print the columns of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database URL (overrides config and DATABASE_URL)")

	importCmd.Flags().StringVar(&tableName, "name", "", "table name (defaults to the file name; required for stdin)")
	queryCmd.Flags().StringVar(&shape, "shape", "objects", "row shape: objects or array")
	previewCmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (defaults to import.preview_limit)")
	previewCmd.Flags().StringVar(&shape, "shape", "objects", "row shape: objects or array")

	rootCmd.AddCommand(importCmd, queryCmd, tablesCmd, dropCmd, previewCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if dbURL != "" {
		cfg.Server.DatabaseURL = dbURL
	}
	return cfg, nil
}

func openDB() (*db.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.New(cfg.Server.DatabaseURL, cfg.DBOptions())
	if err != nil {
		return nil, nil, err
	}
	// progress is reported through log.Printf
	database.Logger().SetOutput(io.Discard)

	return database, cfg, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	start := time.Now()

	path := args[0]
	var in io.Reader
	if path == "-" {
		if tableName == "" {
			return fmt.Errorf("--name is required when reading from stdin")
		}
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	// --name may carry an extension too: "report.csv" loads into "report"
	name := tableName
	if name == "" {
		name = path
	}

	log.Printf("reading %s...", path)
	raw, err := csvfile.Open(ctx, path, in, cfg.DBOptions().Parse)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	log.Printf("found %d columns, %d rows", len(raw.Headers), len(raw.Rows))

	log.Printf("loading into %s (%s)...", ident.TableNameFromFile(name), database.Engine().Dialect().Name())
	result, err := database.ImportCSV(ctx, db.ImportParams{
		TableName: ident.TrimFileName(name),
		Headers:   raw.Headers,
		Rows:      raw.Rows,
	})
	if err != nil {
		return err
	}

	for _, col := range result.Metadata.Columns {
		key := ""
		if col.PrimaryKey {
			key = " PRIMARY KEY"
		}
		log.Printf("  %s → %s %s%s", col.OriginalName, col.SanitizedName, col.PGType, key)
	}
	log.Printf("imported %d rows into %s in %s", result.Metadata.RowCount,
		result.Metadata.SanitizedTableName, time.Since(start).Round(time.Millisecond))

	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := database.RunQuery(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	rows, err := result.Shape(shape)
	if err != nil {
		return err
	}
	return printJSON(rows)
}

func runTables(cmd *cobra.Command, _ []string) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	tables, err := database.ListTables(cmd.Context())
	if err != nil {
		return err
	}

	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func runDrop(cmd *cobra.Command, args []string) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := database.DropTable(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if result.Dropped {
		log.Printf("dropped %s", result.SanitizedTableName)
	} else {
		log.Printf("no table %s", result.SanitizedTableName)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	preview, err := database.FetchPreview(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}

	rows, err := preview.Shape(shape)
	if err != nil {
		return err
	}
	return printJSON(rows)
}

func runSchema(cmd *cobra.Command, args []string) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	columns, err := database.GetSchema(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(columns)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
