package models

// ColumnMetadata describes one declared column of an imported table.
type ColumnMetadata struct {
	OriginalName  string `json:"original_name"`
	SanitizedName string `json:"sanitized_name"`
	PGType        string `json:"pg_type"`
	Nullable      bool   `json:"nullable"`
	PrimaryKey    bool   `json:"primary_key,omitempty"`
	AutoIncrement bool   `json:"auto_increment,omitempty"`

	// Index is the column's position in the CSV header, -1 for a synthetic key.
	Index int `json:"-"`
}

// TableMetadata is returned for every successful import.
type TableMetadata struct {
	TableName          string           `json:"table_name"`
	SanitizedTableName string           `json:"sanitized_table_name"`
	Columns            []ColumnMetadata `json:"columns"`
	RowCount           int              `json:"row_count"`
}

// ColumnInfo is one row of a table's introspected schema.
type ColumnInfo struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	MaxLength  *int64  `json:"max_length"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default"`
	PrimaryKey bool    `json:"primary_key"`
}

type Field struct {
	Name string `json:"name"`
}

type ErrorResponse struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

type ImportResponse struct {
	OK       bool             `json:"ok"`
	ID       string           `json:"id"`
	Metadata TableMetadata    `json:"metadata"`
	Query    string           `json:"query"`
	Tables   []string         `json:"tables"`
	Fields   []Field          `json:"fields"`
	Rows     []map[string]any `json:"rows"`
}

type TablesResponse struct {
	OK     bool     `json:"ok"`
	Tables []string `json:"tables"`
}

type DropResponse struct {
	OK                 bool     `json:"ok"`
	SanitizedTableName string   `json:"sanitized_table_name"`
	Dropped            bool     `json:"dropped"`
	Tables             []string `json:"tables"`
}

type SchemaResponse struct {
	OK      bool         `json:"ok"`
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

type QueryRequest struct {
	SQL string `json:"sql"`
}

type DataResponseBase struct {
	OK      bool     `json:"ok"`
	QueryMS float64  `json:"query_ms"`
	Query   string   `json:"query,omitempty"`
	Columns []string `json:"columns"`
	Fields  []Field  `json:"fields"`
	Total   int      `json:"total,omitempty"`
}

type DataResponse struct {
	DataResponseBase
	Rows []any `json:"rows"`
}
