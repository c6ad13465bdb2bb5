package handlers

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/db"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/models"
	"github.com/JayJamieson/csv-sql/pkg/schema"
	"github.com/JayJamieson/csv-sql/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

type Handler struct {
	DB *db.DB
}

func NewHandler(db *db.DB) *Handler {
	return &Handler{
		DB: db,
	}
}

// BrowseParams are the query parameters of GET /api/tables/{name}.
type BrowseParams struct {
	Size     int
	Offset   int
	Sort     string
	SortDesc string
	Shape    string
	RowID    string
	Total    string
}

func (p BrowseParams) paged() bool {
	return p.Offset > 0 || p.Sort != "" || p.SortDesc != "" || p.RowID == "show"
}

// ImportCSV reads a CSV upload from ?url=, a multipart "file" field or the raw
// body named by ?name=, and replaces the table named after the file.
func (h *Handler) ImportCSV(c echo.Context) error {
	ctx := c.Request().Context()

	var csvURL, name string
	for param, dest := range map[string]*string{"url": &csvURL, "name": &name} {
		if err := bindQuery(c, param, dest); err != nil {
			return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
		}
	}

	var reader io.Reader
	var filename, contentType string

	switch {
	case csvURL != "":
		body, downloaded, ct, err := utils.DownloadFile(ctx, csvURL)
		if err != nil {
			return createErrorResponse(c, http.StatusBadRequest, "URL fetch error", err.Error())
		}
		defer body.Close()

		reader, filename, contentType = body, downloaded, ct
	case strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return createErrorResponse(c, http.StatusBadRequest, "Missing parameter",
				"Multipart uploads must carry the CSV in a 'file' field")
		}

		file, err := fh.Open()
		if err != nil {
			return createErrorResponse(c, http.StatusBadRequest, "Upload error", err.Error())
		}
		defer file.Close()

		reader, filename, contentType = file, fh.Filename, fh.Header.Get(echo.HeaderContentType)
		if name != "" {
			filename = name
		}
	case name != "":
		reader = c.Request().Body
		filename = name
		contentType = c.Request().Header.Get(echo.HeaderContentType)
	default:
		return createErrorResponse(c, http.StatusBadRequest, "Missing parameter",
			"Either 'url' or 'name' parameter or a multipart 'file' must be provided")
	}

	if !csvfile.Accepts(filename, contentType) {
		return createErrorResponse(c, http.StatusUnsupportedMediaType, "Unsupported file",
			"Only .csv, .tsv and .xlsx files are accepted")
	}

	result, err := h.DB.ImportCSVFromReader(ctx, filename, reader)
	if err != nil {
		status := errorStatus(err)
		return createErrorResponse(c, status, errorTitle(status, "CSV import error"), err.Error())
	}

	return c.JSON(http.StatusOK, models.ImportResponse{
		OK:       true,
		ID:       result.ID,
		Metadata: result.Metadata,
		Query:    result.Query,
		Tables:   result.Tables,
		Fields:   result.Preview.Fields,
		Rows:     result.Preview.Rows(),
	})
}

func (h *Handler) ListTables(c echo.Context) error {
	tables, err := h.DB.ListTables(c.Request().Context())
	if err != nil {
		return createErrorResponse(c, http.StatusInternalServerError, "Query error", err.Error())
	}

	return c.JSON(http.StatusOK, models.TablesResponse{OK: true, Tables: tables})
}

// GetTable returns a preview of a table, or a page of it when any of the
// paging, sorting or rowid parameters are given.
func (h *Handler) GetTable(c echo.Context) error {
	ctx := c.Request().Context()

	name, err := tableName(c)
	if err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
	}

	var params BrowseParams
	for param, dest := range map[string]any{
		"_size":      &params.Size,
		"_offset":    &params.Offset,
		"_sort":      &params.Sort,
		"_sort_desc": &params.SortDesc,
		"_shape":     &params.Shape,
		"_rowid":     &params.RowID,
		"_total":     &params.Total,
	} {
		if err := bindQuery(c, param, dest); err != nil {
			return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
		}
	}

	exists, err := h.tableExists(c, name)
	if err != nil {
		return createErrorResponse(c, http.StatusInternalServerError, "Query error", err.Error())
	}
	if !exists {
		return createErrorResponse(c, http.StatusNotFound, "Resource not found",
			"table "+ident.Sanitize(name)+" does not exist")
	}

	var preview *db.Preview
	if params.paged() {
		sortCol := params.Sort
		if sortCol == "" {
			sortCol = params.SortDesc
		}
		preview, err = h.DB.Browse(ctx, name, db.BrowseOptions{
			Limit:    params.Size,
			Offset:   params.Offset,
			Sort:     sortCol,
			SortDesc: params.SortDesc != "",
			RowID:    params.RowID == "show",
		})
	} else {
		preview, err = h.DB.FetchPreview(ctx, name, params.Size)
	}
	if err != nil {
		return createErrorResponse(c, http.StatusInternalServerError, "Query error", err.Error())
	}

	return respondData(c, preview.Result, preview.Query, params.Shape, params.Total != "hide")
}

func (h *Handler) DropTable(c echo.Context) error {
	name, err := tableName(c)
	if err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
	}

	result, err := h.DB.DropTable(c.Request().Context(), name)
	if err != nil {
		return createErrorResponse(c, http.StatusInternalServerError, "Drop error", err.Error())
	}

	return c.JSON(http.StatusOK, models.DropResponse{
		OK:                 true,
		SanitizedTableName: result.SanitizedTableName,
		Dropped:            result.Dropped,
		Tables:             result.Tables,
	})
}

func (h *Handler) GetSchema(c echo.Context) error {
	name, err := tableName(c)
	if err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
	}

	columns, err := h.DB.GetSchema(c.Request().Context(), name)
	if err != nil {
		status := errorStatus(err)
		return createErrorResponse(c, status, errorTitle(status, "Schema error"), err.Error())
	}

	return c.JSON(http.StatusOK, models.SchemaResponse{
		OK:      true,
		Table:   ident.Sanitize(name),
		Columns: columns,
	})
}

// RunQuery executes the statement in the JSON body. Engine errors are reported
// as a bad request with the engine's message.
func (h *Handler) RunQuery(c echo.Context) error {
	var req models.QueryRequest
	if err := c.Bind(&req); err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
	}
	if strings.TrimSpace(req.SQL) == "" {
		return createErrorResponse(c, http.StatusBadRequest, "Missing parameter", "'sql' must be provided")
	}

	var shape string
	if err := bindQuery(c, "_shape", &shape); err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
	}

	result, err := h.DB.RunQuery(c.Request().Context(), req.SQL)
	if err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Query error", err.Error())
	}

	return respondData(c, result, req.SQL, shape, true)
}

func (h *Handler) tableExists(c echo.Context, name string) (bool, error) {
	tables, err := h.DB.ListTables(c.Request().Context())
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, ident.Sanitize(name)), nil
}

func respondData(c echo.Context, result *db.Result, query, shape string, showTotal bool) error {
	rows, err := result.Shape(shape)
	if err != nil {
		return createErrorResponse(c, http.StatusBadRequest, "Invalid parameter", err.Error())
	}

	resp := models.DataResponse{
		DataResponseBase: models.DataResponseBase{
			OK:      true,
			QueryMS: result.QueryMS,
			Query:   query,
			Columns: result.Columns(),
			Fields:  result.Fields,
		},
		Rows: rows,
	}
	if showTotal {
		resp.Total = len(rows)
	}

	return c.JSON(http.StatusOK, resp)
}

func tableName(c echo.Context) (string, error) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "name", c.Param("name"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	return name, err
}

func bindQuery(c echo.Context, param string, dest any) error {
	return runtime.BindQueryParameter("form", true, false, param, c.QueryParams(), dest)
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, csvfile.ErrTooManyRows),
		errors.Is(err, csvfile.ErrTooManyColumns),
		errors.Is(err, csvfile.ErrCellTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, csvfile.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, csvfile.ErrEmptyFile),
		errors.Is(err, csvfile.ErrNoHeaders),
		errors.Is(err, csvfile.ErrRowLengthMismatch),
		errors.Is(err, csvfile.ErrMalformed),
		errors.Is(err, schema.ErrEmptyDataset):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrTableNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorTitle(status int, fallback string) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid CSV"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusRequestEntityTooLarge:
		return "Upload too large"
	case http.StatusUnsupportedMediaType:
		return "Unsupported file"
	default:
		return fallback
	}
}

// ErrorResponse writes the JSON error envelope used by every endpoint.
func ErrorResponse(c echo.Context, status int, error string, message string) error {
	return createErrorResponse(c, status, error, message)
}

func createErrorResponse(c echo.Context, status int, error string, message string) error {
	resp := models.ErrorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     error,
		Message:   message,
	}
	return c.JSON(status, resp)
}
