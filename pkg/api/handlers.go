package api

import (
	"github.com/JayJamieson/csv-sql/pkg/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterHandlers adds the routes described by api-spec.yaml.
func RegisterHandlers(e *echo.Echo, h *handlers.Handler) {
	g := e.Group("/api")

	g.POST("/import", h.ImportCSV)
	g.POST("/query", h.RunQuery)

	g.GET("/tables", h.ListTables)
	g.GET("/tables/:name", h.GetTable)
	g.DELETE("/tables/:name", h.DropTable)
	g.GET("/tables/:name/schema", h.GetSchema)
}
