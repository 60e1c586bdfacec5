package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/escrutinio/internal/importer"
	"go.uber.org/zap"
)

// RunImport loads an electoral map upload. The multipart form carries the CSV
// as "map" and, optionally, a TOML plan as "plan".
func (s *Server) RunImport(c *gin.Context) {
	mapFile, err := c.FormFile("map")
	if err != nil {
		AbortWithError(c, newValidationError("map", "invalid_map", "map file is required"))
		return
	}
	mapReader, err := mapFile.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer mapReader.Close()

	rows, err := importer.ReadRows(mapReader)
	if err != nil {
		AbortWithError(c, newValidationError("map", "invalid_map", err.Error()))
		return
	}

	plan := importer.DefaultPlan()
	if planFile, err := c.FormFile("plan"); err == nil {
		planReader, err := planFile.Open()
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		defer planReader.Close()
		if plan, err = importer.DecodePlan(planReader); err != nil {
			AbortWithError(c, newValidationError("plan", "invalid_plan", err.Error()))
			return
		}
	}

	report, err := s.importer.Run(c.Request.Context(), plan, rows)
	if err != nil {
		if errors.Is(err, importer.ErrImportRunning) {
			c.JSON(http.StatusConflict, errorResponse{Error: errorPayload{
				Type:    "conflict",
				Message: "an import is already running",
				Code:    importer.ErrImportRunning.Error(),
			}})
			return
		}
		s.log.Error("import failed", zap.String("pass_id", report.PassID), zap.Error(err))
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ListImportRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	runs, err := s.importer.Runs(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}
