package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edinet-watch/holdings/internal/db"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// APIHandler serves the ingested entities read-only.
type APIHandler struct {
	repo *db.Repository
}

// NewAPIHandler creates the read API handler.
func NewAPIHandler(repo *db.Repository) *APIHandler {
	return &APIHandler{repo: repo}
}

// PageResponse is the envelope for paginated listings.
type PageResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func pageParams(c echo.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return skip, limit
}

// Filers handles GET /api/filers
// Query params: search (name substring), skip, limit.
func (h *APIHandler) Filers(c echo.Context) error {
	ctx := c.Request().Context()
	skip, limit := pageParams(c)

	filers, total, err := h.repo.ListFilers(ctx, c.QueryParam("search"), skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, PageResponse{Items: filers, Total: total, Skip: skip, Limit: limit})
}

// Filer handles GET /api/filers/:id
func (h *APIHandler) Filer(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filer id")
	}

	filer, err := h.repo.FilerByID(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if filer == nil {
		return echo.NewHTTPError(http.StatusNotFound, "filer not found")
	}

	return c.JSON(http.StatusOK, filer)
}

// FilerFilings handles GET /api/filers/:id/filings
func (h *APIHandler) FilerFilings(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filer id")
	}
	skip, limit := pageParams(c)

	filings, total, err := h.repo.FilingsByFiler(ctx, id, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, PageResponse{Items: filings, Total: total, Skip: skip, Limit: limit})
}

// Issuers handles GET /api/issuers
func (h *APIHandler) Issuers(c echo.Context) error {
	ctx := c.Request().Context()
	skip, limit := pageParams(c)

	issuers, total, err := h.repo.ListIssuersPage(ctx, c.QueryParam("search"), skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, PageResponse{Items: issuers, Total: total, Skip: skip, Limit: limit})
}

// RecentFilings handles GET /api/filings/recent
func (h *APIHandler) RecentFilings(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filings, err := h.repo.RecentFilings(ctx, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, filings)
}
