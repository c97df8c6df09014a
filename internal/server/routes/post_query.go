package routes

import (
	"errors"
	"net/http"

	"chatgraph/internal/server/middleware"
	"chatgraph/pkg/logger"
	"chatgraph/pkg/query"

	"github.com/labstack/echo/v4"
)

type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

type queryError struct {
	Error string `json:"error"`
	Query string `json:"query"`
}

// QueryHandler answers one natural-language question over the graph.
// The response body is always JSON: the answer payload on success,
// {error, query} otherwise.
func QueryHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)

	req := new(queryRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, queryError{Error: "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, queryError{Error: "query is required", Query: req.Query})
	}

	res, err := cc.App.QueryService.Answer(c.Request().Context(), req.Query)
	if err != nil {
		if errors.Is(err, query.ErrNotReady) {
			return c.JSON(http.StatusServiceUnavailable, queryError{Error: err.Error(), Query: req.Query})
		}
		logger.Error("[Server] Query failed", "query", req.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, queryError{Error: err.Error(), Query: req.Query})
	}

	return c.JSON(http.StatusOK, res)
}
