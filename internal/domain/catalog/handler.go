package catalog

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/catalog", auth.RequireRole(auth.RoleDoctor))
	g.GET("/acts", h.ListActs)
	g.GET("/diseases", h.ListDiseases)
}

func (h *Handler) ListActs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListActs(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDiseases(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListDiseases(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
