package doctor

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/doctors", h.CreateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)

	read := api.Group("", auth.RequireRole(auth.RoleDoctor))
	read.GET("/doctors", h.ListDoctors)
	read.GET("/doctors/:id", h.GetDoctor)
	read.PUT("/doctors/:id", h.UpdateDoctor)
}

type createRequest struct {
	ID string `json:"id"`
	Profile
	Admin  bool   `json:"admin"`
	Secret string `json:"secret"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	d := &Doctor{ID: req.ID, Admin: req.Admin}
	d.Apply(req.Profile)
	if err := h.svc.Create(c.Request().Context(), d, req.Secret); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// UpdateDoctor is open to admins and to the doctor themself.
func (h *Handler) UpdateDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !auth.HasRole(ctx, auth.RoleAdmin) && auth.UserIDFromContext(ctx) != id {
		return apperr.Forbidden("doctors can only update their own profile")
	}
	var p Profile
	if err := c.Bind(&p); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	d, err := h.svc.Update(ctx, id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
