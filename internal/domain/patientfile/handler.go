package patientfile

import (
	"io"
	"net/http"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medrecord/medrecord/internal/domain/entry"
	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/patient-files", h.CreatePatientFile)
	admin.PUT("/patient-files/:id/referring-doctor", h.ChangeReferringDoctor)
	admin.DELETE("/patient-files/:id", h.DeletePatientFile)

	// read and edit checks depend on who the caller is
	api.GET("/patient-files/:id", h.GetPatientFile)
	api.PUT("/patient-files/:id", h.UpdatePatientFile)

	doctors := api.Group("/patient-files/:id", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/entries", h.ListEntries)
	doctors.POST("/entries", h.CreateEntry)
	doctors.PUT("/entries/:entryId", h.UpdateEntry)
	doctors.DELETE("/entries/:entryId", h.DeleteEntry)
	doctors.GET("/correspondences", h.ListCorrespondences)
	doctors.POST("/correspondences", h.CreateCorrespondence)
	doctors.DELETE("/correspondences/:correspondenceId", h.DeleteCorrespondence)
}

func caller(c echo.Context) Caller {
	ctx := c.Request().Context()
	return Caller{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
}

func parseUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + name)
	}
	return id, nil
}

func bindEntry(c echo.Context) (entry.Wire, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperr.BadRequest("could not read request body")
	}
	return entry.DecodeWire(body)
}

// -- Patient file administration --

type createRequest struct {
	PatientFile
	Secret string `json:"secret"`
}

func (h *Handler) CreatePatientFile(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	f := req.PatientFile
	if err := h.svc.CreatePatientFile(c.Request().Context(), &f, req.Secret); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetPatientFile(c echo.Context) error {
	f, err := h.svc.GetPatientFile(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) UpdatePatientFile(c echo.Context) error {
	var d Demographics
	if err := c.Bind(&d); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	f, err := h.svc.UpdatePatientFile(c.Request().Context(), caller(c), c.Param("id"), d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ChangeReferringDoctor(c echo.Context) error {
	var req struct {
		ReferringDoctor string `json:"referring_doctor"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	f, err := h.svc.ChangeReferringDoctor(c.Request().Context(), c.Param("id"), req.ReferringDoctor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) DeletePatientFile(c echo.Context) error {
	if err := h.svc.DeletePatientFile(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Clinical entries --

func (h *Handler) ListEntries(c echo.Context) error {
	entries, err := h.svc.ListEntries(c.Request().Context(), caller(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateEntry(c echo.Context) error {
	w, err := bindEntry(c)
	if err != nil {
		return err
	}
	created, err := h.svc.CreateEntry(c.Request().Context(), caller(c).ID, c.Param("id"), w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateEntry(c echo.Context) error {
	entryID, err := parseUUID(c, "entryId")
	if err != nil {
		return err
	}
	w, err := bindEntry(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.UpdateEntry(c.Request().Context(), caller(c).ID, c.Param("id"), entryID, w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	entryID, err := parseUUID(c, "entryId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntry(c.Request().Context(), caller(c).ID, c.Param("id"), entryID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Correspondences --

func (h *Handler) ListCorrespondences(c echo.Context) error {
	corrs, err := h.svc.ListCorrespondences(c.Request().Context(), caller(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, corrs)
}

type correspondenceRequest struct {
	DoctorID   string     `json:"doctor_id"`
	ValidUntil civil.Date `json:"valid_until"`
}

func (h *Handler) CreateCorrespondence(c echo.Context) error {
	var req correspondenceRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	created, err := h.svc.CreateCorrespondence(c.Request().Context(), caller(c).ID, c.Param("id"), req.DoctorID, req.ValidUntil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) DeleteCorrespondence(c echo.Context) error {
	id, err := parseUUID(c, "correspondenceId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCorrespondence(c.Request().Context(), caller(c).ID, c.Param("id"), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
