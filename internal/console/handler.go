// Package console serves the state of every hospital collection over HTTP
// and lets operators drive the same operations the admin screens do.
package console

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/internal/platform/snapshot"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/registry"
	"github.com/ehr/hms/pkg/pagination"
	"github.com/ehr/hms/pkg/resource"
)

type Handler struct {
	reg       *registry.Registry
	snapshots snapshot.Store
	logger    zerolog.Logger
}

// NewHandler serves reg. snapshots may be nil.
func NewHandler(reg *registry.Registry, snapshots snapshot.Store, logger zerolog.Logger) *Handler {
	return &Handler{reg: reg, snapshots: snapshots, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleEditor))
	read.GET("/resources", h.ListResources)
	read.GET("/resources/:name", h.GetResource)
	read.POST("/resources/:name/fetch", h.FetchAll)
	read.GET("/resources/:name/items/:id", h.FetchOne)
	read.GET("/snapshot", h.ShowSnapshot)

	write := api.Group("", auth.RequireRole(auth.RoleEditor))
	write.POST("/resources/:name/items", h.Create)
	write.PUT("/resources/:name/items/:id", h.Update)
	write.DELETE("/resources/:name/items/:id", h.Delete)
	write.POST("/resources/:name/reset/:op", h.Reset)
	write.DELETE("/resources/:name/current", h.ClearCurrent)
	write.POST("/snapshot", h.SaveSnapshot)
}

// resourceView is the state of one container.
type resourceView struct {
	Name       string                       `json:"name"`
	ReadOnly   bool                         `json:"read_only"`
	Operations map[store.Op]lifecycle.State `json:"operations"`
	Current    resource.Entity              `json:"current"`
	Items      *pagination.Response         `json:"items,omitempty"`
}

type operationView struct {
	Operation lifecycle.State `json:"operation"`
	Total     int             `json:"total"`
	Data      any             `json:"data,omitempty"`
}

func (h *Handler) binding(c echo.Context) (domain.Binding, error) {
	b, ok := h.reg.Binding(c.Param("name"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown resource: "+c.Param("name"))
	}
	return b, nil
}

func (h *Handler) ListResources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"data": h.reg.Names()})
}

func (h *Handler) GetResource(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	snap := b.Container().Snapshot()
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, resourceView{
		Name:       snap.Name,
		ReadOnly:   b.ReadOnly(),
		Operations: snap.Ops,
		Current:    snap.Current,
		Items:      pagination.NewResponse(pagination.Page(snap.Items, pg), len(snap.Items), pg),
	})
}

// FetchAll forwards the query string as the backend filter.
func (h *Handler) FetchAll(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	items, err := b.Container().FetchAll(c.Request().Context(), c.QueryParams())
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusOK, b, store.OpFetchAll, map[string]any{"count": len(items)})
}

func (h *Handler) FetchOne(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	e, err := b.Container().FetchOne(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusOK, b, store.OpFetchOne, e)
}

func (h *Handler) Create(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	e, files, err := readBody(c)
	if err != nil {
		return err
	}
	if err := b.CreateEntity(c.Request().Context(), e, files); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusCreated, b, store.OpCreate, nil)
}

func (h *Handler) Update(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	e, files, err := readBody(c)
	if err != nil {
		return err
	}
	if err := b.UpdateEntity(c.Request().Context(), c.Param("id"), e, files); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusOK, b, store.OpUpdate, nil)
}

func (h *Handler) Delete(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	if b.ReadOnly() {
		return h.fail(c, domain.ErrReadOnly)
	}
	id, err := b.Container().Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusOK, b, store.OpDelete, map[string]string{"id": id})
}

func (h *Handler) Reset(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	op, ok := store.ParseOp(c.Param("op"))
	if !ok {
		return h.fail(c, store.ErrUnknownOp)
	}
	if err := b.Container().Reset(op); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, http.StatusOK, b, op, nil)
}

func (h *Handler) ClearCurrent(c echo.Context) error {
	b, err := h.binding(c)
	if err != nil {
		return err
	}
	b.Container().ResetCurrent()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ShowSnapshot(c echo.Context) error {
	if h.snapshots == nil {
		return echo.NewHTTPError(http.StatusNotFound, "snapshots are disabled")
	}
	snaps, err := h.snapshots.Load(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := make(map[string]int, len(snaps))
	for _, s := range snaps {
		out[s.Name] = len(s.Items)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) SaveSnapshot(c echo.Context) error {
	if h.snapshots == nil {
		return echo.NewHTTPError(http.StatusNotFound, "snapshots are disabled")
	}
	snaps := h.reg.Hub.Snapshot()
	if err := h.snapshots.Save(c.Request().Context(), snaps); err != nil {
		return h.fail(c, err)
	}
	h.logger.Info().Int("containers", len(snaps)).Msg("snapshot saved")
	return c.JSON(http.StatusOK, map[string]any{"saved": len(snaps)})
}

func (h *Handler) respond(c echo.Context, status int, b domain.Binding, op store.Op, data any) error {
	ctr := b.Container()
	return c.JSON(status, operationView{
		Operation: ctr.Status(op),
		Total:     len(ctr.Items()),
		Data:      data,
	})
}
