package sandbox

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/pkg/resource"
)

// envelope wraps a list the way the real backend does for that collection.
// Every collection uses a different layout.
var envelope = map[string]func([]resource.Entity) any{
	PathAssets: func(items []resource.Entity) any { return items },
	PathDonors: func(items []resource.Entity) any { return map[string]any{"data": items} },
	PathHealthPackages: func(items []resource.Entity) any {
		return map[string]any{"content": items, "totalElements": len(items)}
	},
	PathNotices:  func(items []resource.Entity) any { return map[string]any{"data": map[string]any{"content": items}} },
	PathPatients: func(items []resource.Entity) any { return map[string]any{"items": items, "total": len(items)} },
	PathMothers:  func(items []resource.Entity) any { return map[string]any{"dataList": items} },
	PathBirths:   func(items []resource.Entity) any { return map[string]any{"data": map[string]any{"dataList": items}} },
	PathDeaths:   func(items []resource.Entity) any { return map[string]any{"count": len(items), "records": items} },
}

var readOnly = map[string]bool{PathPatients: true, PathMothers: true}

// searchFields are matched by the search query parameter.
var searchFields = []string{"firstName", "lastName", "mrn"}

// Server serves seeded collections over HTTP with create, update and delete
// applied in memory. Stored entities are replaced, never modified in place,
// so a copied slice stays consistent after the lock is released.
type Server struct {
	seeder *Seeder
	logger zerolog.Logger

	mu     sync.Mutex
	data   map[string][]resource.Entity
	nextID map[string]int
}

func NewServer(seeder *Seeder, logger zerolog.Logger) *Server {
	s := &Server{seeder: seeder, logger: logger.With().Str("component", "sandbox").Logger()}
	s.Reset()
	return s
}

// Reset regenerates the seed data and discards every change.
func (s *Server) Reset() *SeedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := s.seeder.Generate()
	s.data = make(map[string][]resource.Entity, len(Paths))
	s.nextID = make(map[string]int, len(Paths))
	for _, p := range Paths {
		items := s.seeder.GetResources(p)
		s.data[p] = make([]resource.Entity, 0, len(items))
		for _, e := range items {
			s.data[p] = append(s.data[p], clone(e))
		}
		s.nextID[p] = len(items) + 1
	}
	s.logger.Info().Int("total", result.Total).Msg("sandbox seeded")
	return result
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	for _, p := range Paths {
		h := &collectionHandler{srv: s, path: p}
		base := "/" + p
		e.GET(base, h.list)
		e.GET(base+"/:id", h.get)
		e.POST(base, h.create)
		e.PUT(base+"/:id", h.update)
		e.DELETE(base+"/:id", h.remove)
	}
	e.POST("/_sandbox/reset", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Reset())
	})
	e.GET("/_sandbox/export", func(c echo.Context) error {
		path := c.QueryParam("collection")
		if _, ok := envelope[path]; !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown collection: "+path)
		}
		s.mu.Lock()
		items := make([]resource.Entity, len(s.data[path]))
		copy(items, s.data[path])
		s.mu.Unlock()

		c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
		c.Response().WriteHeader(http.StatusOK)
		return writeNDJSON(c.Response(), path, items)
	})
}

type collectionHandler struct {
	srv  *Server
	path string
}

func (h *collectionHandler) list(c echo.Context) error {
	q := c.QueryParams()
	search := strings.ToLower(q.Get("search"))
	q.Del("search")

	h.srv.mu.Lock()
	out := make([]resource.Entity, 0, len(h.srv.data[h.path]))
	for _, e := range h.srv.data[h.path] {
		if matches(e, q) && (search == "" || contains(e, search)) {
			out = append(out, clone(e))
		}
	}
	h.srv.mu.Unlock()

	return c.JSON(http.StatusOK, envelope[h.path](out))
}

func (h *collectionHandler) get(c echo.Context) error {
	h.srv.mu.Lock()
	_, e := h.find(c.Param("id"))
	h.srv.mu.Unlock()
	if e == nil {
		return notFound(c)
	}
	if h.path == PathAssets {
		return c.JSON(http.StatusOK, e)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": e})
}

func (h *collectionHandler) create(c echo.Context) error {
	if readOnly[h.path] {
		return message(c, http.StatusMethodNotAllowed, "collection is read-only")
	}
	in, err := readEntity(c, h.path)
	if err != nil {
		return message(c, http.StatusBadRequest, err.Error())
	}

	h.srv.mu.Lock()
	defer h.srv.mu.Unlock()
	if h.path == PathAssets && h.serialTaken(in["serialNumber"], "") {
		return message(c, http.StatusConflict, "serial number already registered")
	}
	in[resource.DefaultIDField] = h.srv.nextID[h.path]
	h.srv.nextID[h.path]++
	h.srv.data[h.path] = append(h.srv.data[h.path], in)
	h.srv.logger.Debug().Str("collection", h.path).Msg("created")
	return c.JSON(http.StatusCreated, map[string]any{"data": clone(in), "message": "created"})
}

func (h *collectionHandler) update(c echo.Context) error {
	if readOnly[h.path] {
		return message(c, http.StatusMethodNotAllowed, "collection is read-only")
	}
	in, err := readEntity(c, h.path)
	if err != nil {
		return message(c, http.StatusBadRequest, err.Error())
	}

	h.srv.mu.Lock()
	defer h.srv.mu.Unlock()
	i, cur := h.find(c.Param("id"))
	if cur == nil {
		return notFound(c)
	}
	if h.path == PathAssets && h.serialTaken(in["serialNumber"], c.Param("id")) {
		return message(c, http.StatusConflict, "serial number already registered")
	}
	merged := clone(cur)
	for k, v := range in {
		merged[k] = v
	}
	merged[resource.DefaultIDField] = cur[resource.DefaultIDField]
	h.srv.data[h.path][i] = merged
	return c.JSON(http.StatusOK, map[string]any{"data": clone(merged)})
}

func (h *collectionHandler) remove(c echo.Context) error {
	if readOnly[h.path] {
		return message(c, http.StatusMethodNotAllowed, "collection is read-only")
	}
	h.srv.mu.Lock()
	defer h.srv.mu.Unlock()
	i, cur := h.find(c.Param("id"))
	if cur == nil {
		return notFound(c)
	}
	items := h.srv.data[h.path]
	h.srv.data[h.path] = append(items[:i:i], items[i+1:]...)
	return c.NoContent(http.StatusNoContent)
}

// find must be called with the server lock held.
func (h *collectionHandler) find(id string) (int, resource.Entity) {
	for i, e := range h.srv.data[h.path] {
		if e.HasID(resource.DefaultIDField, id) {
			return i, e
		}
	}
	return -1, nil
}

func (h *collectionHandler) serialTaken(serial any, exceptID string) bool {
	sn := resource.CanonicalID(serial)
	if serial == nil || sn == "" {
		return false
	}
	for _, e := range h.srv.data[h.path] {
		if resource.CanonicalID(e["serialNumber"]) == sn && !e.HasID(resource.DefaultIDField, exceptID) {
			return true
		}
	}
	return false
}

// readEntity decodes a JSON object or a multipart form. In a form, values
// holding JSON objects are merged in and each file becomes a <field>Url
// pointing at a fake download location.
func readEntity(c echo.Context, path string) (resource.Entity, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return nil, err
		}
		return decodeObject(raw)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("malformed multipart body")
	}
	e := resource.Entity{}
	for name, vals := range form.Value {
		if len(vals) == 0 {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(vals[0]), "{") {
			obj, err := decodeObject([]byte(vals[0]))
			if err != nil {
				return nil, fmt.Errorf("part %s: %w", name, err)
			}
			for k, v := range obj {
				e[k] = v
			}
			continue
		}
		e[name] = vals[0]
	}
	for field, headers := range form.File {
		if len(headers) > 0 {
			e[field+"Url"] = "/files/" + path + "/" + headers[0].Filename
		}
	}
	return e, nil
}

func decodeObject(raw []byte) (resource.Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var e resource.Entity
	if err := dec.Decode(&e); err != nil || e == nil {
		return nil, fmt.Errorf("body must be a JSON object")
	}
	return e, nil
}

func matches(e resource.Entity, q map[string][]string) bool {
	for k, vals := range q {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if resource.CanonicalID(e[k]) != vals[0] {
			return false
		}
	}
	return true
}

func contains(e resource.Entity, needle string) bool {
	for _, f := range searchFields {
		if s, ok := e[f].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func clone(e resource.Entity) resource.Entity {
	out := make(resource.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func notFound(c echo.Context) error {
	return message(c, http.StatusNotFound, "record "+strconv.Quote(c.Param("id"))+" not found")
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}
