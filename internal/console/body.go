package console

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/pkg/resource"
)

// readBody accepts a JSON object or a multipart form. Form values holding a
// JSON object are merged into the entity so a client can send the DTO as a
// single part.
func readBody(c echo.Context) (resource.Entity, []gateway.File, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		return readMultipart(c)
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, nil, err
	}
	e, err := decodeObject(raw)
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
	}
	return e, nil, nil
}

func readMultipart(c echo.Context) (resource.Entity, []gateway.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "malformed multipart body")
	}

	e := resource.Entity{}
	for name, vals := range form.Value {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		if strings.HasPrefix(strings.TrimSpace(v), "{") {
			obj, err := decodeObject([]byte(v))
			if err != nil {
				return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "part "+name+" is not valid JSON")
			}
			for k, fv := range obj {
				e[k] = fv
			}
			continue
		}
		e[name] = v
	}

	var files []gateway.File
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, nil, err
			}
			files = append(files, gateway.File{
				Field:       field,
				Name:        fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Data:        data,
			})
		}
	}
	return e, files, nil
}

func decodeObject(raw []byte) (resource.Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var e resource.Entity
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return e, nil
}
