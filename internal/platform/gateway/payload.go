package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"

	"github.com/goccy/go-json"
)

// Payload is a create or update request body.
type Payload interface {
	// Encode returns the body and its Content-Type.
	Encode() (io.Reader, string, error)
}

// JSONPayload sends a flat JSON object.
type JSONPayload map[string]any

func (p JSONPayload) Encode() (io.Reader, string, error) {
	raw, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, "", fmt.Errorf("encode json payload: %w", err)
	}
	return bytes.NewReader(raw), "application/json", nil
}

// File is a binary attachment sent as one named multipart part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// MultipartPayload sends one part per scalar field, one part per file and,
// when DTOPart is set, the DTO as a JSON part under that name. Some
// endpoints only read structured fields from the DTO part.
type MultipartPayload struct {
	Fields  map[string]string
	Files   []File
	DTOPart string
	DTO     map[string]any
}

func (p MultipartPayload) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, p.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if p.DTOPart != "" {
		raw, err := json.Marshal(p.DTO)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s part: %w", p.DTOPart, err)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.DTOPart))
		h.Set("Content-Type", "application/json")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", p.DTOPart, err)
		}
		if _, err := part.Write(raw); err != nil {
			return nil, "", fmt.Errorf("write %s part: %w", p.DTOPart, err)
		}
	}

	for _, f := range p.Files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write file part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
