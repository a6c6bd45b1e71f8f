// Package domain holds what every hospital collection has in common: a typed
// model that validates itself and knows its wire payload, bound to a store
// container. The subpackages define the concrete collections.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/pkg/resource"
)

// ErrReadOnly is returned for mutations on lookup collections.
var ErrReadOnly = errors.New("collection is read-only")

// ValidationError lists the problems found in a model before any request
// was made.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Checker accumulates validation problems.
type Checker struct {
	problems []string
}

func (c *Checker) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.problems = append(c.problems, field+" is required")
	}
}

func (c *Checker) OneOf(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	c.problems = append(c.problems, fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value))
}

func (c *Checker) Check(ok bool, format string, args ...any) {
	if !ok {
		c.problems = append(c.problems, fmt.Sprintf(format, args...))
	}
}

// Err returns nil when no problem was recorded.
func (c *Checker) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

// Model is implemented by pointer receivers of the typed models.
type Model interface {
	Validate() error
	Payload(files []gateway.File) (gateway.Payload, error)
}

// Binding is the untyped surface the console and CLI drive.
type Binding interface {
	Container() *store.Container
	ReadOnly() bool
	CreateEntity(ctx context.Context, e resource.Entity, files []gateway.File) error
	UpdateEntity(ctx context.Context, id string, e resource.Entity, files []gateway.File) error
}

// Collection binds model T to a container.
type Collection[T any, PT interface {
	*T
	Model
}] struct {
	c        *store.Container
	readOnly bool
}

func NewCollection[T any, PT interface {
	*T
	Model
}](c *store.Container) *Collection[T, PT] {
	return &Collection[T, PT]{c: c}
}

// NewLookup builds a collection that only supports reads.
func NewLookup[T any, PT interface {
	*T
	Model
}](c *store.Container) *Collection[T, PT] {
	return &Collection[T, PT]{c: c, readOnly: true}
}

func (s *Collection[T, PT]) Container() *store.Container { return s.c }

func (s *Collection[T, PT]) ReadOnly() bool { return s.readOnly }

func (s *Collection[T, PT]) List(ctx context.Context, filter url.Values) error {
	_, err := s.c.FetchAll(ctx, filter)
	return err
}

func (s *Collection[T, PT]) Get(ctx context.Context, id string) error {
	_, err := s.c.FetchOne(ctx, id)
	return err
}

// Create validates m and submits it. Nothing is sent when validation fails.
func (s *Collection[T, PT]) Create(ctx context.Context, m *T, files ...gateway.File) error {
	if s.readOnly {
		return ErrReadOnly
	}
	p, err := payloadOf[T, PT](m, files)
	if err != nil {
		return err
	}
	_, err = s.c.Create(ctx, p)
	return err
}

func (s *Collection[T, PT]) Update(ctx context.Context, id string, m *T, files ...gateway.File) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if id == "" {
		return &ValidationError{Problems: []string{"id is required"}}
	}
	p, err := payloadOf[T, PT](m, files)
	if err != nil {
		return err
	}
	_, err = s.c.Update(ctx, id, p)
	return err
}

func (s *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.c.Delete(ctx, id)
	return err
}

func (s *Collection[T, PT]) CreateEntity(ctx context.Context, e resource.Entity, files []gateway.File) error {
	m, err := resource.Decode[T](e)
	if err != nil {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	return s.Create(ctx, &m, files...)
}

func (s *Collection[T, PT]) UpdateEntity(ctx context.Context, id string, e resource.Entity, files []gateway.File) error {
	m, err := resource.Decode[T](e)
	if err != nil {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	return s.Update(ctx, id, &m, files...)
}

// Items decodes the collection.
func (s *Collection[T, PT]) Items() ([]T, error) {
	return resource.DecodeAll[T](s.c.Items())
}

// Current decodes the current entity; nil when none is set.
func (s *Collection[T, PT]) Current() (*T, error) {
	e := s.c.Current()
	if e == nil {
		return nil, nil
	}
	m, err := resource.Decode[T](e)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func payloadOf[T any, PT interface {
	*T
	Model
}](m *T, files []gateway.File) (gateway.Payload, error) {
	if m == nil {
		return nil, &ValidationError{Problems: []string{"body is required"}}
	}
	if err := PT(m).Validate(); err != nil {
		return nil, err
	}
	return PT(m).Payload(files)
}

// JSONBody renders m as a JSON payload without its id.
func JSONBody(m any) (gateway.Payload, error) {
	e, err := resource.FromModel(m)
	if err != nil {
		return nil, err
	}
	delete(e, resource.DefaultIDField)
	return gateway.JSONPayload(e), nil
}

// MultipartBody sends m as the JSON part named dto next to files.
func MultipartBody(dto string, m any, files []gateway.File) (gateway.Payload, error) {
	e, err := resource.FromModel(m)
	if err != nil {
		return nil, err
	}
	delete(e, resource.DefaultIDField)
	return gateway.MultipartPayload{DTOPart: dto, DTO: e, Files: files}, nil
}

// OnlyFiles rejects file parts other than the allowed ones.
func OnlyFiles(files []gateway.File, allowed ...string) error {
	var c Checker
	for _, f := range files {
		ok := false
		for _, a := range allowed {
			ok = ok || f.Field == a
		}
		c.Check(ok, "unexpected file part %q", f.Field)
	}
	return c.Err()
}
