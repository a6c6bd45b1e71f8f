package console

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/store"
)

// fail maps an operation error onto an HTTP error. Backend statuses pass
// through; an unreachable or incoherent backend is a 502.
func (h *Handler) fail(c echo.Context, err error) error {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn().Err(err).Str("resource", c.Param("name")).Int("status", status).Msg("operation failed")
	}
	return echo.NewHTTPError(status, msg).SetInternal(err)
}

func classify(err error) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, domain.ErrReadOnly):
		return http.StatusMethodNotAllowed, err.Error()
	case errors.Is(err, store.ErrUnknownOp):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrSuperseded):
		return http.StatusConflict, err.Error()
	}
	if re, ok := gateway.AsRemote(err); ok {
		return gateway.HTTPStatus(err), re.Message
	}
	return http.StatusInternalServerError, "internal error"
}
