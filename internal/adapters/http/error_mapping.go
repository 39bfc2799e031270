package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrKBAccessDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrTimeoutExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
