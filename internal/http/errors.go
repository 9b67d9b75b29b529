package httpx

import (
	"errors"
	"net/http"

	"github.com/james-spears/refactored-computing-machine/internal/repository"
	"github.com/james-spears/refactored-computing-machine/internal/service/auth"
	"github.com/james-spears/refactored-computing-machine/internal/service/catalog"
)

// writeServiceError maps service failures onto HTTP responses. Unknown errors
// are logged and answered with a generic 500.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, http.StatusBadRequest, verr.Message, verr.Details)
	case errors.Is(err, catalog.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAccountExists):
		writeError(w, http.StatusConflict, auth.ErrAccountExists.Error())
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		r.logger.Error("request failed", "error", err, "method", req.Method, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
