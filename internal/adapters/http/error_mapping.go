package httpadapter

import (
	"net/http"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsKind(err, domain.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file not found")
	case domain.IsKind(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsKind(err, domain.ErrUnsupported):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case domain.IsKind(err, domain.ErrTemporary):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
