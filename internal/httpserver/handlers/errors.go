package handlers

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/corten/mediaengine/internal/mediaerr"
)

// toHumaError maps the engine's closed error taxonomy onto HTTP status
// codes. Kinds the taxonomy has no strict REST analog for
// (resource-exhausted, not-implemented, and the remaining
// codec/network/drm/hardware/out-of-memory kinds) surface as 503 or
// 500 rather than the narrower 4xx codes those kinds might otherwise
// suggest, since this handler only reaches for status helpers this
// codebase has confirmed elsewhere.
func toHumaError(err error) error {
	if err == nil {
		return nil
	}
	if err == mediaerr.ErrUnavailable {
		return huma.Error404NotFound("no data available yet", err)
	}

	kind, ok := mediaerr.KindOf(err)
	if !ok {
		return huma.Error500InternalServerError(err.Error(), err)
	}

	switch kind {
	case mediaerr.KindSessionNotFound:
		return huma.Error404NotFound(err.Error(), err)
	case mediaerr.KindInvalidParameter:
		return huma.Error400BadRequest(err.Error(), err)
	case mediaerr.KindInvalidStateTransition:
		return huma.Error409Conflict(err.Error(), err)
	case mediaerr.KindResourceExhausted:
		return huma.Error503ServiceUnavailable(err.Error(), err)
	default:
		return huma.Error500InternalServerError(err.Error(), err)
	}
}
