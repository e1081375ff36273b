package hwcontext

import "github.com/corten/mediaengine/internal/mediaerr"

var drmUnsupportedErr = mediaerr.ErrDrmError
