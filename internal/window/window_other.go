//go:build !linux && !windows

package window

import (
	"runtime"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

func open(h Handle) (Target, error) {
	return nil, apperr.Newf(apperr.CodeUnsupported, "background clicks are not supported on %s", runtime.GOOS).
		WithMetadata("handle", h.String())
}
