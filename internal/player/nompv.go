//go:build !libmpv

package player

import (
	"errors"

	"github.com/rs/zerolog"
)

func newMPV(cfg Config, logger zerolog.Logger) (Process, error) {
	return nil, errors.New("pyxis was built without libmpv support (rebuild with -tags libmpv)")
}
