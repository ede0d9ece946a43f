package errdefs_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"bioswatch/internal/config"
	"bioswatch/internal/errdefs"
	"bioswatch/internal/notifier"
)

func TestConfigErrorIsShared(t *testing.T) {
	acquire := fmt.Errorf("%w: email: missing password", notifier.ErrConfig)
	load := fmt.Errorf("%w: smtp.port out of range", config.ErrConfig)

	for _, err := range []error{acquire, load} {
		assert.ErrorIs(t, err, errdefs.ErrConfig)
		assert.ErrorIs(t, err, config.ErrConfig)
		assert.ErrorIs(t, err, notifier.ErrConfig)
	}
}
