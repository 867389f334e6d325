package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "test job")
		panic("boom")
	})
	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "test job")
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))

	run := func() (err error) {
		defer func() {
			if perr := MustRecover(recover()); perr != nil {
				err = perr
			}
		}()
		panic("bad row")
	}
	assert.EqualError(t, run(), "panic: bad row")
}
