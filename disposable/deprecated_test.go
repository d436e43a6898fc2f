package disposable

import (
	"testing"

	"github.com/dshills/eventkit/internal/deprecate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisposable_Off(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		deprecate.SetIncludeDeprecatedAPIs(false)

		calls := 0
		d := New(func() { calls++ })

		err := d.Off()
		require.ErrorIs(t, err, ErrDeprecatedAPI)
		assert.False(t, d.Disposed())
		assert.Equal(t, 0, calls)
	})

	t.Run("enabled", func(t *testing.T) {
		deprecate.SetIncludeDeprecatedAPIs(true)
		deprecate.Reset()
		t.Cleanup(func() {
			deprecate.SetIncludeDeprecatedAPIs(false)
			deprecate.Reset()
		})

		calls := 0
		d := New(func() { calls++ })

		require.NoError(t, d.Off())
		require.NoError(t, d.Off())
		assert.True(t, d.Disposed())
		assert.Equal(t, 1, calls)
		assert.Equal(t, 2, deprecate.Count())
	})
}
