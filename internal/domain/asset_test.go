package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAsset(t *testing.T) {
	t.Parallel()

	t.Run("valid photo asset", func(t *testing.T) {
		t.Parallel()

		asset, err := NewAsset("deadbeef", "/library/2026/08/IMG_0001.jpg", MediaTypePhoto, 1024)
		require.NoError(t, err)

		assert.NotEqual(t, asset.ID.String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, MediaTypePhoto, asset.MediaType)
		assert.Equal(t, int64(1024), asset.SizeBytes)
	})

	t.Run("empty hash rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("", "/library/a.jpg", MediaTypePhoto, 1)
		assert.ErrorIs(t, err, ErrEmptyAssetHash)
	})

	t.Run("empty path rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("deadbeef", "", MediaTypePhoto, 1)
		assert.ErrorIs(t, err, ErrEmptyAssetPath)
	})

	t.Run("bad media type rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("deadbeef", "/library/a.gif", MediaType("audio"), 1)
		assert.ErrorIs(t, err, ErrInvalidMediaType)
	})

	t.Run("zero size rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("deadbeef", "/library/a.jpg", MediaTypePhoto, 0)
		assert.ErrorIs(t, err, ErrInvalidAssetLength)
	})
}
