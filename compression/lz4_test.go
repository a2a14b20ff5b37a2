package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLz4RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("score,10,42;"), 512)

	var compressed bytes.Buffer
	require.NoError(t, CompressLz4(payload, &compressed))
	require.Less(t, compressed.Len(), len(payload))

	var restored bytes.Buffer
	require.NoError(t, DecompressLz4(compressed.Bytes(), &restored))
	require.Equal(t, payload, restored.Bytes())
}

func TestLz4RejectsGarbage(t *testing.T) {
	var restored bytes.Buffer
	require.Error(t, DecompressLz4([]byte("definitely not lz4"), &restored))
}
