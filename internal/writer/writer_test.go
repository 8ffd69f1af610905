package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferBackedWriter(t *testing.T) {
	w := New()
	n, err := w.WriteString("hello")
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", w.String())
	require.False(t, w.HasSink())
}

func TestSinkForwarding(t *testing.T) {
	var buf bytes.Buffer
	w := NewSink(&buf)
	_, err := w.Write([]byte("to host"))
	require.NoError(t, err)
	require.Equal(t, "to host", buf.String())
	require.Empty(t, w.Bytes(), "a sink-backed writer keeps nothing in its own buffer")
	require.True(t, w.HasSink())
}

func TestResetClearsBuffer(t *testing.T) {
	w := New()
	w.WriteString("data")
	w.Reset()
	require.Equal(t, "", w.String())
}
