package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkedReader returns one preset chunk per Read call.
type chunkedReader struct {
	chunks []string
	reads  int
	err    error
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.reads >= len(c.chunks) {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[c.reads])
	c.reads++
	return n, nil
}

func TestReader_PullsDeltasInOrder(t *testing.T) {
	src := &chunkedReader{chunks: []string{
		frame("Bit"),
		`data: {"choices":[{"delta":{"content":"co`,
		`in"}}]}` + "\n\n: keepalive\n\n",
		frame(" is digital gold."),
		"data: [DONE]\n\n",
	}}
	r := NewReader(src)

	var got []string
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, ev.Delta)
	}
	require.Equal(t, []string{"Bit", "coin", " is digital gold."}, got)
}

func TestReader_DrainsSourceAfterDone(t *testing.T) {
	src := &chunkedReader{chunks: []string{
		frame("answer") + "data: [DONE]\n\n",
		frame("ignored"),
		"trailing garbage",
	}}
	var got []string
	require.NoError(t, Consume(src, func(d string) { got = append(got, d) }))
	require.Equal(t, []string{"answer"}, got)
	require.Equal(t, 3, src.reads, "reader keeps reading until the source reports completion")
}

func TestReader_EOFWithoutDone(t *testing.T) {
	var got strings.Builder
	err := Consume(strings.NewReader(frame("a")+frame("b")), func(d string) { got.WriteString(d) })
	require.NoError(t, err)
	require.Equal(t, "ab", got.String())
}

func TestReader_PropagatesReadError(t *testing.T) {
	src := &chunkedReader{chunks: []string{frame("partial")}, err: errors.New("connection reset")}
	var got []string
	err := Consume(src, func(d string) { got = append(got, d) })
	require.Error(t, err)
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, []string{"partial"}, got, "deltas delivered before the failure are kept")
}

func TestReader_EmptyStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
