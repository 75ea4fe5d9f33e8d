package format

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildContainer(t *testing.T, host []byte, options []string, payload, prelude []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(host)
	_, err := WritePadding(&buf, int64(len(host)))
	require.NoError(t, err)
	_, err = WriteBox(&buf, KindOptions, EncodeOptions(options))
	require.NoError(t, err)
	require.NoError(t, Header{Kind: KindPayload, Length: uint32(len(payload))}.Write(&buf))
	buf.Write(payload)
	_, err = WritePadding(&buf, int64(len(payload)))
	require.NoError(t, err)
	_, err = WriteBox(&buf, KindPrelude, prelude)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadContainer_FollowsLayout(t *testing.T) {
	host := bytes.Repeat([]byte{0x7f}, 5000)
	data := buildContainer(t, host, []string{"--stack-size=2048"}, []byte("hello world"), []byte("(prelude)"))

	c, err := ReadContainer(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(8192), c.HostSize)
	assert.Equal(t, []string{"--stack-size=2048"}, c.Options)
	assert.Equal(t, int64(8192+4096+HeaderSize), c.PayloadOffset)
	assert.Equal(t, int64(11), c.PayloadLength)
	assert.Equal(t, c.PayloadOffset+4096, c.PreludeOffset)
	assert.Equal(t, []byte("(prelude)"), c.Prelude)

	got, err := c.Slice(bytes.NewReader(data), 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	empty, err := c.Slice(bytes.NewReader(data), 11, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = c.Slice(bytes.NewReader(data), 10, 2)
	require.Error(t, err)
}

func TestReadContainer_EmptyHost(t *testing.T) {
	data := buildContainer(t, nil, nil, nil, []byte("x"))
	c, err := ReadContainer(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Zero(t, c.HostSize)
	assert.Empty(t, c.Options)
	assert.Zero(t, c.PayloadLength)
	assert.Equal(t, int64(4096+HeaderSize), c.PreludeOffset)
}

func TestReadContainer_NoBoxes(t *testing.T) {
	data := make([]byte, 3*Boundary)
	_, err := ReadContainer(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNoContainer)
}

func TestReadContainer_TruncatedPayload(t *testing.T) {
	data := buildContainer(t, nil, nil, []byte("abc"), []byte("x"))
	binary.LittleEndian.PutUint32(data[Boundary+12:], 1<<20)
	_, err := ReadContainer(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload exceeds file")
}
