package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/msgrelay/internal/network/compressor"
	"github.com/lk2023060901/msgrelay/internal/network/crypto"
)

type snapshotDoc struct {
	Accounts []string `json:"accounts"`
}

func newFullBlobCodec(t *testing.T) *BlobCodec {
	zc, err := compressor.NewZstdCompressorWithConcurrency(1)
	require.NoError(t, err)
	t.Cleanup(zc.Close)
	enc, err := crypto.NewAESGCMHMAC(bytes.Repeat([]byte{3}, 32), []byte("mac"))
	require.NoError(t, err)
	return NewBlobCodec(BlobOptions{
		Compressor:        zc,
		Encryptor:         enc,
		EnableCompression: true,
		EnableEncryption:  true,
	})
}

func TestBlobPlain(t *testing.T) {
	c := NewBlobCodec(BlobOptions{})
	data, err := c.Encode("accounts", snapshotDoc{Accounts: []string{"alice", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, []byte{blobVersion, 0}, data[:2])
	assert.Contains(t, string(data), `"alice"`)

	var doc snapshotDoc
	require.NoError(t, c.Decode("accounts", data, &doc))
	assert.Equal(t, []string{"alice", "bob"}, doc.Accounts)
}

func TestBlobFullPipeline(t *testing.T) {
	c := newFullBlobCodec(t)
	data, err := c.Encode("accounts", snapshotDoc{Accounts: []string{"alice", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, flagCompressed|flagEncrypted, data[1])
	assert.NotContains(t, string(data), "alice")

	var doc snapshotDoc
	require.NoError(t, c.Decode("accounts", data, &doc))
	assert.Equal(t, []string{"alice", "bob"}, doc.Accounts)

	// 数据块绑定存储键。
	assert.ErrorIs(t, c.Decode("undelivered", data, &doc), crypto.ErrInvalidMAC)
}

func TestBlobCorrupted(t *testing.T) {
	c := NewBlobCodec(BlobOptions{})
	var doc snapshotDoc
	assert.ErrorIs(t, c.Decode("k", nil, &doc), ErrBlobCorrupted)
	assert.ErrorIs(t, c.Decode("k", []byte{9, 0, '{', '}'}, &doc), ErrBlobCorrupted)

	full := newFullBlobCodec(t)
	data, err := full.Encode("k", snapshotDoc{Accounts: []string{"x"}})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Decode("k", data, &doc), ErrBlobCorrupted)
}
