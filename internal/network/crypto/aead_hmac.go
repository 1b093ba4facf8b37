package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrPacketTooShort 表示密文长度不足以容纳 nonce 与 MAC。
	ErrPacketTooShort = errors.New("crypto: packet too short")

	// ErrInvalidMAC 表示 HMAC 校验失败。
	ErrInvalidMAC = errors.New("crypto: invalid mac")

	// ErrInvalidKey 表示密钥长度或编码非法。
	ErrInvalidKey = errors.New("crypto: invalid key")
)

const aes256KeySize = 32

// AESGCMHMAC 使用 AES-256-GCM 加密，并对 nonce|ciphertext|aad 追加 HMAC-SHA256。
//
// 报文格式：nonce || ciphertext(含 GCM tag) || mac
type AESGCMHMAC struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AESGCMHMAC)(nil)

// NewAESGCMHMAC 创建加密器。encKey 必须为 32 字节，macKey 不能为空。
func NewAESGCMHMAC(encKey, macKey []byte) (*AESGCMHMAC, error) {
	if len(encKey) != aes256KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "encryption key must be %d bytes, got %d", aes256KeySize, len(encKey))
	}
	if len(macKey) == 0 {
		return nil, errors.Wrap(ErrInvalidKey, "mac key must not be empty")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMHMAC{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// ParseKey 解析配置中的密钥，支持 "hex:" 与 "base64:" 前缀，无前缀按原始字节处理。
func ParseKey(s string) ([]byte, error) {
	switch {
	case strings.HasPrefix(s, "hex:"):
		b, err := hex.DecodeString(strings.TrimPrefix(s, "hex:"))
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		return b, nil
	case strings.HasPrefix(s, "base64:"):
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		return b, nil
	default:
		return []byte(s), nil
	}
}

func (c *AESGCMHMAC) mac(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}

func (c *AESGCMHMAC) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead()+sha256.Size)
	if _, err := io.ReadFull(rand.Reader, packet); err != nil {
		return nil, err
	}
	nonce := packet[:nonceSize]

	packet = c.aead.Seal(packet, nonce, plaintext, aad)
	return append(packet, c.mac(nonce, packet[nonceSize:], aad)...), nil
}

func (c *AESGCMHMAC) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+c.aead.Overhead()+sha256.Size {
		return nil, ErrPacketTooShort
	}

	macOffset := len(packet) - sha256.Size
	nonce := packet[:nonceSize]
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.mac(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, ErrInvalidMAC
	}
	return c.aead.Open(nil, nonce, ciphertext, aad)
}
