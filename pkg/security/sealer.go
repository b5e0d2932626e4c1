package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const sealPrefix = "sfseal"

// ErrInvalidEnvelope signals a malformed or tampered sealed payload.
var ErrInvalidEnvelope = fmt.Errorf("invalid sealed envelope")

// ArgonParams captures the Argon2id parameters we embed into each envelope.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
}

// Sealer encrypts small payloads with a key derived from a passphrase.
// Every envelope carries its own salt and argon2 parameters so old
// envelopes stay readable when the configured cost changes.
type Sealer struct {
	passphrase []byte
	params     ArgonParams
}

// NewSealer builds a sealer for the provided passphrase.
func NewSealer(passphrase string, cfg config.PasswordConfig) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	return &Sealer{passphrase: []byte(passphrase), params: paramsFromConfig(cfg)}, nil
}

// Seal encrypts plaintext and returns the encoded envelope.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, s.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt, s.params))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(sealPrefix))

	encSalt := base64.RawStdEncoding.EncodeToString(salt)
	encBody := base64.RawStdEncoding.EncodeToString(sealed)
	return fmt.Sprintf("$%s$v=1$m=%d,t=%d,p=%d$%s$%s", sealPrefix, s.params.Memory, s.params.Time, s.params.Parallelism, encSalt, encBody), nil
}

// Open decrypts an envelope produced by Seal.
func (s *Sealer) Open(encoded string) ([]byte, error) {
	params, salt, body, err := decodeEnvelope(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt, params))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(body) < aead.NonceSize() {
		return nil, ErrInvalidEnvelope
	}
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(sealPrefix))
	if err != nil {
		return nil, ErrInvalidEnvelope
	}
	return plaintext, nil
}

func (s *Sealer) deriveKey(salt []byte, params ArgonParams) []byte {
	return argon2.IDKey(s.passphrase, salt, params.Time, params.Memory, params.Parallelism, chacha20poly1305.KeySize)
}

func paramsFromConfig(cfg config.PasswordConfig) ArgonParams {
	threads := clampInt(cfg.ArgonParallelism, 1, 255)
	return ArgonParams{
		Memory:      clampUint32(cfg.ArgonMemoryKB, 8, 512*1024),
		Time:        clampUint32(cfg.ArgonTime, 1, 10),
		Parallelism: uint8(threads),
		SaltLen:     clampUint32(cfg.ArgonSaltLen, 8, 64),
	}
}

func decodeEnvelope(encoded string) (ArgonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != sealPrefix || parts[2] != "v=1" {
		return ArgonParams{}, nil, nil, ErrInvalidEnvelope
	}

	var params ArgonParams
	for _, token := range strings.Split(parts[3], ",") {
		keyValue := strings.SplitN(token, "=", 2)
		if len(keyValue) != 2 {
			return ArgonParams{}, nil, nil, ErrInvalidEnvelope
		}
		key, value := keyValue[0], keyValue[1]
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidEnvelope
			}
			params.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidEnvelope
			}
			params.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidEnvelope
			}
			params.Parallelism = uint8(v)
		}
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidEnvelope
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidEnvelope
	}
	body, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidEnvelope
	}
	params.SaltLen = uint32(len(salt))

	return params, salt, body, nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampUint32(value, min, max int) uint32 {
	return uint32(clampInt(value, min, max))
}
