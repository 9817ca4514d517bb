package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kysee/anon-ownership/utils"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const keyfileVersion = 1

// scrypt cost parameters; tests lower scryptN.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var ErrWrongPassword = errors.New("wrong keyfile password")

type keyfile struct {
	Version    int    `json:"version"`
	Commitment string `json:"commitment"`
	KDF        struct {
		Salt string `json:"salt"`
		N    int    `json:"n"`
		R    int    `json:"r"`
		P    int    `json:"p"`
	} `json:"kdf"`
	Ciphertext string `json:"ciphertext"`
}

// SaveKeyfile writes the identity's private key encrypted under password.
// The commitment is stored in clear and authenticated as associated data.
func SaveKeyfile(path string, id *Identity, password string) error {
	var kf keyfile
	kf.Version = keyfileVersion
	kf.Commitment = id.Commitment.String()
	salt := utils.RandBytes(32)
	kf.KDF.Salt = hex.EncodeToString(salt)
	kf.KDF.N, kf.KDF.R, kf.KDF.P = scryptN, scryptR, scryptP

	key, nonce, err := keyfileKeys(password, salt, kf.KDF.N, kf.KDF.R, kf.KDF.P)
	if err != nil {
		return err
	}
	ct, err := seal(key, nonce, id.privateKey, []byte(kf.Commitment))
	if err != nil {
		return err
	}
	kf.Ciphertext = hex.EncodeToString(ct)

	bz, err := json.MarshalIndent(&kf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0600)
}

func LoadKeyfile(path, password string) (*Identity, error) {
	bz, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var kf keyfile
	if err := json.Unmarshal(bz, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse keyfile: %w", err)
	}
	if kf.Version != keyfileVersion {
		return nil, fmt.Errorf("unsupported keyfile version: expected(%d), got(%d)", keyfileVersion, kf.Version)
	}
	salt, err := hex.DecodeString(kf.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid keyfile salt: %w", err)
	}
	ct, err := hex.DecodeString(kf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid keyfile ciphertext: %w", err)
	}

	key, nonce, err := keyfileKeys(password, salt, kf.KDF.N, kf.KDF.R, kf.KDF.P)
	if err != nil {
		return nil, err
	}
	pk, err := open(key, nonce, ct, []byte(kf.Commitment))
	if err != nil {
		return nil, ErrWrongPassword
	}
	id, err := FromPrivateKey(pk)
	if err != nil {
		return nil, err
	}
	if id.Commitment.String() != kf.Commitment {
		return nil, fmt.Errorf("keyfile commitment mismatch: expected(%s), got(%s)", kf.Commitment, id.Commitment)
	}
	return id, nil
}

func keyfileKeys(password string, salt []byte, n, r, p int) ([]byte, []byte, error) {
	secret, err := scrypt.Key([]byte(password), salt, n, r, p, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive keyfile secret: %w", err)
	}
	stream, err := expandKey(secret, chacha20poly1305.KeySize+chacha20poly1305.NonceSize)
	if err != nil {
		return nil, nil, err
	}
	return stream[:chacha20poly1305.KeySize], stream[chacha20poly1305.KeySize:], nil
}

// expandKey stretches a 32-byte secret with keyed BLAKE2s and a one-byte
// counter starting at 1.
func expandKey(secret []byte, outputLen int) ([]byte, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("secret must be 32 bytes")
	}
	label := []byte("AnonOwnership_Keyfile")

	var stream []byte
	var counter byte = 1
	for len(stream) < outputLen {
		h, err := blake2s.New256(label)
		if err != nil {
			return nil, fmt.Errorf("failed to create blake2s hash: %w", err)
		}
		h.Write(secret)
		h.Write([]byte{counter})
		stream = append(stream, h.Sum(nil)...)

		counter++
		if counter == 0 {
			return nil, errors.New("KDF counter overflow")
		}
	}
	return stream[:outputLen], nil
}

func seal(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 AEAD: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func open(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 AEAD: %w", err)
	}
	return aead.Open(nil, nonce, ciphertext, additionalData)
}
