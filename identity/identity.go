package identity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/dchest/blake512"
	"github.com/iden3/go-iden3-crypto/babyjub"
	iutils "github.com/iden3/go-iden3-crypto/utils"
	"github.com/kysee/anon-ownership/utils"
)

var ErrEmptyKey = errors.New("identity private key must not be empty")

// Identity is a Semaphore identity. The private key is an arbitrary byte
// string (the seed); everything else is derived from it with EdDSA-Poseidon
// over Baby JubJub.
type Identity struct {
	privateKey []byte

	SecretScalar *big.Int
	PublicKey    *babyjub.Point
	Commitment   *big.Int
}

// New derives the identity of a seed. The same seed always reproduces the
// same commitment.
func New(seed string) (*Identity, error) {
	return FromPrivateKey([]byte(seed))
}

func Random() (*Identity, error) {
	return FromPrivateKey(utils.RandBytes(32))
}

func FromPrivateKey(privateKey []byte) (*Identity, error) {
	if len(privateKey) == 0 {
		return nil, ErrEmptyKey
	}
	pk := make([]byte, len(privateKey))
	copy(pk, privateKey)

	s := deriveSecretScalar(pk)
	pub := babyjub.NewPoint().Mul(s, babyjub.B8)
	commitment, err := utils.PoseidonHash(pub.X, pub.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to compute identity commitment: %w", err)
	}
	return &Identity{
		privateKey:   pk,
		SecretScalar: s,
		PublicKey:    pub,
		Commitment:   commitment,
	}, nil
}

func (id *Identity) PrivateKey() []byte {
	ret := make([]byte, len(id.privateKey))
	copy(ret, id.privateKey)
	return ret
}

// Export encodes the private key in base64.
func (id *Identity) Export() string {
	return base64.StdEncoding.EncodeToString(id.privateKey)
}

func Import(exported string) (*Identity, error) {
	pk, err := base64.StdEncoding.DecodeString(exported)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exported identity: %w", err)
	}
	return FromPrivateKey(pk)
}

// Nullifier is Poseidon(scope, secret), the value the circuit exposes for a
// given (already hashed) scope.
func (id *Identity) Nullifier(scope *big.Int) (*big.Int, error) {
	return utils.PoseidonHash(scope, id.SecretScalar)
}

func (id *Identity) String() string {
	return fmt.Sprintf("commitment:%s", id.Commitment.String())
}

// deriveSecretScalar: blake512, keep 32 bytes, prune, little-endian, >> 3.
func deriveSecretScalar(privateKey []byte) *big.Int {
	hasher := blake512.New()
	hasher.Write(privateKey)
	sum := hasher.Sum(nil)

	var buf [32]byte
	copy(buf[:], sum[:32])
	buf[0] &= 0xF8
	buf[31] &= 0x7F
	buf[31] |= 0x40

	s := iutils.SetBigIntFromLEBytes(new(big.Int), buf[:])
	s.Rsh(s, 3)
	return s.Mod(s, babyjub.SubOrder)
}
