package common

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
)

// SignatureLength is the byte length of an ed25519 signature.
const SignatureLength = ed25519.SignatureSize

// Signer signs transaction messages on behalf of an address.
type Signer interface {
	Address() Address
	Sign(message []byte) ([]byte, error)
}

// Keypair is an in-memory ed25519 signing key.
type Keypair struct {
	private ed25519.PrivateKey
	address Address
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	kp := &Keypair{private: priv}
	copy(kp.address[:], pub)
	return kp, nil
}

// KeypairFromSeed derives a keypair from a 32 byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	kp := &Keypair{private: priv}
	copy(kp.address[:], pub)
	return kp, nil
}

// Address returns the public key of the keypair.
func (k *Keypair) Address() Address {
	return k.address
}

// Seed returns the 32 byte seed of the keypair.
func (k *Keypair) Seed() []byte {
	return k.private.Seed()
}

func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.private, message), nil
}

// VerifySignature checks an ed25519 signature of message by address.
func VerifySignature(address Address, message, signature []byte) bool {
	if len(signature) != SignatureLength {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(address[:]), message, signature)
}
