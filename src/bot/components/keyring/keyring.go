package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

// addressVersion prefixes every Slumbank address before checksumming.
const addressVersion = 0x2a

var signingContext = []byte("slumbank")

// Keypair is a freshly generated sr25519 identity. The seed never leaves
// this package unencrypted except through Seed().
type Keypair struct {
	Address   string
	PublicKey string

	seed [32]byte
}

// Seed returns the raw mini secret, for encryption at rest.
func (kp *Keypair) Seed() [32]byte { return kp.seed }

// Keyring generates user keypairs and encrypts their seeds with keys derived
// from a process-wide master secret.
type Keyring struct {
	master [32]byte
}

func New(masterKey string) *Keyring {
	return &Keyring{master: blake2b.Sum256([]byte(masterKey))}
}

// Generate creates a new sr25519 keypair.
func (k *Keyring) Generate() (*Keypair, error) {
	mini, err := schnorrkel.GenerateMiniSecretKey()
	if err != nil {
		return nil, fmt.Errorf("generate mini secret key: %w", err)
	}

	public, err := mini.ExpandEd25519().Public()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	pubBytes := public.Encode()
	return &Keypair{
		Address:   encodeAddress(pubBytes),
		PublicKey: base58.Encode(pubBytes[:]),
		seed:      mini.Encode(),
	}, nil
}

// EncryptSeed seals the seed with a per-user key and a random nonce,
// returning base64 of nonce||ciphertext.
func (k *Keyring) EncryptSeed(seed [32]byte, userID string) (string, error) {
	key := k.userKey(userID)

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], seed[:], &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptSeed reverses EncryptSeed. It fails when the ciphertext was sealed
// for a different user or tampered with.
func (k *Keyring) DecryptSeed(encoded, userID string) ([32]byte, error) {
	var seed [32]byte

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return seed, fmt.Errorf("decode encrypted seed: %w", err)
	}
	if len(sealed) < 24+32 {
		return seed, fmt.Errorf("encrypted seed too short")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	key := k.userKey(userID)

	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok || len(plain) != 32 {
		return seed, fmt.Errorf("decrypt seed: authentication failed")
	}

	copy(seed[:], plain)
	return seed, nil
}

// Sign signs message with the keypair identified by seed, returning a base58
// encoded sr25519 signature.
func (k *Keyring) Sign(seed [32]byte, message []byte) (string, error) {
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		return "", fmt.Errorf("load mini secret key: %w", err)
	}

	sig, err := mini.ExpandEd25519().Sign(schnorrkel.NewSigningContext(signingContext, message))
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	encoded := sig.Encode()
	return base58.Encode(encoded[:]), nil
}

// Verify checks a base58 signature produced by Sign against a base58 public
// key.
func Verify(publicKey, signature string, message []byte) bool {
	pubBytes, err := base58.Decode(publicKey)
	if err != nil || len(pubBytes) != 32 {
		return false
	}
	sigBytes, err := base58.Decode(signature)
	if err != nil || len(sigBytes) != 64 {
		return false
	}

	var pubRaw [32]byte
	copy(pubRaw[:], pubBytes)
	pub := &schnorrkel.PublicKey{}
	if err := pub.Decode(pubRaw); err != nil {
		return false
	}

	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)
	sig := &schnorrkel.Signature{}
	if err := sig.Decode(sigRaw); err != nil {
		return false
	}

	ok, err := pub.Verify(sig, schnorrkel.NewSigningContext(signingContext, message))
	return err == nil && ok
}

// userKey derives the per-user sealing key from the master secret.
func (k *Keyring) userKey(userID string) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(k.master[:])
	h.Write([]byte(userID))

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// encodeAddress renders a public key as version byte + key + 2 byte blake2b
// checksum, base58 encoded.
func encodeAddress(pub [32]byte) string {
	payload := make([]byte, 0, 35)
	payload = append(payload, addressVersion)
	payload = append(payload, pub[:]...)

	h, _ := blake2b.New(64, nil)
	h.Write([]byte("SS58PRE"))
	h.Write(payload)
	checksum := h.Sum(nil)

	payload = append(payload, checksum[0:2]...)
	return base58.Encode(payload)
}
