// Package digest computes the content digests that bind ledger blocks together.
//
// Block content is serialised into a fixed 12-byte canonical form (timestamp,
// then payload, both little-endian two's complement) and fed through a
// cryptographic hash. The result is rendered as lowercase hex.
package digest

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is the ledger's historical default digest.
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// EncodedSize is the length in bytes of an encoded Content value.
const EncodedSize = 8 + 4

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unsupported names.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithm names a supported hash function.
type Algorithm string

const (
	SHA1       Algorithm = "sha1"
	SHA256     Algorithm = "sha256"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

// Algorithms lists every supported algorithm, default first.
var Algorithms = []Algorithm{SHA1, SHA256, SHA3_256, BLAKE2b256}

// ParseAlgorithm maps a configuration value onto an Algorithm.
// Matching is case-insensitive; the empty string selects SHA1.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if name == "" {
		return SHA1, nil
	}
	for _, a := range Algorithms {
		if a == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Content is the hashed part of a block.
type Content struct {
	Timestamp int64 `json:"timestamp"` // seconds since the Unix epoch
	Payload   int32 `json:"payload"`
}

// Encode returns the canonical byte representation of c.
func Encode(c Content) []byte {
	var buf [EncodedSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.Timestamp))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.Payload))
	return buf[:]
}

// Engine hashes block content with a fixed algorithm.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	alg     Algorithm
	newHash func() hash.Hash
}

// New returns an Engine for alg.
func New(alg Algorithm) (*Engine, error) {
	var fn func() hash.Hash
	switch alg {
	case SHA1:
		fn = sha1.New
	case SHA256:
		fn = sha256.New
	case SHA3_256:
		fn = sha3.New256
	case BLAKE2b256:
		fn = func() hash.Hash {
			h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
			return h
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
	return &Engine{alg: alg, newHash: fn}, nil
}

// Default returns the SHA-1 engine.
func Default() *Engine {
	return &Engine{alg: SHA1, newHash: sha1.New}
}

// Algorithm reports the engine's hash function.
func (e *Engine) Algorithm() Algorithm { return e.alg }

// Size is the length of a digest in hex characters.
func (e *Engine) Size() int { return hex.EncodedLen(e.newHash().Size()) }

// Digest hashes the content alone.
func (e *Engine) Digest(c Content) string {
	h := e.newHash()
	h.Write(Encode(c))
	return hex.EncodeToString(h.Sum(nil))
}

// DigestLinked hashes the content followed by the length-prefixed previous
// digest, so that the link to the predecessor is covered by the hash.
func (e *Engine) DigestLinked(c Content, previous string) string {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(previous)))

	h := e.newHash()
	h.Write(Encode(c))
	h.Write(n[:])
	h.Write([]byte(previous))
	return hex.EncodeToString(h.Sum(nil))
}
