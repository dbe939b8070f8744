package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes digests data with SHA-256 and returns the 64-char lowercase hex
// Hash. Loose objects are addressed by the digest of their full envelope, so
// this is what Read recomputes to verify stored bytes.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject builds the envelope "<type> <len>\x00<content>" and digests it.
// Two objects of different types never collide even for identical content,
// because the type is part of the hashed bytes.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
