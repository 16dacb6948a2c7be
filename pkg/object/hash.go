package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashBytes computes the raw SHA-1 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// frame builds the "<type> <len>\0<payload>" envelope Git hashes and stores.
func frame(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// HashObject computes the SHA-1 of the framed envelope "type len\0content",
// exactly as Git does, so content-identical objects hash identically to Git.
func HashObject(objType ObjectType, data []byte) Hash {
	return HashBytes(frame(objType, data))
}
