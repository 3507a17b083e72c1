package coordinator

import (
	"crypto/md5"  // #nosec G501 -- algorithm choice is the controller's, not ours
	"crypto/sha1" // #nosec G505
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"
)

// digests enumerates the hash algorithms the controller may report. The name
// comes off the wire; anything unlisted means "cannot verify", never a crash.
var digests = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// digestFor returns the hex digest of data under the named algorithm.
// ok is false for unrecognized algorithm names.
func digestFor(name string, data []byte) (digest string, ok bool) {
	mk, ok := digests[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	h := mk()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), true
}
