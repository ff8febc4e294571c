package driver

import (
	"crypto/sha256"
	"fmt"

	"xeblock/internal/blocking"
	"xeblock/internal/ir"
)

// Digest is a SHA-256 content hash.
type Digest [sha256.Size]byte

// UnitDigest hashes the snapshot of u together with the options that change
// the pass output. Units that encode identically and run with the same
// options produce the same blocked unit.
func UnitDigest(u *ir.Unit, opts blocking.Options) (Digest, error) {
	h := sha256.New()
	if err := ir.Encode(h, u); err != nil {
		return Digest{}, fmt.Errorf("digest %s: %w", u.Name, err)
	}
	fmt.Fprintf(h, "max_rewrites=%d verify=%t max_diagnostics=%d", opts.MaxRewrites, opts.Verify, opts.MaxDiagnostics)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
