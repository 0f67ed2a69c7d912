package soe

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/tracepack/mfgplan/pkg/canonicalize"
)

// Sign attaches an Ed25519 signature over run's canonical JSON to
// run.Signature. This is additive transport-integrity metadata: it is
// computed after every content-addressed id in the run, and the
// signature field itself is never hashed into any Decision.id or other
// content address.
func Sign(run *Run, key ed25519.PrivateKey) error {
	unsigned := *run
	unsigned.Signature = ""

	body, err := canonicalize.JCS(unsigned)
	if err != nil {
		return fmt.Errorf("soe: canonicalize run for signing: %w", err)
	}
	sig := ed25519.Sign(key, body)
	run.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// VerifySignature checks run.Signature against pub. It reports false,
// not an error, on a missing signature — callers decide whether an
// unsigned run is acceptable.
func VerifySignature(run *Run, pub ed25519.PublicKey) (bool, error) {
	if run.Signature == "" {
		return false, nil
	}
	sig, err := base64.StdEncoding.DecodeString(run.Signature)
	if err != nil {
		return false, fmt.Errorf("soe: decode signature: %w", err)
	}

	unsigned := *run
	unsigned.Signature = ""
	body, err := canonicalize.JCS(unsigned)
	if err != nil {
		return false, fmt.Errorf("soe: canonicalize run for verification: %w", err)
	}
	return ed25519.Verify(pub, body, sig), nil
}
