package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type fingerprintInput struct {
	Request *Request
	Genetic *GeneticConfig `json:",omitempty"`
}

// Fingerprint identifies the outcome of a seeded run: two requests with the
// same fingerprint produce the same result on this engine. Unseeded requests
// are not reproducible and report ok == false.
func (e *Engine) Fingerprint(req *Request) (fingerprint string, ok bool, err error) {
	if req == nil || req.Seed == 0 {
		return "", false, nil
	}
	input := fingerprintInput{Request: req}
	if req.UseGenetic {
		cfg := e.opts.Genetic
		input.Genetic = &cfg
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return "", false, fmt.Errorf("encode fingerprint: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), true, nil
}
