package remote

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

// signature derives the per-request auth token: the sha1 of a canonical
// JSON object binding the operation name, the object coordinates and the
// channel password. encoding/json emits struct fields in declaration order,
// so the field order below is part of the wire contract.
func signature(op, algorithm, digest, password string) string {
	payload, _ := json.Marshal(struct {
		Algorithm string `json:"algorithm"`
		Hash      string `json:"hash"`
		Name      string `json:"name"`
		Password  string `json:"password"`
	}{
		Algorithm: algorithm,
		Hash:      digest,
		Name:      op,
		Password:  password,
	})
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}
