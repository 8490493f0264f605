package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex digits, used in log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// CohortHash fingerprints the subjects and selection an analysis ran on.
type CohortHash Hash

func (h CohortHash) String() string { return Hash(h).String() }
func (h CohortHash) Short() string  { return Hash(h).Short() }

// ComputeCohortHash hashes the included subject IDs (order-insensitive),
// the model variables and the selection expression.
func ComputeCohortHash(subjectIDs []string, variables []string, selection string) CohortHash {
	ids := append([]string(nil), subjectIDs...)
	sort.Strings(ids)

	var data strings.Builder
	for _, id := range ids {
		data.WriteString(id)
		data.WriteByte(0)
	}
	data.WriteByte('|')
	for _, v := range variables {
		data.WriteString(v)
		data.WriteByte(0)
	}
	data.WriteByte('|')
	data.WriteString(selection)

	return CohortHash(NewHash([]byte(data.String())))
}
