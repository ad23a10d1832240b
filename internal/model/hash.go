package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainState is the domain prefix for record-state digests.
// The version suffix allows a future algorithm migration.
const DomainState = "orbit/state/v1"

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalRecords returns the canonical JSON of a record set. Records are
// ordered by identity so the output is independent of map iteration.
func CanonicalRecords(records []Record) ([]byte, error) {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b Record) int {
		return compareIdentity(a.Identity(), b.Identity())
	})
	arr := make(Array, len(sorted))
	for i, r := range sorted {
		arr[i] = r.canonical()
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("canonical records: %w", err)
	}
	return data, nil
}

// StateDigest fingerprints a record set. Two caches holding the same records
// produce the same digest regardless of how they got there, which is how
// fork, merge and rollback results are compared.
func StateDigest(records []Record) (string, error) {
	data, err := CanonicalRecords(records)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainState, data), nil
}

// MustStateDigest is like StateDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateDigest(records []Record) string {
	d, err := StateDigest(records)
	if err != nil {
		panic(err)
	}
	return d
}
