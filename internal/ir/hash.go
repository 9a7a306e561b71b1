package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows algorithm migration.
const (
	DomainSnapshot = "activitysync/snapshot/v1"
	DomainResponse = "activitysync/response/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash returns the content hash of a poll body.
// Equal snapshots hash equally regardless of Unicode normalization form.
func SnapshotHash(snapshot []ElementSnapshot) (string, error) {
	if snapshot == nil {
		snapshot = []ElementSnapshot{}
	}
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// ResponseHash returns the content hash of a remote response.
func ResponseHash(response []ElementActivity) (string, error) {
	if response == nil {
		response = []ElementActivity{}
	}
	canonical, err := MarshalCanonical(response)
	if err != nil {
		return "", fmt.Errorf("ResponseHash: %w", err)
	}
	return hashWithDomain(DomainResponse, canonical), nil
}
