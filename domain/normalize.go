package domain

import (
	"sort"
	"strings"
	"time"
)

// NormalizeAddress is the single point of truth for address equality.
// Every address comparison and every persisted owner field must go through
// it, else owner-lookup joins silently miss.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidAddress reports whether the string looks like a ledger address.
// The check is deliberately shallow: a 0x prefix and hex payload. Full
// checksum validation belongs to the wallet, not the backend.
func ValidAddress(address string) bool {
	a := NormalizeAddress(address)
	if len(a) < 3 || !strings.HasPrefix(a, "0x") {
		return false
	}
	for _, c := range a[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// TimelineEntries orders history entries ascending by timestamp. The sort
// is stable: entries sharing a timestamp keep the order the source emitted
// them in. The input slice is not modified.
func TimelineEntries(entries []HistoryEntry) []HistoryEntry {
	if len(entries) == 0 {
		return []HistoryEntry{}
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// EpochToTime converts ledger seconds-since-epoch to a UTC time.
func EpochToTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// TimeToEpoch converts a time to ledger seconds-since-epoch. Sub-second
// components are truncated; the round trip is lossless at second
// granularity.
func TimeToEpoch(t time.Time) int64 {
	return t.Unix()
}
