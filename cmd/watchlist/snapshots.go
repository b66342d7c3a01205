package main

import "quotewatch/internal/quote"

// snapshots returns the stored quotes in watchlist order.
func snapshots(s *session) []quote.Snapshot {
	entries := s.list.Entries()
	out := make([]quote.Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.Snapshot
	}
	return out
}
