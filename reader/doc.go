// Package reader keeps a local view of other users' presence. It answers
// one-shot reads through the query layer, follows a change feed for a set of
// user ids and derives display values ("active now", "5 minutes ago", a
// status color) with a freshness window of its own. A status of online is a
// claim; the reader only trusts it while last_seen_at is recent.
package reader
