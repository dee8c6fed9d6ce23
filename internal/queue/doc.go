// Package queue persists content items and their execution history in
// SQLite. It is the single source of truth for item state: status
// transitions, claim ownership, pause flags, retry bookkeeping, and the
// append-only stage run audit all live here.
package queue
