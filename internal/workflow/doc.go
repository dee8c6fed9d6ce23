// Package workflow advances queue items through the configured pipeline
// stages.
//
// The Manager runs one lane per stage (scripting, rendering, publishing).
// Each lane polls the queue for items in its start status, claims them with
// a unique claim id, and drives the stage handler under a heartbeat. Results
// land only while the claim is still held, so an operator failing an item
// mid-flight discards the in-flight result instead of racing it.
//
// Retryable failures increment the item's stage attempt counter and release
// the claim for a later cycle; once the budget is spent the item fails
// terminally. Validation and data-integrity failures fail the item on the
// first occurrence. Stale claims left behind by a crashed process are
// reclaimed by heartbeat cutoff before each poll.
package workflow
