/*
Package txn implements the transaction manager: begin/commit/abort
around the relation store and its redo log. A transaction buffers its
writes rather than applying them to the shared store; commit appends
the buffer to the log under one COMMIT marker, then applies it to the
store atomically with respect to other committers. Queries run inside
a transaction see committed state overlaid with that transaction's own
still-pending writes, giving snapshot isolation without readers ever
blocking on writers.

Concurrent writers to the same key_a/key_b pair serialize through a
per-pair write intent. A waits-for graph over held and wanted intents
detects cycles; on detection the youngest transaction in the cycle is
aborted to break it, and any operation it attempts afterward reports
errs.Deadlock.
*/
package txn
