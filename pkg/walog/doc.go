/*
Package walog implements the durable side of a database: an
append-only, type-tagged redo log (mirroring the original library's
midb_log record layout of type tag then payload) plus a bbolt-backed
snapshot format for the state the log replays into.

Records are buffered by a wrapping transaction and only take effect on
replay once a COMMIT record for them has been read; a trailing run of
records with no COMMIT — the tail of a crash mid-write — is discarded.
A Sync call writes a fresh snapshot of the current state and truncates
the log, bounding replay time to "since the last sync" rather than
"since the database was created."
*/
package walog
