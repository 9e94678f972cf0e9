/*
Package s4 is the top-level façade: Open, Close and Sync a database,
and Begin transactions against it. It wires together the lower
packages — store, walog, txn, cond, fetch and result — the way a host
application uses the library: nothing below this package imports it.

Open understands three flag combinations: NEW requires the database
not already exist, EXISTS requires that it does, and MEMORY skips the
log and on-disk snapshot entirely for a purely in-process database.
Every database, on-disk or in-memory, carries a UUID, generated once
at creation and persisted alongside the snapshot for an on-disk one.
*/
package s4
