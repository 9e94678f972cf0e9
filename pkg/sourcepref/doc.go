/*
Package sourcepref implements source preference: an ordered list of glob
patterns deciding, among several sources that supply a value for the same
key, which one wins.

Priority of a concrete source name is the index of the first pattern
that matches it; a source matching nothing gets the sentinel Worst
priority. Looked-up priorities are memoized per SourcePref instance; the
memo only grows, bounded by the number of distinct source names a
database instance ever sees in practice.

A nil *SourcePref is a legal, meaningful value everywhere a *SourcePref
is accepted: it means "no preference," and every source ties at
priority 0, matching s4_sourcepref_get_priority's behavior for a NULL
sourcepref in the original C library.
*/
package sourcepref
