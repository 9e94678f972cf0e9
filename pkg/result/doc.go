/*
Package result implements ResultSet and Order: sorting rows fetched by
package fetch. An Order is a sequence of OrderEntry; a column-key entry
compares rows by the lexicographically smallest qualifying cell value
under a comparison mode, while a random entry establishes a seeded,
stable pseudo-random total order by hashing row content together with
the seed (github.com/cespare/xxhash/v2). Sort is stable beyond the
last entry, so ties fall back to fetch order.
*/
package result
