/*
Package fetch assembles rows from the pivots a condition tree
produces. A FetchSpec is an ordered list of Columns; each column names
a key, an optional source preference, and whether it reads the pivot's
own value (Data) or follows the edge to a value stored in an entry
elsewhere keyed by the pivot (Parent). Row values are grouped by
source and restricted to the best-priority source per SPEC's
source-preference resolution; rows identical across every column are
de-duplicated.
*/
package fetch
