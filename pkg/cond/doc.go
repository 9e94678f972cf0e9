/*
Package cond implements condition trees: the boolean predicates a query
evaluates against stored entries. A tree is built from two node kinds,
Filter (a leaf predicate against one key) and Combiner (AND/OR/NOT/CUSTOM
over child conditions), and is bound to a store once via Bind so that
key names resolve to a particular store's interned ids before
evaluation — ids are not assumed stable across opens.
*/
package cond
