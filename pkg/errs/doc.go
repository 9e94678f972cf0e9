/*
Package errs defines the database's error surface: a fixed set of
named codes (ErrNo) wrapped in an Error carrying the failing operation
and, where applicable, an underlying cause. Callers match a code with
errors.Is against the bare *Error that Sentinel builds.
*/
package errs
