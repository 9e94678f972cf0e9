/*
Package value implements s4's typed value: a variant holding either a
UTF-8 string or a 32-bit signed integer.

Strings cache their caseless and collated forms lazily, computed at most
once, via pkg/collate. Comparison happens under one of three modes
(Binary, Caseless, Collate); integers always compare numerically and
never equal a string regardless of mode. Cross-type ordering is fixed:
integers sort before strings (see Compare).
*/
package value
