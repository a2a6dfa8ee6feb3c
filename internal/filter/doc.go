// Package filter implements the Haystack filter language.
//
//	filter  := or
//	or      := and ("or" and)*
//	and     := term ("and" term)*
//	term    := "(" filter ")" | "not" path | path op value | path
//	op      := "==" | "!=" | "<" | "<=" | ">" | ">="
//	path    := name ("->" name)*
//
// Values are zinc scalars plus the words true and false. A path that
// cannot be resolved, because a tag is absent or a ref does not lead to a
// row of the grid, makes every comparison false; "path" alone tests that
// it resolves and "not path" that it does not.
//
// Parsed filters and compiled predicates are kept in process-wide LRU
// caches keyed by filter text.
package filter
