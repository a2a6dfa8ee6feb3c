// Package schema checks grid rows against entity rules written in CUE.
//
// A schema file declares entities under the "entity" field. Each entity has
// a Haystack filter ("match") selecting the rows it governs and a CUE
// struct ("rules") that every selected row must unify with:
//
//	entity: equip: {
//		match: "equip"
//		rules: siteRef: =~"^@"
//	}
//
// Rows are presented to CUE as plain data: markers become true, refs
// "@id" strings, numbers float values without their unit, dates and
// times their ISO text, coords {lat, lng} structs and nested dicts,
// lists and grids the matching CUE structs and lists. Rule structs are
// open, so tags the rules do not mention are accepted.
package schema
