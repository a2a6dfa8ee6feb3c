// Package codec reads and writes grids in the three Haystack text formats.
//
// Zinc is the compact row-oriented format and the only one that carries
// every value kind and all metadata natively. JSON follows the Haystack 3
// JSON encoding, where scalars other than booleans and null are strings
// tagged with a kind prefix such as "n:" or "r:". CSV keeps only column
// names and cells: complex values travel as quoted zinc text.
//
// Encoders refuse values that the grid's version cannot carry (NA, lists,
// dicts and nested grids need 3.0). Decoders report malformed input as a
// *ParseError with a line and column.
package codec
