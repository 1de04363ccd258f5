// Package codec converts application values to and from the XML-RPC value
// tree.
//
// Mapping rules:
// - integers inside the signed 32-bit range become Int, wider magnitudes
//   travel as decimal String and are parsed back by integer targets
// - pointers are optionals: nil is an empty Array, non-nil a one-element Array
// - structs with no exported fields are units and map to an empty Struct
// - types implementing Variant are enums: a Struct with one member named
//   after the variant
// - map keys must encode to Bool, Int, Double or String and travel as text
//
// Struct fields honor `xmlrpc:"name,omitempty"` tags; "-" skips a field.
package codec
