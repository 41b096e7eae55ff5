// Package codec encodes the map-valued statement columns (language maps and
// result extensions) into a portable, versioned text format.
//
// Every stored value is an RFC 8785 canonical JSON envelope:
//
//	{"data":<value>,"v":1}
//
// The envelope makes the format self-describing so that a future encoding can
// be introduced without guessing at old rows. Canonical JSON keeps the column
// bytes stable for identical input, which keeps golden files and equality
// checks on raw columns meaningful.
package codec
