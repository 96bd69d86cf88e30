// Package types defines the schema model, the Record type, the Persister
// interface, configuration, and the standard error values shared by the
// record store, its persistence backends, and the CLI.
//
// A Schema declares the entity kinds of one record-keeping system (college,
// hospital, hotel, library, school). Records are flat, ordered sets of
// named scalar fields whose types come from the schema.
package types
