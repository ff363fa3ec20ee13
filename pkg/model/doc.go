// Package model describes the amplifier models the client can talk to.
//
// A Model carries everything that differs between amplifiers speaking the
// same line protocol: TCP port, zone prefix, the ordered list of input source
// labels and the volume range accepted on the wire. Models are looked up in a
// Catalog. DefaultCatalog is built from an embedded YAML table; hosts with
// other hardware can supply their own table through ParseCatalog.
package model
