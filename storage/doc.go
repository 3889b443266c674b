// Package storage persists the users recorded after successful runs. The
// UserLog interface has two implementations: a JSON array file, which is the
// format other tooling reads, and a BadgerDB store for suites that run several
// processes against the same log.
package storage
