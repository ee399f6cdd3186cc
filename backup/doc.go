// Package backup exports and restores record tags.
//
// A backup is a JSON object mapping record IDs to tag names, written next to
// a manifest carrying the record count and a sha256 digest of the RFC 8785
// canonical form. Load rejects a backup whose digest no longer matches.
package backup
