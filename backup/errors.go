package backup

import "errors"

var (
	// ErrCatalogRequired indicates a nil catalog repository was provided.
	ErrCatalogRequired = errors.New("catalog repository is required")

	// ErrTagStoreRequired indicates a nil tag repository was provided.
	ErrTagStoreRequired = errors.New("tag repository is required")

	// ErrDigestMismatch indicates a backup file does not match its manifest.
	ErrDigestMismatch = errors.New("backup digest does not match manifest")
)
