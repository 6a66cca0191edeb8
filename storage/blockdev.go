// Package storage defines the capability a block-based filesystem
// would consume. No filesystem is implemented here, only the contract.
package storage

import "errors"

// ErrOutOfRange is returned when a page index falls outside the
// device's capacity.
var ErrOutOfRange = errors.New("storage: page index out of range")

// BlockDevice is a fixed-size-page block storage capability. Every
// operation works in whole pages; partial-page addressing is a
// filesystem concern, not a device concern.
type BlockDevice interface {
	// PageSize returns the fixed size, in bytes, of one page.
	PageSize() int

	// PageCount returns the total number of addressable pages.
	PageCount() int

	// ReadPage fills dst (which must be PageSize() bytes) from page.
	ReadPage(page int, dst []byte) error

	// WritePage writes src (which must be PageSize() bytes) to page.
	// Implementations that require an erased page before writing
	// return an error if page has not been erased since its last
	// write.
	WritePage(page int, src []byte) error

	// ErasePage resets page to its erased state.
	ErasePage(page int) error

	// Sync flushes any buffered writes to the underlying medium.
	Sync() error
}
