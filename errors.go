package soundbank

import "errors"

var (
	ErrNotFound     = errors.New("soundbank: not found")
	ErrBusy         = errors.New("soundbank: synchronization in progress")
	ErrNoSource     = errors.New("soundbank: no source configured")
	ErrHashMismatch = errors.New("soundbank: content hash mismatch")
	ErrDecode       = errors.New("soundbank: cannot decode clip")
	ErrClosed       = errors.New("soundbank: bank closed")
)
