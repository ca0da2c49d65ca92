package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrNotClaimed is returned when an atomic single-use claim finds
	// no unused, unexpired record: already redeemed, expired, or never
	// issued. Callers must not distinguish the three.
	ErrNotClaimed = errors.New("record already used or expired")
)
