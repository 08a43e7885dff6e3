package usecase

import "context"

// KeyedLock is exported for testing
type KeyedLock = keyedLock

// NewKeyedLock is exported for testing
var NewKeyedLock = newKeyedLock

// LockKey acquires key on l, exported for testing
func LockKey(ctx context.Context, l *KeyedLock, key string) (func(), error) {
	return l.Lock(ctx, key)
}

// KeyedLockSize returns the number of live entries, exported for testing
func KeyedLockSize(l *KeyedLock) int {
	return l.size()
}
