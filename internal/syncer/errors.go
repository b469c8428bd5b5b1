package syncer

import "errors"

var (
	ErrConnectivity   = errors.New("catalog connectivity check failed")
	ErrTransport      = errors.New("catalog fetch failed")
	ErrValidation     = errors.New("invalid catalog record")
	ErrPersistence    = errors.New("inventory write failed")
	ErrAlreadyRunning = errors.New("sync already in progress")
	ErrNotRunning     = errors.New("no sync in progress")
	ErrStaleToken     = errors.New("continuation token does not match current sync")
	ErrNoCatalog      = errors.New("catalog integration not configured")
)
