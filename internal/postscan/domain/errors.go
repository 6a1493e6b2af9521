package domain

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid_post_types")
	ErrScanNotRunning = errors.New("scan_not_running")
	ErrScanLocked     = errors.New("scan_locked")
)
