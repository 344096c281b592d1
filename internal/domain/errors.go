package domain

import "errors"

var (
	// ErrAccountNotFound means the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPositionNotFound means the referenced position does not exist or is closed.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPositionExists means the account already holds an open position for the symbol.
	ErrPositionExists = errors.New("open position already exists for symbol")

	// ErrInsufficientBalance means the configured notional exceeds the free balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMaxPositions means the account is at its open-position limit.
	ErrMaxPositions = errors.New("max positions reached")

	// ErrScanInProgress means another scan already holds the account lock.
	ErrScanInProgress = errors.New("scan already in progress for account")

	// ErrDataUnavailable means a price or ATR fetch failed for this tick.
	ErrDataUnavailable = errors.New("market data unavailable")
)
