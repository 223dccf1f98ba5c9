package service

import "errors"

var (
	// ErrInsufficientFunds is returned when the balance does not cover the wager cost
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBankNotFound is returned when a game has no bank mapping
	ErrBankNotFound = errors.New("bank not found")

	// ErrConfiguration is returned for operator-side misconfiguration
	ErrConfiguration = errors.New("configuration error")

	ErrRoundAlreadyActive  = errors.New("round already active")
	ErrNoActiveRound       = errors.New("no active round")
	ErrCellAlreadyRevealed = errors.New("cell already revealed")
	ErrCannotCashout       = errors.New("cannot cashout")

	// ErrExternalProvider wraps any failed or rejected slot provider call
	ErrExternalProvider = errors.New("external provider error")

	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateRequest = errors.New("duplicate request")
)
