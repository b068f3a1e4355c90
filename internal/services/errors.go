package services

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a service operation that is not an
// infrastructure fault wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrStateConflict     = errors.New("state conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Error is a domain failure with a user-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

var (
	ErrPickingNotActive   = &Error{ErrStateConflict, "Picking phase is not active"}
	ErrNotYourTurn        = &Error{ErrStateConflict, "It's not your turn"}
	ErrPlayerTaken        = &Error{ErrStateConflict, "This player is already picked. Each player can only be selected once."}
	ErrStakeAlreadyPlaced = &Error{ErrStateConflict, "You have already placed your bet for this session"}
	ErrBettingNotActive   = &Error{ErrStateConflict, "Betting phase is not active"}
	ErrSessionNotPending  = &Error{ErrStateConflict, "This session is no longer open"}
	ErrSessionFull        = &Error{ErrStateConflict, "This session already has an opponent"}
	ErrActiveSession      = &Error{ErrStateConflict, "You already have an active session for this match"}
	ErrAwaitingOpponent   = &Error{ErrStateConflict, "Waiting for an opponent to join"}
	ErrSessionClosed      = &Error{ErrStateConflict, "Session is already closed"}
	ErrCancelNotAllowed   = &Error{ErrStateConflict, "Session can no longer be cancelled"}
	ErrMatchNotBettable   = &Error{ErrStateConflict, "Match is not open for betting"}
	ErrMatchNotCompleted  = &Error{ErrStateConflict, "Match is not completed yet"}
	ErrBetsIncomplete     = &Error{ErrStateConflict, "Both sides must place their bets before settlement"}
	ErrInviteUnavailable  = &Error{ErrStateConflict, "This invite can no longer be accepted"}
	ErrRequestProcessed   = &Error{ErrStateConflict, "Deposit request is already processed"}

	ErrNotParticipant = &Error{ErrForbidden, "You are not a participant in this session"}
	ErrOwnSession     = &Error{ErrForbidden, "You cannot join your own session"}

	ErrInvalidAmount      = &Error{ErrValidation, "Amount must be greater than zero"}
	ErrInvalidCredentials = &Error{ErrUnauthorized, "Invalid credentials"}
	ErrLowBalance         = &Error{ErrInsufficientFunds, "Insufficient balance"}
)

func notFound(what string) *Error {
	return newError(ErrNotFound, "%s not found", what)
}
