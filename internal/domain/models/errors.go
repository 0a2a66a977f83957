package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the record does not exist under the caller's owner.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount indicates a missing, zero or negative amount where the
	// flow requires a positive one.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPeriod indicates malformed or inverted period bounds.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidRequest indicates a request shape the operation does not accept.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPeriodConflict indicates the requested period overlaps an existing
	// settlement of the same counterparty.
	ErrPeriodConflict = errors.New("period conflict")
	// ErrItemSettled indicates an attempt to change a paid line item or a
	// settled advance.
	ErrItemSettled = errors.New("already settled")
	// ErrConcurrentUpdate indicates the data changed between read and commit.
	ErrConcurrentUpdate = errors.New("concurrent update")
	// ErrLockUnavailable indicates the counterparty lock could not be taken in time.
	ErrLockUnavailable = errors.New("counterparty is busy")
	// ErrPersistence indicates a store write failed; nothing was committed.
	ErrPersistence = errors.New("persistence failure")
)

// PeriodConflictError lists the settlement periods a request collides with.
type PeriodConflictError struct {
	Requested Window
	Conflicts []ConflictingPeriod
	Location  *time.Location
}

// ConflictingPeriod identifies one existing settlement whose period overlaps.
type ConflictingPeriod struct {
	SettlementID string    `json:"settlementId"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

func (e *PeriodConflictError) Error() string {
	loc := locOrUTC(e.Location)
	ranges := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ranges = append(ranges, fmt.Sprintf("%s to %s", c.Start.In(loc).Format(DayLayout), c.End.In(loc).Format(DayLayout)))
	}
	requested := ""
	if e.Requested.Complete() {
		requested = fmt.Sprintf(" %s to %s", e.Requested.From.In(loc).Format(DayLayout), e.Requested.To.In(loc).Format(DayLayout))
	}
	return fmt.Sprintf("%s: requested period%s overlaps settled periods %s",
		ErrPeriodConflict, requested, strings.Join(ranges, ", "))
}

// Is lets errors.Is match ErrPeriodConflict.
func (e *PeriodConflictError) Is(target error) bool {
	return target == ErrPeriodConflict
}
