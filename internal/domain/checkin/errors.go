package checkin

import "errors"

var (
	ErrTicketIDRequired  = errors.New("ticket id is required")
	ErrStationIDRequired = errors.New("station id is required")
	ErrEventIDRequired   = errors.New("check-in event id is required")
	ErrInvalidMethod     = errors.New("invalid capture method")

	ErrTicketUnknown   = errors.New("ticket is unknown")
	ErrTicketCancelled = errors.New("ticket is cancelled")

	ErrInvalidJobStatus     = errors.New("invalid badge job status")
	ErrInvalidJobTransition = errors.New("invalid badge job transition")
)
