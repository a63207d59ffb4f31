package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrEmptyWords     = fmt.Errorf("no words have been found")
	ErrReservedMarker = fmt.Errorf("nickname contains the reserved marker")
	ErrNameExhausted  = fmt.Errorf("no free generated nickname")
	ErrSinkClosed     = fmt.Errorf("sink closed")
	ErrSinkFull       = fmt.Errorf("sink buffer full")
	ErrLineTooLong    = fmt.Errorf("line exceeds maximum length")
	ErrEmptyHandshake = fmt.Errorf("empty identity handshake")
)
