package errors

import "fmt"

var (
	ErrValidation   = fmt.Errorf("validation failed")
	ErrSlotConflict = fmt.Errorf("slot already booked")
	ErrNotFound     = fmt.Errorf("not found")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrStaleState   = fmt.Errorf("transition invalid for current status")
	ErrWorkerPanic  = fmt.Errorf("worker panic")
)
