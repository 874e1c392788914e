package todos

import "errors"

var (
	ErrListNameRequired = errors.New("list name is required")
	ErrTitleRequired    = errors.New("todo title is required")
	ErrDuplicateTitle   = errors.New("todo title already exists in list")
	ErrInvalidColor     = errors.New("color is not in palette")
	ErrTodoListNotFound = errors.New("todo list not found")
	ErrIndexOutOfRange  = errors.New("todo index out of range")
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrWriteNotFound    = errors.New("write not found")
	ErrWriteNotFailed   = errors.New("write is not failed")
	ErrUnknownIntent    = errors.New("unknown intent")
)

// IsRejection reports whether err is a validation rejection: the snapshot is
// unchanged and nothing was queued.
func IsRejection(err error) bool {
	return errors.Is(err, ErrListNameRequired) ||
		errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrDuplicateTitle) ||
		errors.Is(err, ErrInvalidColor)
}
