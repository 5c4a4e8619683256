package dai

import "errors"

// Usage and upstream errors, surfaced through a reference's future.
var (
	ErrTargetRejected  = errors.New("target object was rejected and cannot be used for calls")
	ErrTargetDestroyed = errors.New("target object was destroyed and cannot be used for calls")
	ErrTargetNotSent   = errors.New("target of the call was rejected and call cannot be sent")
	ErrNotResource     = errors.New("target of the call is not a resource")
	ErrInvalidDestroy  = errors.New("invalid or already destroyed target")
	ErrHandlerNotFound = errors.New("request handler is not registered")
	ErrHandlerPanic    = errors.New("request handler panicked")
)

// Configuration errors, returned when handlers are registered.
var (
	ErrDuplicateName     = errors.New("command names should be unique")
	ErrReservedName      = errors.New("command name is reserved")
	ErrReservedCommand   = errors.New("command type is reserved")
	ErrMissingStructural = errors.New("structural handler should be set")
	ErrInvalidHandlers   = errors.New("invalid handler collection")
)

var errIdentityUnknown = errors.New("reference identity is not known yet")
