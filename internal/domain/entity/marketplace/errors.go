package marketplace

import "errors"

var (
	ErrAlreadyInitialized    = errors.New("marketplace already initialized")
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateListing      = errors.New("listing id already exists")
	ErrListingNotActive      = errors.New("listing is not active")
	ErrInvalidListingID      = errors.New("invalid listing id")
	ErrUnauthorized          = errors.New("unauthorized access")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrTransferFailed        = errors.New("value transfer failed")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidFeeBasisPoints = errors.New("fee basis points exceed 10000")
	ErrInvalidDataType       = errors.New("invalid data type")
	ErrMissingCustomType     = errors.New("custom data type requires a detail string")
)
