package surface

// ErrorKind classifies engine load failures.
type ErrorKind int

const (
	ErrOther ErrorKind = iota
	ErrInternetDisconnected
	ErrNameNotResolved
	ErrServiceUnavailable
)

// Chromium net error codes for the transient kinds.
const (
	codeInternetDisconnected = -106
	codeNameNotResolved      = -105
	codeServiceUnavailable   = -501
)

// ErrorKindFromCode maps an engine error code to a kind. Unknown codes are
// ErrOther.
func ErrorKindFromCode(code int) ErrorKind {
	switch code {
	case codeInternetDisconnected:
		return ErrInternetDisconnected
	case codeNameNotResolved:
		return ErrNameNotResolved
	case codeServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return ErrOther
	}
}

// Transient reports whether a load failing this way is worth retrying.
func (k ErrorKind) Transient() bool {
	return k != ErrOther
}

func (k ErrorKind) String() string {
	switch k {
	case ErrInternetDisconnected:
		return "internet-disconnected"
	case ErrNameNotResolved:
		return "name-not-resolved"
	case ErrServiceUnavailable:
		return "service-unavailable"
	default:
		return "other"
	}
}
