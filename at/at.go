package at

import "time"

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = ">"

	// Response Codes
	OK        = "OK"
	ERROR     = "ERROR"
	CmeError  = "+CME ERROR:"
	CmsError  = "+CMS ERROR:"
	NoCarrier = "NO CARRIER"

	// Markers checked by substring against a whole response buffer. They
	// carry the response prefix so that "NOT READY", "DEACTIVE" or a digit
	// inside an echo cannot match.
	MarkerReady    = "+CPIN: READY"
	MarkerActive   = ",ACTIVE"
	MarkerAttached = "+CGATT: 1"
	MarkerSession  = "+SHSTATE: 1"

	// Response prefixes
	PrefixSignal  = "+CSQ:"
	PrefixAPN     = "+CGNAPN:"
	PrefixRequest = "+SHREQ:"
	PrefixRead    = "+SHREAD:"
	PrefixPDP     = "+APP PDP:"
)

// DefaultTimeout is the response window used when a Command does not set one.
const DefaultTimeout = 1500 * time.Millisecond

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // body input prompt
	TypeEcho                       // command echoed back while ATE1 is active
)

// Command is a single AT exchange: the literal line to send, the marker
// whose presence signals success and the response window.
type Command struct {
	Line    string
	Marker  string
	Timeout time.Duration
	// Drain keeps reading for the whole window even after the marker
	// was seen. Needed where data follows the final result code.
	Drain bool
	// NoRetry limits the command to a single attempt. Used for commands
	// that act on the remote side, where a resend repeats the action.
	NoRetry bool
}

// Outcome classifies an accumulated response buffer.
type Outcome int

const (
	NoResponse Outcome = iota
	ErrorMarker
	Unmatched
	Matched
)

func (o Outcome) String() string {
	switch o {
	case NoResponse:
		return "no-response"
	case ErrorMarker:
		return "error"
	case Unmatched:
		return "unmatched"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Retriable reports whether another attempt may change the outcome.
func (o Outcome) Retriable() bool {
	return o == NoResponse || o == Unmatched
}
