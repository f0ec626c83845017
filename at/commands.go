package at

import (
	"fmt"
	"time"
)

// SIM7080 command surface.
const (
	CmdAt             = "AT"
	CmdEchoOn         = "ATE1"
	CmdRadioOff       = "AT+CFUN=0"
	CmdRadioOn        = "AT+CFUN=1"
	CmdModeLTE        = "AT+CNMP=38"
	CmdModeNBIoT      = "AT+CMNB=1"
	CmdBandConfig     = "AT+CBANDCFG?"
	CmdSimStatus      = "AT+CPIN?"
	CmdAttachStatus   = "AT+CGATT?"
	CmdSignalQuality  = "AT+CSQ"
	CmdSystemInfo     = "AT+CPSI?"
	CmdOperator       = "AT+COPS?"
	CmdNetworkAPN     = "AT+CGNAPN"
	CmdActivatePDP    = "AT+CNACT=0,1"
	CmdHTTPDisconnect = "AT+SHDISC"
	CmdHTTPConnect    = "AT+SHCONN"
	CmdHTTPState      = "AT+SHSTATE?"
	CmdHTTPClearHead  = "AT+SHCHEAD"
)

// HTTP methods understood by AT+SHREQ.
const (
	MethodGet  = 1
	MethodPost = 3
)

// HeaderLen is the fixed header budget announced before every request.
const HeaderLen = 350

// BodyWriteTimeout is the window announced to the modem for receiving a
// request body after AT+SHBOD.
const BodyWriteTimeout = 10 * time.Second

// Header is one fixed request header set through AT+SHAHEAD.
type Header struct {
	Key   string
	Value string
}

// DefaultHeaders are sent with every request.
var DefaultHeaders = []Header{
	{Key: "Content-Type", Value: "application/json"},
	{Key: "Cache-control", Value: "no-cache"},
	{Key: "Connection", Value: "keep-alive"},
	{Key: "Accept", Value: "*/*"},
}

func SetPDPContext(apn string) string {
	return fmt.Sprintf(`AT+CGDCONT=1,"IPV4V6","%s"`, apn)
}

func ConfigureAPN(apn string) string {
	return fmt.Sprintf(`AT+CNCFG=0,1,"%s"`, apn)
}

func SetURL(url string) string {
	return fmt.Sprintf(`AT+SHCONF="URL","%s"`, url)
}

func SetBodyLen(n int) string {
	return fmt.Sprintf(`AT+SHCONF="BODYLEN",%d`, n)
}

func SetHeaderLen(n int) string {
	return fmt.Sprintf(`AT+SHCONF="HEADERLEN",%d`, n)
}

func AddHeader(h Header) string {
	return fmt.Sprintf(`AT+SHAHEAD="%s","%s"`, h.Key, h.Value)
}

func Request(path string, method int) string {
	return fmt.Sprintf(`AT+SHREQ="%s",%d`, path, method)
}

func SetBody(n int, window time.Duration) string {
	return fmt.Sprintf("AT+SHBOD=%d,%d", n, window.Milliseconds())
}

func Read(offset, n int) string {
	return fmt.Sprintf("AT+SHREAD=%d,%d", offset, n)
}
