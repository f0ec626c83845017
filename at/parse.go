package at

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingField is returned when an expected field is absent from a
// response buffer.
var ErrMissingField = errors.New("field not found in response")

// ParseReplyLength extracts the payload length the modem reports once a
// request completes, e.g. `+SHREQ: "GET",200,387`. The field is the
// digit run following the last comma of the response; anything after it
// (line terminators, a trailing result code) is ignored.
func ParseReplyLength(resp string) (int, error) {
	i := strings.LastIndexByte(resp, ',')
	if i < 0 {
		return 0, fmt.Errorf("reply length: %w", ErrMissingField)
	}
	field := strings.TrimLeft(resp[i+1:], " ")
	end := 0
	for end < len(field) && field[end] >= '0' && field[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("reply length in %q: %w", resp[i+1:], ErrMissingField)
	}
	n, err := strconv.Atoi(field[:end])
	if err != nil {
		return 0, fmt.Errorf("reply length: %w", err)
	}
	return n, nil
}

// ParseRequestReply returns the reply length of the +SHREQ line in an
// AT+SHREQ response. Commas elsewhere in the buffer, such as the one in
// the echoed command, are never considered.
func ParseRequestReply(resp []byte) (int, error) {
	for _, line := range Lines(resp) {
		if strings.HasPrefix(line, PrefixRequest) {
			return ParseReplyLength(line)
		}
	}
	return 0, fmt.Errorf("request reply: %w", ErrMissingField)
}

// ExtractAPN returns the text between the first and the last double quote
// of an AT+CGNAPN response. ok is false when fewer than two quotes are
// present or nothing sits between them.
func ExtractAPN(resp string) (apn string, ok bool) {
	first := strings.IndexByte(resp, '"')
	last := strings.LastIndexByte(resp, '"')
	if first < 0 || last <= first {
		return "", false
	}
	apn = resp[first+1 : last]
	return apn, apn != ""
}

// ParseSignalQuality parses the rssi and ber values of an AT+CSQ response.
func ParseSignalQuality(resp []byte) (rssi, ber int, err error) {
	for _, line := range Lines(resp) {
		if !strings.HasPrefix(line, PrefixSignal) {
			continue
		}
		fields := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, PrefixSignal)), ",")
		if len(fields) != 2 {
			break
		}
		if rssi, err = strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
			return 0, 0, fmt.Errorf("signal rssi: %w", err)
		}
		if ber, err = strconv.Atoi(strings.TrimSpace(fields[1])); err != nil {
			return 0, 0, fmt.Errorf("signal ber: %w", err)
		}
		return rssi, ber, nil
	}
	return 0, 0, fmt.Errorf("signal quality: %w", ErrMissingField)
}

// ParseReadBody returns at most n payload bytes following the +SHREAD
// header line of an AT+SHREAD response.
func ParseReadBody(resp []byte, n int) ([]byte, bool) {
	i := bytes.Index(resp, []byte(PrefixRead))
	if i < 0 {
		return nil, false
	}
	rest := resp[i:]
	j := bytes.Index(rest, []byte(CRLF))
	if j < 0 {
		return nil, false
	}
	body := rest[j+len(CRLF):]
	if len(body) > n {
		body = body[:n]
	}
	return body, true
}
