package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the body input prompt (">").
//
// The modem runs with echo enabled (ATE1), so the first token of a
// response is usually the command itself, terminated by "\r\r\n". The
// stray CR stays part of the token; Lines strips it.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match body prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Lines splits a raw response buffer into its non-empty lines.
func Lines(buf []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 1024), len(buf)+len(CRLF))
	scanner.Split(Splitter)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, PrefixPDP), strings.HasPrefix(line, PrefixRequest):
		return TypeURC
	case strings.HasPrefix(line, "AT"):
		return TypeEcho
	default:
		return TypeData
	}
}

// Evaluate classifies a whole response buffer against the expected marker.
// Matching is by substring: the marker wins over an ERROR result code
// present in the same buffer.
func Evaluate(buf []byte, marker string) Outcome {
	switch {
	case len(buf) == 0:
		return NoResponse
	case bytes.Contains(buf, []byte(marker)):
		return Matched
	case bytes.Contains(buf, []byte(ERROR)):
		return ErrorMarker
	default:
		return Unmatched
	}
}

// Settled reports whether a response that already contains the marker has
// reached a point where no more bytes are expected: the body input prompt,
// or complete lines including a final result code.
func Settled(buf []byte, marker string) bool {
	if !bytes.Contains(buf, []byte(marker)) {
		return false
	}
	if marker == Prompt {
		return true
	}
	if !bytes.HasSuffix(buf, []byte(CRLF)) {
		return false
	}
	for _, line := range Lines(buf) {
		if Classify(line) == TypeFinal {
			return true
		}
	}
	return false
}

// Rejected reports whether a complete response carries an error result
// code, after which the modem sends nothing more for the command.
func Rejected(buf []byte) bool {
	if !bytes.HasSuffix(buf, []byte(CRLF)) {
		return false
	}
	for _, line := range Lines(buf) {
		if line == ERROR || strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError) {
			return true
		}
	}
	return false
}
