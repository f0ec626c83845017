package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Codes is the ordered set of message codes a sensor reading maps onto.
// The first digit selects a category and the second a level.
var Codes = [...]string{
	"00",
	"10", "11", "12", "13", "14", "15",
	"21", "22", "23", "24", "25",
	"31", "32", "33", "34", "35",
	"41", "42", "43", "44", "45",
	"51", "52", "53", "54", "55",
}

// Normalize maps a reading onto Codes, spreading the full scale evenly
// with truncation so that only 65535 selects the last code.
func Normalize(reading uint16) string {
	i := int(uint64(reading) * uint64(len(Codes)-1) / 65535)
	return Codes[i]
}

// sendPayload is the body posted to /post-msg/.
func sendPayload(code string) ([]byte, error) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, fmt.Errorf("code %q: %w", code, err)
	}
	return json.Marshal(struct {
		Msg int `json:"msg"`
	}{Msg: n})
}

var errNoObject = errors.New("no JSON object in reply")

// ExtractText returns text_msg from a relay reply. The reply may carry
// bytes around the JSON object, so only the span from the first '{' to
// the last '}' is decoded.
func ExtractText(body []byte) (string, error) {
	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return "", errNoObject
	}

	var reply struct {
		TextMsg *string `json:"text_msg"`
	}
	if err := json.Unmarshal(body[start:end+1], &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if reply.TextMsg == nil {
		return "", fmt.Errorf("decode reply: text_msg missing")
	}
	return *reply.TextMsg, nil
}
