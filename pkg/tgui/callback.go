package tgui

import (
	"errors"
	"strings"
)

// MaxDataLen is Telegram's callback_data limit in bytes.
const MaxDataLen = 64

var ErrDataTooLong = errors.New("tgui: callback data too long")

// Data formats callback data as "ns:action" or "ns:action:payload".
func Data(ns, action, payload string) string {
	ns = strings.TrimSpace(ns)
	action = strings.TrimSpace(action)
	if payload == "" {
		return ns + ":" + action
	}
	return ns + ":" + action + ":" + payload
}

// CheckedData is Data that fails when the result exceeds MaxDataLen.
func CheckedData(ns, action, payload string) (string, error) {
	d := Data(ns, action, payload)
	if len(d) > MaxDataLen {
		return "", ErrDataTooLong
	}
	return d, nil
}

// ParseData splits callback data produced by Data. The payload may itself
// contain ':'.
func ParseData(data string) (ns, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}
