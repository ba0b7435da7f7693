package license

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpiryLayout is the calendar date layout used for expiry values.
const ExpiryLayout = "2006-01-02"

// Response is the decoded body returned by the license server.
type Response struct {
	Valid  bool
	Reason string
	Status string
	Expiry string
	Plan   string
	User   string
}

// Verdict describes an accepted serial.
type Verdict struct {
	Serial    string
	Plan      string
	User      string
	Expiry    string
	ExpiresAt time.Time
}

// String renders the confirmation line printed on success.
func (v Verdict) String() string {
	return fmt.Sprintf("[license] OK serial=%s plan=%s user=%s expires=%s",
		v.Serial, orNA(v.Plan), orNA(v.User), v.Expiry)
}

// decodeResponse reads the server body loosely: the server is not trusted to
// send booleans for `valid` or strings for the text fields.
func decodeResponse(body []byte) (Response, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Response{}, err
	}
	if raw == nil {
		return Response{}, fmt.Errorf("response is not a JSON object")
	}
	return Response{
		Valid:  truthy(raw["valid"]),
		Reason: stringField(raw["reason"]),
		Status: stringField(raw["status"]),
		Expiry: truthyString(raw["expiry"]),
		Plan:   stringField(raw["plan"]),
		User:   stringField(raw["user"]),
	}, nil
}

// RejectReason picks the most specific explanation the server gave.
func (r Response) RejectReason() string {
	if r.Reason != "" {
		return r.Reason
	}
	if r.Status != "" {
		return r.Status
	}
	return "unknown reason"
}

// ParseExpiry parses a strict YYYY-MM-DD date as midnight UTC.
func ParseExpiry(value string) (time.Time, error) {
	return time.Parse(ExpiryLayout, value)
}

// Expired reports whether now is past the expiry instant.
func Expired(now, expiresAt time.Time) bool {
	return now.UTC().After(expiresAt)
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}

func stringField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// truthyString treats falsy JSON values (0, false, "") as absent.
func truthyString(v interface{}) string {
	if !truthy(v) {
		return ""
	}
	return stringField(v)
}

func orNA(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}
