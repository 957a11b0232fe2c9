package protocol

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultTimeout bounds an operation when the caller does not supply one.
const DefaultTimeout = 300 * time.Second

// Params is the open parameter mapping carried by a request. Values are
// restricted to the JSON union: string, number, bool, nested Params or
// map[string]any, []any, and nil.
type Params map[string]any

// Request is one operation handed to the core.
type Request struct {
	Action      string
	ProjectPath string
	Parameters  Params
	Timeout     time.Duration
}

// EffectiveTimeout returns the request timeout, falling back to DefaultTimeout.
func (r Request) EffectiveTimeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// Command is the single payload written to the editor's standard input.
// Field names follow the bridge's C# property casing.
type Command struct {
	Action     string `json:"Action"`
	Parameters Params `json:"Parameters"`
}

// NewCommand builds the stdin payload for a request. A nil parameter map is
// sent as an empty object so the bridge never sees null.
func NewCommand(req Request) Command {
	params := req.Parameters
	if params == nil {
		params = Params{}
	}
	return Command{Action: req.Action, Parameters: params}
}

// Response is a decoded editor reply. Raw holds the mapping exactly as it
// was decoded from standard output.
type Response struct {
	Success bool
	Data    any
	Error   string
	Raw     map[string]any
}

// ParseResponse interprets a decoded stdout mapping. It reports false when
// the mapping does not have the {"Success": bool, ...} shape the bridge
// promises.
func ParseResponse(raw map[string]any) (Response, bool) {
	if raw == nil {
		return Response{}, false
	}
	success, ok := raw["Success"].(bool)
	if !ok {
		return Response{}, false
	}
	resp := Response{Success: success, Data: raw["Data"], Raw: raw}
	if success {
		return resp, true
	}
	switch e := raw["Error"].(type) {
	case string:
		resp.Error = e
	case nil:
		resp.Error = "editor reported failure without an error message"
	default:
		return Response{}, false
	}
	return resp, true
}

// Envelope is the normalized result shape returned to clients.
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// NewEnvelope converts an editor response into a client envelope.
func NewEnvelope(resp Response) Envelope {
	if resp.Success {
		return Envelope{Success: true, Data: resp.Data}
	}
	msg := resp.Error
	return Envelope{Success: false, Error: &msg}
}

// ErrorEnvelope wraps an error into a failed envelope.
func ErrorEnvelope(err error) Envelope {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Envelope{Success: false, Error: &msg}
}

// ErrorMessage returns the envelope error text, or "" on success.
func (e Envelope) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}

// Validate checks that every value in the mapping belongs to the JSON union.
func (p Params) Validate() error {
	return validateValue("", map[string]any(p))
}

func validateValue(path string, v any) error {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		return checkFinite(path, val)
	case float32:
		return checkFinite(path, float64(val))
	case Params:
		return validateValue(path, map[string]any(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := validateValue(joinPath(path, k), val[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, item := range val {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		return nil
	case []float64:
		for i, f := range val {
			if err := checkFinite(fmt.Sprintf("%s[%d]", path, i), f); err != nil {
				return err
			}
		}
		return nil
	default:
		if path == "" {
			path = "<root>"
		}
		return fmt.Errorf("parameter %s has unsupported type %T", path, v)
	}
}

// JSON has no encoding for NaN or the infinities.
func checkFinite(path string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		if path == "" {
			path = "<root>"
		}
		return fmt.Errorf("parameter %s is not a finite number: %v", path, f)
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Clone returns a deep copy of a JSON-shaped value.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case Params:
		out := make(Params, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	default:
		return v
	}
}

// CloneMap deep-copies a decoded mapping; nil stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Clone(m).(map[string]any)
}
