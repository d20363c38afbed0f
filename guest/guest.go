package guest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/log"
	"github.com/reglet-dev/scriptnet/transport"
)

// Callback receives the outcome of one request.
type Callback func(hostfuncs.HTTPCallback)

// hostCall invokes a host function and returns its reply. The wasip1 build
// wires it to the imported functions.
var hostCall = func(fn string, payload []byte) []byte {
	panic("scriptnet host function " + fn + " is only available under wasip1")
}

// hostLog sends one record to log_message.
var hostLog = func(payload []byte) {}

var callbacks = struct {
	sync.Mutex
	byName map[string]Callback
	next   uint64
}{byName: make(map[string]Callback)}

// HostError is a structured error returned by a host function.
type HostError struct {
	Response hostfuncs.ErrorResponse
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s", e.Response.Error, e.Response.Message)
}

// Fetch enqueues req on the host transport and registers cb for its result.
// An empty req.Callback gets a generated name. Admission failures (bad
// request, rate limit, full table) return a *HostError and cb is dropped.
func Fetch(req hostfuncs.HTTPRequest, cb Callback) (uint64, error) {
	callbacks.Lock()
	if req.Callback == "" {
		callbacks.next++
		req.Callback = fmt.Sprintf("cb-%d", callbacks.next)
	}
	if _, taken := callbacks.byName[req.Callback]; taken {
		callbacks.Unlock()
		return 0, fmt.Errorf("callback %q is already waiting", req.Callback)
	}
	callbacks.byName[req.Callback] = cb
	callbacks.Unlock()

	var resp hostfuncs.HTTPRequestResponse
	if err := invoke("http_request", req, &resp); err != nil {
		callbacks.Lock()
		delete(callbacks.byName, req.Callback)
		callbacks.Unlock()
		return 0, err
	}
	return resp.ID, nil
}

// Stats returns the host transport counters.
func Stats() (transport.Stats, error) {
	var stats transport.Stats
	err := invoke("http_stats", hostfuncs.HTTPStatsRequest{}, &stats)
	return stats, err
}

// CheckSSRF asks the host whether address may be contacted.
func CheckSSRF(address string) (hostfuncs.SSRFCheckResponse, error) {
	var resp hostfuncs.SSRFCheckResponse
	err := invoke("ssrf_check", hostfuncs.SSRFCheckRequest{Address: address}, &resp)
	return resp, err
}

// Waiting returns the number of callbacks not yet delivered.
func Waiting() int {
	callbacks.Lock()
	defer callbacks.Unlock()
	return len(callbacks.byName)
}

// Deliver routes one on_http_response payload to its callback. Each
// callback runs at most once.
func Deliver(payload []byte) error {
	var cb hostfuncs.HTTPCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return fmt.Errorf("failed to decode callback: %w", err)
	}

	callbacks.Lock()
	fn, ok := callbacks.byName[cb.Callback]
	delete(callbacks.byName, cb.Callback)
	callbacks.Unlock()

	if !ok {
		return fmt.Errorf("no callback named %q", cb.Callback)
	}
	fn(cb)
	return nil
}

// Log sends a record to the host logger. attrs alternate key and value.
func Log(level, msg string, attrs ...any) {
	rec := log.LogMessageWire{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		rec.Attrs = append(rec.Attrs, wireAttr(fmt.Sprint(attrs[i]), attrs[i+1]))
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	hostLog(payload)
}

func wireAttr(key string, v any) log.LogAttrWire {
	switch val := v.(type) {
	case string:
		return log.LogAttrWire{Key: key, Type: "string", Value: val}
	case int:
		return log.LogAttrWire{Key: key, Type: "int64", Value: fmt.Sprint(val)}
	case int64:
		return log.LogAttrWire{Key: key, Type: "int64", Value: fmt.Sprint(val)}
	case uint64:
		return log.LogAttrWire{Key: key, Type: "uint64", Value: fmt.Sprint(val)}
	case bool:
		return log.LogAttrWire{Key: key, Type: "bool", Value: fmt.Sprint(val)}
	case float64:
		return log.LogAttrWire{Key: key, Type: "float64", Value: fmt.Sprint(val)}
	case time.Duration:
		return log.LogAttrWire{Key: key, Type: "duration", Value: val.String()}
	case error:
		return log.LogAttrWire{Key: key, Type: "error", Value: val.Error()}
	}
	if b, err := json.Marshal(v); err == nil {
		return log.LogAttrWire{Key: key, Type: "json", Value: string(b)}
	}
	return log.LogAttrWire{Key: key, Type: "any", Value: fmt.Sprint(v)}
}

// invoke marshals req, calls fn and decodes the reply into out, turning an
// ErrorResponse reply into a *HostError.
func invoke(fn string, req, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", fn, err)
	}
	reply := hostCall(fn, payload)
	if len(reply) == 0 {
		return fmt.Errorf("%s: empty reply from host", fn)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(reply, &envelope); err == nil && envelope.Error != "" {
		var hostErr HostError
		if err := json.Unmarshal(reply, &hostErr.Response); err != nil {
			return fmt.Errorf("%s: failed to decode error: %w", fn, err)
		}
		return &hostErr
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("%s: failed to decode reply: %w", fn, err)
	}
	return nil
}
