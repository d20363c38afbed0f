//go:build wasip1

package guest

import "github.com/reglet-dev/scriptnet/internal/abi"

//go:wasmimport scriptnet_host http_request
func hostHTTPRequest(packed uint64) uint64

//go:wasmimport scriptnet_host http_stats
func hostHTTPStats(packed uint64) uint64

//go:wasmimport scriptnet_host ssrf_check
func hostSSRFCheck(packed uint64) uint64

//go:wasmimport scriptnet_host log_message
func hostLogMessage(packed uint64)

func init() {
	hostCall = callHost
	hostLog = func(payload []byte) {
		in := abi.PtrFromBytes(payload)
		defer abi.DeallocatePacked(in)
		hostLogMessage(in)
	}
}

func callHost(fn string, payload []byte) []byte {
	in := abi.PtrFromBytes(payload)
	defer abi.DeallocatePacked(in)

	var out uint64
	switch fn {
	case "http_request":
		out = hostHTTPRequest(in)
	case "http_stats":
		out = hostHTTPStats(in)
	case "ssrf_check":
		out = hostSSRFCheck(in)
	default:
		panic("unknown host function " + fn)
	}

	reply := abi.BytesFromPtr(out)
	abi.DeallocatePacked(out)
	return reply
}

// onHTTPResponse receives a callback payload written by the host.
//
//go:wasmexport on_http_response
func onHTTPResponse(ptr, length uint32) {
	packed := abi.PackPtrLen(ptr, length)
	payload := abi.BytesFromPtr(packed)
	abi.DeallocatePacked(packed)
	if err := Deliver(payload); err != nil {
		Log("warn", "callback dropped", "error", err)
	}
}
