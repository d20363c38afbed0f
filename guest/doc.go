// Package guest is the plugin side of the scriptnet host ABI. A Go plugin
// built with GOOS=wasip1 -buildmode=c-shared calls Fetch to issue requests;
// the host later delivers each result to the plugin's on_http_response
// export, which this package provides and routes to the Callback given to
// Fetch.
//
// Outside wasip1 the host functions are unavailable and calls panic.
package guest
