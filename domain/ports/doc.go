// Package ports defines the interfaces between the transport core and the
// things it does not own: the asynchronous I/O backend that moves bytes and
// the host that turns a callback token into a script call.
package ports
