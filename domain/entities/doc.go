// Package entities holds the plain data types shared by the transport, the
// script bindings and the hosts: requests, descriptors, responses, limits
// and the structured error detail.
package entities
