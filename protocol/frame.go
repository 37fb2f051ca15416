// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Query parsing and response validation.

package protocol

import "strings"

// Canned replies.
const (
	ReplyProtocolError = "ko:Protocol error.\x00"
	ReplyDetached      = "ko:Service is detached.\x00"
)

// SplitQuery separates a query of the form <name>[:<params>] into its name
// and parameters. Only the first ':' separates; params is empty when there is
// no separator or nothing follows it.
func SplitQuery(query string) (name, params string) {
	sep := strings.IndexByte(query, ':')
	if sep == -1 {
		return query, ""
	}
	return query[:sep], query[sep+1:]
}

// Violation classifies a malformed response.
type Violation int

const (
	ViolationNone Violation = iota
	// ViolationEmpty: the listener returned nothing; the reply is replaced.
	ViolationEmpty
	// ViolationUnterminated: the reply lacks the trailing NUL; it is sent as is.
	ViolationUnterminated
)

func (v Violation) String() string {
	switch v {
	case ViolationEmpty:
		return "empty_response"
	case ViolationUnterminated:
		return "missing_terminator"
	default:
		return "none"
	}
}

// CheckResponse returns the reply that must be transmitted for resp along
// with the violation found, if any. Empty responses become
// ReplyProtocolError.
func CheckResponse(resp string) (string, Violation) {
	if resp == "" {
		return ReplyProtocolError, ViolationEmpty
	}
	if !HasTerminator(resp) {
		return resp, ViolationUnterminated
	}
	return resp, ViolationNone
}
