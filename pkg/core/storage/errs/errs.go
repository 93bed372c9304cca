// Package errs implements the closed error taxonomy every public storage
// operation returns from (spec §7). Backends and the registry never panic
// across a public boundary; they wrap a Code into an *Error instead.
package errs

import "fmt"

// Code is the closed set of outcomes a public operation can report.
type Code int

const (
	SUCCESS Code = iota
	NULL_POINTER
	INVALID_ARGUMENT
	ALLOC_FAILED
	NOT_IMPLEMENTED
	BACKEND_REGISTRY_DUPLICATE
	BACKEND_REGISTRY_BACKEND_NOT_FOUND
	STORAGE_HANDLE_UNINITIALIZED
	STORAGE_BACKEND_MISMATCH
	STORAGE_SHAPE_MISMATCH
	STORAGE_LAYOUT_SHAPE_MISMATCH
	STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS
	STORAGE_LAYOUT_NOT_CONTIGUOUS
	STORAGE_REGISTRY_PARENT_NOT_REGISTERED
	STORAGE_REGISTRY_RECORD_NOT_FOUND
)

var names = map[Code]string{
	SUCCESS:                                "SUCCESS",
	NULL_POINTER:                           "NULL_POINTER",
	INVALID_ARGUMENT:                       "INVALID_ARGUMENT",
	ALLOC_FAILED:                           "ALLOC_FAILED",
	NOT_IMPLEMENTED:                        "NOT_IMPLEMENTED",
	BACKEND_REGISTRY_DUPLICATE:             "BACKEND_REGISTRY_DUPLICATE",
	BACKEND_REGISTRY_BACKEND_NOT_FOUND:     "BACKEND_REGISTRY_BACKEND_NOT_FOUND",
	STORAGE_HANDLE_UNINITIALIZED:           "STORAGE_HANDLE_UNINITIALIZED",
	STORAGE_BACKEND_MISMATCH:               "STORAGE_BACKEND_MISMATCH",
	STORAGE_SHAPE_MISMATCH:                 "STORAGE_SHAPE_MISMATCH",
	STORAGE_LAYOUT_SHAPE_MISMATCH:          "STORAGE_LAYOUT_SHAPE_MISMATCH",
	STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS:     "STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS",
	STORAGE_LAYOUT_NOT_CONTIGUOUS:          "STORAGE_LAYOUT_NOT_CONTIGUOUS",
	STORAGE_REGISTRY_PARENT_NOT_REGISTERED: "STORAGE_REGISTRY_PARENT_NOT_REGISTERED",
	STORAGE_REGISTRY_RECORD_NOT_FOUND:      "STORAGE_REGISTRY_RECORD_NOT_FOUND",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error pairs a closed Code with the underlying cause, if any.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error carrying code with a plain message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf builds an *Error carrying code with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying code around an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the Code from err, walking Unwrap chains. Foreign errors
// (not produced by this package) resolve to INVALID_ARGUMENT since callers
// outside the taxonomy have no other closed-set answer to give. nil resolves
// to SUCCESS.
func CodeOf(err error) Code {
	if err == nil {
		return SUCCESS
	}
	for e := err; e != nil; {
		if se, ok := e.(*Error); ok {
			return se.Code
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return INVALID_ARGUMENT
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
