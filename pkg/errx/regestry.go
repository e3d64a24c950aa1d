package errx

import (
	"fmt"
	"strings"
	"sync"
)

// ErrorCode is a registered code. Code holds the full PREFIX_NAME form.
type ErrorCode struct {
	Code       string
	Type       Type
	HTTPStatus int
	Message    string
}

// Registry owns the codes of one module under a common prefix.
type Registry struct {
	prefix string
	codes  map[string]*ErrorCode
	mu     sync.RWMutex
}

func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		codes:  make(map[string]*ErrorCode),
	}
}

// Register adds a code. A zero httpStatus takes the default of errType.
// Registering the same name twice panics, since codes are declared once at
// package init.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.codes[code]; dup {
		panic(fmt.Sprintf("errx: code %s_%s registered twice", r.prefix, code))
	}
	if httpStatus == 0 {
		httpStatus = errType.HTTPStatus()
	}

	ec := &ErrorCode{
		Code:       r.prefix + "_" + code,
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}
	r.codes[code] = ec
	return ec
}

func (r *Registry) New(code *ErrorCode) *Error {
	return build(code, code.Message, nil)
}

func (r *Registry) NewWithMessage(code *ErrorCode, message string) *Error {
	return build(code, message, nil)
}

func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	return build(code, code.Message, cause)
}

func build(code *ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:       code.Code,
		Message:    message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Details:    make(map[string]interface{}),
		Err:        cause,
	}
}

// Get finds a code by its short name.
func (r *Registry) Get(code string) (*ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.codes[code]
	return ec, ok
}

// Lookup finds a code by its full, prefixed name, as received on the wire.
func (r *Registry) Lookup(fullCode string) (*ErrorCode, bool) {
	short, ok := strings.CutPrefix(fullCode, r.prefix+"_")
	if !ok {
		return nil, false
	}
	return r.Get(short)
}
