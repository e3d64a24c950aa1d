package errx

// HTTPErrorResponse is the wire shape of an error returned to callers.
// It never carries the underlying cause.
type HTTPErrorResponse struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Type       string                 `json:"type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"status_code"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Code:       e.Code,
		Message:    e.Message,
		Type:       string(e.Type),
		Details:    e.Details,
		StatusCode: e.HTTPStatus,
	}
}

// FromHTTPResponse rebuilds an Error received from a downstream service.
// Registered codes keep their registry identity so IsCode works across
// process boundaries.
func FromHTTPResponse(resp HTTPErrorResponse, registries ...*Registry) *Error {
	for _, r := range registries {
		if code, ok := r.Lookup(resp.Code); ok {
			e := r.NewWithMessage(code, resp.Message)
			return e.WithDetails(resp.Details)
		}
	}

	errType := Type(resp.Type)
	switch {
	case errType != "":
	case resp.StatusCode != 0:
		errType = TypeForStatus(resp.StatusCode)
	default:
		errType = TypeExternal
	}
	status := resp.StatusCode
	if status == 0 {
		status = errType.HTTPStatus()
	}
	details := resp.Details
	if details == nil {
		details = make(map[string]interface{})
	}
	return &Error{
		Code:       resp.Code,
		Message:    resp.Message,
		Type:       errType,
		HTTPStatus: status,
		Details:    details,
	}
}
