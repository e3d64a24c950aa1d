package httpx

import (
	"context"
	"errors"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

const RequestIDHeader = "X-Request-ID"

// RequestContext copies the request id set by the requestid middleware into
// the user context, where services and log entries pick it up.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals("requestid").(string)
		if id == "" {
			id = c.Get(RequestIDHeader)
		}
		ctx := c.UserContext()
		if id != "" {
			ctx = context.WithValue(ctx, kernel.RequestIDKey, id)
			ctx = logx.ContextWithFields(ctx, logx.Fields{"request_id": id})
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(RequestIDHeader)
}

// ErrorHandler renders every error as an errx.HTTPErrorResponse. Causes are
// only exposed when debug is set; stack traces never are.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var resp errx.HTTPErrorResponse

		var fe *fiber.Error
		var xe *errx.Error
		switch {
		case errors.As(err, &xe):
			resp = xe.ToHTTPResponse()
			if debug && xe.Err != nil {
				if resp.Details == nil {
					resp.Details = map[string]interface{}{}
				}
				resp.Details["underlying_error"] = xe.Err.Error()
			}
		case errors.As(err, &fe):
			resp = errx.HTTPErrorResponse{
				Code:       "HTTP_ERROR",
				Message:    fe.Message,
				Type:       string(errx.TypeForStatus(fe.Code)),
				StatusCode: fe.Code,
			}
		default:
			resp = errx.HTTPErrorResponse{
				Code:       "INTERNAL_ERROR",
				Message:    "An unexpected error occurred",
				Type:       string(errx.TypeInternal),
				StatusCode: fiber.StatusInternalServerError,
			}
		}
		if resp.StatusCode == 0 {
			resp.StatusCode = fiber.StatusInternalServerError
		}
		resp.RequestID = requestID(c)

		entry := logx.WithContext(c.UserContext()).WithFields(logx.Fields{
			"path":   c.Path(),
			"method": c.Method(),
			"status": resp.StatusCode,
			"code":   resp.Code,
		}).WithError(err)
		if errx.Type(resp.Type).ClientFault() {
			entry.Info("request rejected")
		} else {
			entry.Error("request failed")
		}

		return c.Status(resp.StatusCode).JSON(resp)
	}
}

// NotFoundHandler answers unmatched routes.
func NotFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(errx.HTTPErrorResponse{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "The requested endpoint does not exist",
		Type:       string(errx.TypeNotFound),
		Details:    map[string]interface{}{"path": c.Path(), "method": c.Method()},
		StatusCode: fiber.StatusNotFound,
		RequestID:  requestID(c),
	})
}
