// routes.go - Route registration and the echo adapter
// The local server reproduces the API Gateway resources by turning each
// echo request into a proxy event and running it through the same Handler.
package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baksh-audit/survey-backend/internal/request"
)

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler, health *HealthHandler) {
	// Health check
	e.GET("/health", health.HandleHealth)

	e.GET("/questions", h.Echo(OpGetQuestions))
	e.POST("/responses", h.Echo(OpSaveResponse))
	e.GET("/responses", h.Echo(OpGetResponse))

	// CORS preflight
	preflight := h.Echo(OpPreflight)
	e.OPTIONS("/questions", preflight)
	e.OPTIONS("/responses", preflight)
}

// Echo adapts op to an echo handler.
func (h *Handler) Echo(op string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev, err := EventFromEcho(c)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		if id := echoRequestID(c); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		return writeResponse(c, h.Run(ctx, op, ev))
	}
}

// EventFromEcho builds a REST API proxy event from an echo request.
func EventFromEcho(c echo.Context) (request.Event, error) {
	req := c.Request()

	headers := make(map[string]any, len(req.Header))
	for k := range req.Header {
		headers[k] = req.Header.Get(k)
	}

	ev := request.Event{
		"httpMethod": req.Method,
		"path":       req.URL.Path,
		"resource":   c.Path(),
		"headers":    headers,
	}

	if q := req.URL.Query(); len(q) > 0 {
		params := make(map[string]any, len(q))
		for k, v := range q {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		ev["queryStringParameters"] = params
	}

	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			ev["body"] = string(data)
			ev["isBase64Encoded"] = false
		}
	}
	return ev, nil
}

func echoRequestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

func writeResponse(c echo.Context, resp Response) error {
	header := c.Response().Header()
	for k, v := range resp.Headers {
		header.Set(k, v)
	}
	contentType := resp.Headers[echo.HeaderContentType]
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
}
