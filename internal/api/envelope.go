// envelope.go - Gateway-style response envelopes with CORS headers
package api

import (
	"encoding/json"
	"maps"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// Response is a status, header set and serialized JSON body, in the shape
// API Gateway expects back from a proxy integration.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// DefaultHeaders are sent on every response.
var DefaultHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":   "*",
	"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token",
	"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
}

// fallbackBody is sent when a body cannot be serialized.
const fallbackBody = `{"error":"Internal server error","message":"Failed to encode response","code":"ENCODING_ERROR"}`

// NewResponse serializes body as JSON and attaches the default headers,
// with overrides taking precedence.
func NewResponse(status int, body any, overrides map[string]string) Response {
	headers := make(map[string]string, len(DefaultHeaders)+len(overrides))
	maps.Copy(headers, DefaultHeaders)
	maps.Copy(headers, overrides)

	data, err := json.Marshal(body)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       fallbackBody,
		}
	}
	return Response{StatusCode: status, Headers: headers, Body: string(data)}
}

// JSON is shorthand for NewResponse without header overrides.
func JSON(status int, body any) Response {
	return NewResponse(status, body, nil)
}

// Proxy converts r to an API Gateway proxy integration response.
func (r Response) Proxy() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}
