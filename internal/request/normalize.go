// Package request turns inbound invocation events of varying shape into a
// models.CanonicalRequest.
//
// An event is the decoded JSON of whatever invoked the function: an API
// Gateway REST or HTTP API proxy event, a direct Lambda invocation payload,
// or an equivalent built by the local HTTP server.
package request

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/baksh-audit/survey-backend/internal/models"
)

// ErrMalformed reports an event from which no usable parameters or body
// could be extracted.
var ErrMalformed = errors.New("malformed request")

// Event is a decoded inbound invocation event.
type Event map[string]any

// Keys returns the event's top-level keys in sorted order.
func (e Event) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the string value stored at key, or "".
func (e Event) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// envelopeKeys are the fields API Gateway adds around a proxied request.
// They are never taken as caller parameters.
var envelopeKeys = map[string]bool{
	"resource":                        true,
	"path":                            true,
	"rawPath":                         true,
	"httpMethod":                      true,
	"headers":                         true,
	"multiValueHeaders":               true,
	"queryStringParameters":           true,
	"multiValueQueryStringParameters": true,
	"rawQueryString":                  true,
	"pathParameters":                  true,
	"stageVariables":                  true,
	"requestContext":                  true,
	"body":                            true,
	"isBase64Encoded":                 true,
	"version":                         true,
	"routeKey":                        true,
	"cookies":                         true,
	"query":                           true,
}

// payloadKeys are the envelope fields under which a direct invocation may
// nest its payload.
var payloadKeys = []string{"data", "requestData", "payload"}

type queryExtractor struct {
	name    string
	extract func(Event) (map[string]string, bool)
}

// queryChain is tried in order; the first extractor yielding a non-empty
// map wins.
var queryChain = []queryExtractor{
	{"queryStringParameters", fromQueryStringParameters},
	{"multiValueQueryStringParameters", fromMultiValueQueryStringParameters},
	{"rawQueryString", fromRawQueryString},
	{"pathParameters", fromPathParameters},
	{"direct", fromDirectInvocation},
	{"path", fromPathQuery},
}

// NormalizeQuery extracts the caller's query-style parameters from e.
func NormalizeQuery(e Event) (*models.CanonicalRequest, error) {
	for _, ex := range queryChain {
		if params, ok := ex.extract(e); ok {
			return &models.CanonicalRequest{
				Query:        params,
				RawEventKeys: e.Keys(),
			}, nil
		}
	}
	return &models.CanonicalRequest{
		Query:        map[string]string{},
		RawEventKeys: e.Keys(),
	}, fmt.Errorf("%w: no query parameters in event", ErrMalformed)
}

// NormalizeBody extracts the caller's JSON body from e. required names the
// keys whose presence identifies a direct-invocation payload at the top
// level of the event.
func NormalizeBody(e Event, required ...string) (*models.CanonicalRequest, error) {
	req := &models.CanonicalRequest{
		Query:        map[string]string{},
		RawEventKeys: e.Keys(),
	}

	if raw, present := e["body"]; present && raw != nil {
		body, err := decodeBody(raw, isTrue(e["isBase64Encoded"]))
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		req.Body = body
		return req, nil
	}

	if len(required) > 0 && hasAll(e, required) {
		body := make(map[string]any, len(e))
		for k, v := range e {
			if !envelopeKeys[k] {
				body[k] = v
			}
		}
		req.Body = body
		return req, nil
	}

	for _, key := range payloadKeys {
		switch v := e[key].(type) {
		case map[string]any:
			req.Body = v
			return req, nil
		case string:
			var body map[string]any
			if err := json.Unmarshal([]byte(v), &body); err == nil && body != nil {
				req.Body = body
				return req, nil
			}
		}
	}

	return req, fmt.Errorf("%w: no request body in event", ErrMalformed)
}

func decodeBody(raw any, base64Encoded bool) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		data := []byte(v)
		if base64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("decoding base64 body: %w", err)
			}
			data = decoded
		}
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("parsing JSON body: %w", err)
		}
		if body == nil {
			return nil, errors.New("body must be a JSON object")
		}
		return body, nil
	default:
		return nil, fmt.Errorf("unsupported body type %T", raw)
	}
}

func fromQueryStringParameters(e Event) (map[string]string, bool) {
	return stringMap(e["queryStringParameters"])
}

func fromMultiValueQueryStringParameters(e Event) (map[string]string, bool) {
	multi, ok := e["multiValueQueryStringParameters"].(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(multi))
	for k, v := range multi {
		switch vals := v.(type) {
		case []any:
			if len(vals) > 0 {
				if s, ok := scalarString(vals[0]); ok {
					out[k] = s
				}
			}
		case []string:
			if len(vals) > 0 {
				out[k] = vals[0]
			}
		}
	}
	return out, len(out) > 0
}

func fromRawQueryString(e Event) (map[string]string, bool) {
	return parseQuery(e.String("rawQueryString"))
}

func fromPathParameters(e Event) (map[string]string, bool) {
	return stringMap(e["pathParameters"])
}

// fromDirectInvocation handles events sent straight to the function, either
// with a nested "query" object or with the parameters at the top level.
func fromDirectInvocation(e Event) (map[string]string, bool) {
	if params, ok := stringMap(e["query"]); ok {
		return params, true
	}
	out := make(map[string]string)
	for k, v := range e {
		if envelopeKeys[k] {
			continue
		}
		if s, ok := scalarString(v); ok {
			out[k] = s
		}
	}
	return out, len(out) > 0
}

func fromPathQuery(e Event) (map[string]string, bool) {
	for _, key := range []string{"path", "rawPath"} {
		p := e.String(key)
		if i := strings.IndexByte(p, '?'); i >= 0 {
			if params, ok := parseQuery(p[i+1:]); ok {
				return params, true
			}
		}
	}
	return nil, false
}

func parseQuery(raw string) (map[string]string, bool) {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil, false
	}
	values, err := url.ParseQuery(raw)
	if err != nil && len(values) == 0 {
		return nil, false
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if k != "" && len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, len(out) > 0
}

func stringMap(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := scalarString(val); ok {
				out[k] = s
			}
		}
		return out, len(out) > 0
	case map[string]string:
		return m, len(m) > 0
	}
	return nil, false
}

// scalarString renders JSON scalars as strings; objects, arrays and null
// are not parameters.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		if s {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

func hasAll(e Event, keys []string) bool {
	for _, k := range keys {
		if v, ok := e[k]; !ok || v == nil {
			return false
		}
	}
	return true
}

func isTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	}
	return false
}
