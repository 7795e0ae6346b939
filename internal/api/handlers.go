package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/catalog"
	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/request"
	"github.com/baksh-audit/survey-backend/internal/survey"
)

// Operation names, as accepted in SURVEY_OPERATION.
const (
	OpGetQuestions = "get_questions"
	OpSaveResponse = "save_response"
	OpGetResponse  = "get_response"
	OpPreflight    = "options"
)

// Handler handles API requests.
type Handler struct {
	catalog   *catalog.Loader
	surveys   *survey.Service
	logger    *zap.Logger
	verbose   bool
	operation string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithVerboseErrors includes error causes in 500 bodies.
func WithVerboseErrors(verbose bool) Option {
	return func(h *Handler) { h.verbose = verbose }
}

// WithOperation pins Dispatch to a single operation regardless of the
// event's method and path. Preflight requests are still answered.
func WithOperation(op string) Option {
	return func(h *Handler) { h.operation = op }
}

// NewHandler creates a new API handler.
func NewHandler(loader *catalog.Loader, surveys *survey.Service, opts ...Option) *Handler {
	h := &Handler{
		catalog: loader,
		surveys: surveys,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ValidOperation reports whether op names a known operation.
func ValidOperation(op string) bool {
	switch op {
	case OpGetQuestions, OpSaveResponse, OpGetResponse:
		return true
	}
	return false
}

// Dispatch routes e to an operation and runs it.
func (h *Handler) Dispatch(ctx context.Context, e request.Event) Response {
	return h.Run(ctx, h.Route(e), e)
}

// Run executes op against e. It never panics; a panic inside an operation
// becomes a 500 response.
func (h *Handler) Run(ctx context.Context, op string, e request.Event) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling request",
				zap.Any("panic", r),
				zap.String("request_id", RequestID(ctx)),
				zap.Stack("stack"))
			resp = h.internalError(ctx, "Unexpected failure", fmt.Errorf("panic: %v", r))
		}
	}()

	h.logger.Debug("handling request",
		zap.String("operation", op),
		zap.Strings("event_keys", e.Keys()),
		zap.String("request_id", RequestID(ctx)))

	switch op {
	case OpPreflight:
		return JSON(http.StatusOK, map[string]any{})
	case OpGetQuestions:
		return h.GetQuestions(ctx, e)
	case OpSaveResponse:
		return h.SaveResponse(ctx, e)
	case OpGetResponse:
		return h.GetResponse(ctx, e)
	}
	return NewNotFoundError("Route not found", "No operation matches this request").
		With("received_event_keys", e.Keys()).
		Response()
}

// Route names the operation e addresses, or "" when none matches.
func (h *Handler) Route(e request.Event) string {
	method := strings.ToUpper(eventMethod(e))
	if method == http.MethodOptions {
		return OpPreflight
	}
	if h.operation != "" {
		return h.operation
	}

	path := strings.TrimSuffix(eventPath(e), "/")
	switch {
	case method == http.MethodGet && strings.HasSuffix(path, "/questions"):
		return OpGetQuestions
	case method == http.MethodPost && strings.HasSuffix(path, "/responses"):
		return OpSaveResponse
	case method == http.MethodGet && strings.HasSuffix(path, "/responses"):
		return OpGetResponse
	}
	return ""
}

func eventMethod(e request.Event) string {
	if m := e.String("httpMethod"); m != "" {
		return m
	}
	rc, _ := e["requestContext"].(map[string]any)
	httpCtx, _ := rc["http"].(map[string]any)
	m, _ := httpCtx["method"].(string)
	return m
}

func eventPath(e request.Event) string {
	for _, k := range []string{"resource", "path", "rawPath"} {
		if p := e.String(k); p != "" {
			if i := strings.IndexByte(p, '?'); i >= 0 {
				p = p[:i]
			}
			return p
		}
	}
	return ""
}

// GetQuestions returns the question catalog named by the type parameter.
func (h *Handler) GetQuestions(ctx context.Context, e request.Event) Response {
	req, _ := request.NormalizeQuery(e)
	kind := req.Param("type")
	if kind == "" {
		apiErr := NewValidationError("type")
		apiErr.Title = "Missing required parameter: type"
		apiErr.Message = "Please specify type=company or type=employee"
		return apiErr.With("received_event_keys", req.RawEventKeys).Response()
	}

	questions, err := h.catalog.Load(ctx, kind)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidKind):
			return NewInvalidTypeError().With("received_type", kind).Response()
		case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrEmpty):
			h.logger.Warn("question catalog unavailable", zap.String("type", kind), zap.Error(err))
			return NewNotFoundError("Questions file not found", "No questions available for type: "+kind).Response()
		}
		return h.internalError(ctx, "Failed to retrieve questions", err)
	}

	return JSON(http.StatusOK, map[string]any{
		"type":            kind,
		"questions":       questions,
		"total_questions": len(questions),
	})
}

// SaveResponse upserts a survey document from the request body.
func (h *Handler) SaveResponse(ctx context.Context, e request.Event) Response {
	req, err := request.NormalizeBody(e, "type")
	if err != nil {
		h.logger.Warn("rejecting unreadable request body", zap.Error(err))
		return FromError(err, h.verbose).
			With("received_event_keys", req.RawEventKeys).
			Response()
	}
	body := req.Body

	kind := stringField(body, "type")
	if kind == "" {
		return NewValidationError("type").Response()
	}

	responses, ok := objectField(body, "responses", "answers")
	if !ok {
		return NewBadRequestError("Invalid responses", "responses must be a JSON object").Response()
	}
	files, err := fileUploads(body)
	if err != nil {
		return NewBadRequestError("Invalid files", err.Error()).Response()
	}

	res, err := h.surveys.Save(ctx, survey.SaveRequest{
		Key: survey.Key{
			Kind:       kind,
			CompanyID:  stringField(body, "company_id", "companyId"),
			EmployeeID: stringField(body, "employee_id", "employeeId"),
		},
		Responses: responses,
		Files:     files,
	})
	if err != nil {
		if errors.Is(err, survey.ErrInvalidSubjectKind) {
			return NewInvalidTypeError().With("received_type", kind).Response()
		}
		if errors.Is(err, survey.ErrMissingIdentifier) {
			return FromError(err, h.verbose).Response()
		}
		return h.internalError(ctx, "Failed to save response", err)
	}

	return JSON(http.StatusOK, map[string]any{
		"message":        "Response saved successfully",
		"type":           res.Kind,
		"company_id":     res.CompanyID,
		"employee_id":    optional(res.EmployeeID),
		"uploaded_files": res.UploadedFiles,
		"saved_at":       res.SavedAt,
		"storage_path":   res.StoragePath,
	})
}

// GetResponse returns the stored document named by the query parameters.
func (h *Handler) GetResponse(ctx context.Context, e request.Event) Response {
	req, _ := request.NormalizeQuery(e)
	key := survey.Key{
		Kind:       req.Param("type"),
		CompanyID:  req.Param("company_id", "companyId"),
		EmployeeID: req.Param("employee_id", "employeeId"),
	}
	requestID := RequestID(ctx)

	if key.Kind == "" {
		return NewValidationError("type").
			With("received_params", req.Query).
			With("received_event_keys", req.RawEventKeys).
			Response()
	}

	lookup, err := h.surveys.Get(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, survey.ErrInvalidSubjectKind):
			return NewInvalidTypeError().With("received_type", key.Kind).Response()
		case errors.Is(err, survey.ErrMissingIdentifier):
			return FromError(err, h.verbose).With("received_params", req.Query).Response()
		}
		return h.internalError(ctx, "Failed to get response", err)
	}

	rk := lookup.Key
	if !lookup.Found {
		return JSON(http.StatusNotFound, map[string]any{
			"found":        false,
			"message":      "No existing response found",
			"type":         rk.Kind,
			"company_id":   rk.CompanyID,
			"employee_id":  optional(rk.EmployeeID),
			"storage_path": rk.Path,
			"request_id":   requestID,
		})
	}

	doc := lookup.Document
	files := doc.Files
	if files == nil {
		files = []models.AttachmentRecord{}
	}
	return JSON(http.StatusOK, map[string]any{
		"found":        true,
		"type":         doc.Type,
		"company_id":   doc.CompanyID,
		"employee_id":  optional(doc.EmployeeID),
		"responses":    doc.Responses,
		"submitted_at": doc.SubmittedAt,
		"updated_at":   doc.UpdatedAt,
		"files":        files,
		"storage_path": rk.Path,
		"request_id":   requestID,
	})
}

func (h *Handler) internalError(ctx context.Context, message string, err error) Response {
	requestID := RequestID(ctx)
	h.logger.Error(message, zap.String("request_id", requestID), zap.Error(err))

	var cause error
	if h.verbose {
		cause = err
	}
	return NewInternalError(message, cause).With("request_id", requestID).Response()
}

// optional renders an empty identifier as JSON null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// stringField returns the first non-empty string among keys in body.
func stringField(body map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// objectField returns the first object among keys in body. Absent or null
// fields yield an empty object; any other type is rejected.
func objectField(body map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		switch v := body[k].(type) {
		case nil:
			continue
		case map[string]any:
			return v, true
		default:
			return nil, false
		}
	}
	return map[string]any{}, true
}

func fileUploads(body map[string]any) ([]models.FileUpload, error) {
	raw, ok := body["files"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("files must be an array, got %T", raw)
	}

	files := make([]models.FileUpload, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("files[%d] must be an object", i)
		}
		files = append(files, models.FileUpload{
			Filename:    stringField(m, "filename", "name"),
			Content:     stringField(m, "content", "data"),
			ContentType: stringField(m, "content_type", "contentType"),
		})
	}
	return files, nil
}
