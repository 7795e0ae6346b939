package models

// TimestampLayout renders UTC timestamps with microsecond precision so that
// lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// SurveyDocument is the stored form of one subject's answers.
type SurveyDocument struct {
	Type        SubjectKind        `json:"type"`
	CompanyID   string             `json:"company_id"`
	EmployeeID  string             `json:"employee_id,omitempty"`
	Responses   map[string]any     `json:"responses"`
	SubmittedAt string             `json:"submitted_at"`
	UpdatedAt   string             `json:"updated_at"`
	Files       []AttachmentRecord `json:"files,omitempty"`
}

// AttachmentRecord describes an uploaded file stored next to an employee
// document.
type AttachmentRecord struct {
	StoredName   string `json:"filename"`
	OriginalName string `json:"original_filename"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}

// FileUpload is an attachment as submitted by a caller, before decoding.
type FileUpload struct {
	Filename    string
	Content     string // base64
	ContentType string
}
