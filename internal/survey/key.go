package survey

import (
	"fmt"
	"strings"

	"github.com/baksh-audit/survey-backend/internal/models"
)

// Key identifies one survey document as supplied by a caller, before
// sanitization.
type Key struct {
	Kind       string
	CompanyID  string
	EmployeeID string
}

// ResolvedKey is a validated, sanitized Key and the storage path it maps to.
type ResolvedKey struct {
	Kind       models.SubjectKind
	CompanyID  string
	EmployeeID string // empty for company documents
	Path       string
}

// MissingFieldError reports an identifier that was absent or sanitized to
// nothing. It matches ErrMissingIdentifier.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return ErrMissingIdentifier.Error() + ": " + e.Field
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingIdentifier
}

// Resolve validates k and derives its storage path. Sanitization strips
// disallowed characters rather than rejecting them, so the same raw
// identifier always resolves to the same path.
func (k Key) Resolve() (ResolvedKey, error) {
	kind, ok := models.ParseSubjectKind(k.Kind)
	if !ok {
		return ResolvedKey{}, fmt.Errorf("%w: %q", ErrInvalidSubjectKind, k.Kind)
	}

	companyID := SanitizeID(k.CompanyID)
	if companyID == "" {
		return ResolvedKey{Kind: kind}, &MissingFieldError{Field: "company_id"}
	}

	r := ResolvedKey{Kind: kind, CompanyID: companyID}
	switch kind {
	case models.SubjectCompany:
		r.Path = "companies/" + companyID + "/form.json"
	case models.SubjectEmployee:
		r.EmployeeID = SanitizeID(k.EmployeeID)
		if r.EmployeeID == "" {
			return r, &MissingFieldError{Field: "employee_id"}
		}
		r.Path = "companies/" + companyID + "/employees/" + r.EmployeeID + ".json"
	}
	return r, nil
}

// FilesPrefix returns the key prefix under which r's attachments are stored.
func (r ResolvedKey) FilesPrefix() string {
	return "companies/" + r.CompanyID + "/employees/" + r.EmployeeID + "/files/"
}

// SanitizeID keeps ASCII letters, digits, hyphen and underscore.
func SanitizeID(s string) string {
	return keep(s, "-_")
}

// SanitizeFilename keeps ASCII letters, digits, dot, hyphen and underscore.
func SanitizeFilename(s string) string {
	name := keep(s, ".-_")
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}

func keep(s, extra string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(extra, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
