package models

// SubjectKind identifies whether a survey document concerns a company or
// an individual employee.
type SubjectKind string

const (
	SubjectCompany  SubjectKind = "company"
	SubjectEmployee SubjectKind = "employee"
)

// ParseSubjectKind returns the kind for s and whether it is one of the
// known kinds. Matching is exact.
func ParseSubjectKind(s string) (SubjectKind, bool) {
	switch SubjectKind(s) {
	case SubjectCompany, SubjectEmployee:
		return SubjectKind(s), true
	}
	return "", false
}

func (k SubjectKind) String() string {
	return string(k)
}
