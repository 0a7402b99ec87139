package diagnostics

// Severity classifies how serious a Diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityHint    Severity = "hint"
)

// Code is a closed-taxonomy diagnostic identifier, e.g. "WSK0001".
type Code string

// Lexer diagnostics (WSK0001-WSK0099).
const (
	CodeUnexpectedChar     Code = "WSK0001"
	CodeUnterminatedString Code = "WSK0002"
)

// Parser diagnostics (WSK0100-WSK0199).
const (
	CodeUnexpectedToken   Code = "WSK0100"
	CodeUnclosedBlock     Code = "WSK0101"
	CodeMalformedChoice   Code = "WSK0102"
	CodeMalformedHeader   Code = "WSK0103"
	CodeRawEscapeHatch    Code = "WSK0104"
)

// Semantic diagnostics (WSK0200-WSK0299).
const (
	CodeDuplicatePassage     Code = "WSK0200"
	CodeUnresolvedReference  Code = "WSK0201"
	CodeUnreachablePassage   Code = "WSK0250"
	CodeUnusedVariable       Code = "WSK0251"
	CodePassageTooLong       Code = "WSK0252"
	CodeTooManyChoices       Code = "WSK0253"
	CodeEmptyPassage         Code = "WSK0254"
	CodeNoPassages           Code = "WSK0290"
	CodeNoStartPassage       Code = "WSK0291"
	CodeMalformedAST         Code = "WSK0292"
)

// SecondarySpan attaches an explanatory label to a span that supports a
// Diagnostic's primary span without being the primary location itself.
type SecondarySpan struct {
	Span  Span
	Label string
}

// Diagnostic is a single compiler/runtime observation with an optional
// source location.
type Diagnostic struct {
	Code           Code
	Severity       Severity
	Message        string
	PrimarySpan    *Location
	SecondarySpans []SecondarySpan
	Suggestion     string
}

// IsFatal reports whether the diagnostic should halt compilation rather
// than merely being advisory (spec §4.4: "only structural failures ...
// are fatal").
func (d Diagnostic) IsFatal() bool {
	switch d.Code {
	case CodeNoPassages, CodeNoStartPassage, CodeMalformedAST:
		return true
	default:
		return false
	}
}

// New builds an error-severity diagnostic with no location.
func New(code Code, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityError, Message: message}
}

// NewWarning builds a warning-severity diagnostic with no location.
func NewWarning(code Code, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityWarning, Message: message}
}

// NewHint builds a hint-severity diagnostic with no location.
func NewHint(code Code, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityHint, Message: message}
}

// Newf is New with a location attached.
func Newf(code Code, severity Severity, loc Location, message string) Diagnostic {
	l := loc
	return Diagnostic{Code: code, Severity: severity, Message: message, PrimarySpan: &l}
}

// WithPrimarySpan returns a copy of d with its primary span set to loc.
func (d Diagnostic) WithPrimarySpan(loc Location) Diagnostic {
	l := loc
	d.PrimarySpan = &l
	return d
}

// WithSuggestion returns a copy of d with its suggestion text set.
func (d Diagnostic) WithSuggestion(s string) Diagnostic {
	d.Suggestion = s
	return d
}

// HasErrors reports whether any diagnostic in the list is error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasFatal reports whether any diagnostic is structurally fatal.
func HasFatal(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.IsFatal() {
			return true
		}
	}
	return false
}
