package intent

import (
	"fmt"

	"github.com/netcfg-io/netcfg/pkg/util"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the kind of finding
type Code string

const (
	CodeMissingField          Code = "MISSING_FIELD"
	CodeInvalidAddress        Code = "INVALID_ADDRESS"
	CodeDuplicateName         Code = "DUPLICATE_NAME"
	CodeIncompletePair        Code = "INCOMPLETE_PAIR"
	CodeInvalidNetworkSpec    Code = "INVALID_NETWORK_SPEC"
	CodeEmptyACL              Code = "EMPTY_ACL"
	CodePortWithoutTransport  Code = "PORT_WITHOUT_TRANSPORT"
	CodeUnsupportedDeviceType Code = "UNSUPPORTED_DEVICE_TYPE"
	CodeInvalidValue          Code = "INVALID_VALUE"
	CodeInvalidName           Code = "INVALID_NAME"
	CodeUncommonProtocol      Code = "UNCOMMON_PROTOCOL"
	CodeIgnoredField          Code = "IGNORED_FIELD"
	CodeNoInterfaces          Code = "NO_INTERFACES"
	CodeNoNetworks            Code = "NO_NETWORKS"
	CodeParseError            Code = "PARSE_ERROR"
	CodeUnknownField          Code = "UNKNOWN_FIELD"
	CodeDefaultedField        Code = "DEFAULTED_FIELD"
	CodeInlineSecret          Code = "INLINE_SECRET"
)

// Diagnostic is a structured validation finding tied to a field path
// such as "interfaces[2].subnetMask".
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Code     Code     `json:"code"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", d.Severity, d.Code, d.Path, d.Message)
}

// Errorf builds an error diagnostic
func Errorf(code Code, path, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityError, Path: path, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Warningf builds a warning diagnostic
func Warningf(code Code, path, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Path: path, Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any diagnostic is an error
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error diagnostics
func Errors(diags []Diagnostic) []Diagnostic {
	return filter(diags, SeverityError)
}

// AsError folds the error diagnostics into a *util.ValidationError, or
// returns nil when there are none
func AsError(diags []Diagnostic) error {
	var v util.ValidationBuilder
	for _, d := range diags {
		v.Add(d.Severity != SeverityError, d.String())
	}
	return v.Build()
}

// Warnings returns only the warning diagnostics
func Warnings(diags []Diagnostic) []Diagnostic {
	return filter(diags, SeverityWarning)
}

func filter(diags []Diagnostic, sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
