package intent

import (
	"errors"
	"strings"
	"testing"

	"github.com/netcfg-io/netcfg/pkg/util"
)

func TestAsError(t *testing.T) {
	diags := []Diagnostic{
		Warningf(CodeUnknownField, "device.vendor", "unknown field"),
		Errorf(CodeMissingField, "hostname", "hostname is required"),
		Errorf(CodeMissingField, "managementAddress", "managementAddress is required"),
	}

	err := AsError(diags)
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("AsError() = %v, want ErrValidationFailed", err)
	}
	var ve *util.ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 2 {
		t.Fatalf("AsError() = %#v, want 2 errors", err)
	}
	if strings.Contains(err.Error(), "unknown field") {
		t.Errorf("warnings belong out of the error: %s", err.Error())
	}
	if !strings.Contains(ve.Errors[0], "hostname") {
		t.Errorf("Errors[0] = %q", ve.Errors[0])
	}

	if err := AsError(diags[:1]); err != nil {
		t.Errorf("AsError(warnings only) = %v, want nil", err)
	}
}
