package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "request is invalid", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "sign in required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "not allowed for this account"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "not found"},
		{code: CodeGone, status: http.StatusGone, publicMsg: "no longer available"},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "too many requests"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "already exists"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "not allowed in the current state", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "something went wrong", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "a backing service is unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodeNotFound, "offer not found"))
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("expected not found code, got %s", got)
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("expected internal for untyped error, got %s", got)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("redeem: %w", Wrap(CodeDependency, stdErrors.New("conn reset"), "count redemptions"))
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code in dump, got %s", dump.Code)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", dump.Chain)
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "tokens_short_code_active_key", TableName: "tokens", Message: "duplicate key value"}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert token"))
	if dump.PG == nil || dump.PG.Code != "23505" {
		t.Fatalf("expected pg fields, got %+v", dump.PG)
	}
	fields := dump.Fields()
	if fields["pg_constraint"] != "tokens_short_code_active_key" {
		t.Fatalf("expected constraint in fields, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg column should be omitted")
	}
}

func TestDumpFieldsWithoutDriverError(t *testing.T) {
	fields := Dump(New(CodeValidation, "amount must be positive")).Fields()
	if fields["error_code"] != string(CodeValidation) {
		t.Fatalf("unexpected error code %v", fields["error_code"])
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("pg fields should be absent")
	}
}

func TestHasCodeWalksNestedTypedErrors(t *testing.T) {
	inner := New(CodeNotFound, "token not found")
	outer := Wrap(CodeDependency, fmt.Errorf("lookup: %w", inner), "resolve token")
	if !HasCode(outer, CodeNotFound) {
		t.Fatalf("expected nested not found code")
	}
	if !HasCode(outer, CodeDependency) {
		t.Fatalf("expected outer dependency code")
	}
	if HasCode(outer, CodeGone) {
		t.Fatalf("unexpected gone code")
	}
	if HasCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(CodeRateLimit, "limit of %d per %s reached", 3, "day")
	if err.Message() != "limit of 3 per day reached" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}
