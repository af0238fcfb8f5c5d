package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	err := Wrap(CodeQuoteFailure, cause, "请求报价失败")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if !stdErrors.Is(fmt.Errorf("outer: %w", err), New(CodeQuoteFailure, "")) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if CodeOf(err) != CodeQuoteFailure {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
}

func TestAttributesDriveDefaults(t *testing.T) {
	err := New(CodeSubmissionFailure, "")
	if err.Message() != "swap submission failed" {
		t.Fatalf("unexpected default message: %q", err.Message())
	}
	if !ShouldAlert(err) {
		t.Fatalf("submission failures should alert")
	}
	if RetryableError(err) {
		t.Fatalf("submission failures must not be retried")
	}
	if SeverityOf(err) != SeverityCritical {
		t.Fatalf("unexpected severity: %s", SeverityOf(err))
	}

	overridden := New(CodeSubmissionFailure, "", WithAlert(false), WithSeverity(SeverityInfo))
	if overridden.ShouldAlert() || overridden.Severity() != SeverityInfo {
		t.Fatalf("options should override registry attributes")
	}
}

func TestReplyOfFallsBackToUnknown(t *testing.T) {
	if got := ReplyOf(New(CodeNoRoute, "")); got != "No swap route found for this pair, please try again." {
		t.Fatalf("unexpected reply: %q", got)
	}
	if got := ReplyOf(stdErrors.New("plain")); got != AttributesOf(CodeUnknown).Reply {
		t.Fatalf("unexpected fallback reply: %q", got)
	}
	if got := ReplyOf(New(CodeApprovalFailure, "")); got != AttributesOf(CodeUnknown).Reply {
		t.Fatalf("codes without reply should fall back, got %q", got)
	}
}

func TestRegisterOverridesAttributes(t *testing.T) {
	code := Code("TEST_CUSTOM")
	Register(code, Attributes{Message: "custom", Severity: SeverityWarning, Retryable: true})
	err := New(code, "")
	if err.Message() != "custom" || !err.Retryable() || err.Severity() != SeverityWarning {
		t.Fatalf("registered attributes not applied: %+v", AttributesOf(code))
	}
}

func TestWithReplyOverridesRegisteredReply(t *testing.T) {
	err := Wrap(CodeSubmissionFailure, stdErrors.New("reverted"), "", WithReply("Swap failed: reverted"))
	if got := ReplyOf(fmt.Errorf("job: %w", err)); got != "Swap failed: reverted" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if got := New(CodeNoRoute, "", WithReply("")).Reply(); got != AttributesOf(CodeNoRoute).Reply {
		t.Fatalf("empty override must keep the registered reply, got %q", got)
	}
}

func TestLogValueGroupsCodeAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	err := Wrap(CodeSubmissionFailure, stdErrors.New("reverted"), "swap failed", WithMetadata("tx", "0xabc"))
	log.Info("failed", slog.Any("error", err))

	out := buf.String()
	for _, want := range []string{`"code":"SUBMISSION_FAILURE"`, `"cause":"reverted"`, `"meta.tx":"0xabc"`, `"severity":"critical"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
