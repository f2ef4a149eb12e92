package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if !strings.Contains(err.Error(), "test error") {
		t.Errorf("Expected error message to contain 'test error', got: %s", err.Error())
	}

	if err.Location() == "" {
		t.Error("Location should not be empty")
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if !strings.Contains(err.Error(), "wrapped") {
		t.Errorf("Expected error message to contain 'wrapped', got: %s", err.Error())
	}

	if !strings.Contains(err.Error(), "base error") {
		t.Errorf("Expected error message to contain 'base error', got: %s", err.Error())
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "whatever") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWithField(t *testing.T) {
	err := New("test error").WithField("key", "value")

	fields := err.GetFields()
	if fields["key"] != "value" {
		t.Errorf("Expected field 'key' to be 'value', got: %v", fields["key"])
	}

	// Original must not be mutated by a later WithField
	err2 := err.WithField("other", 42)
	if _, ok := err.GetFields()["other"]; ok {
		t.Error("WithField mutated the original error")
	}
	if err2.GetFields()["other"] != 42 {
		t.Error("WithField did not set the new field")
	}
}

func TestWithCode(t *testing.T) {
	err := New("test error").WithCode("TEST_CODE")
	if err.GetCode() != "TEST_CODE" {
		t.Errorf("Expected code TEST_CODE, got: %s", err.GetCode())
	}
}

func TestSentinelMatching(t *testing.T) {
	err := NewAdapterUnavailable("vision", errors.New("connection refused"))

	if !errors.Is(err, ErrAdapterUnavailable) {
		t.Error("NewAdapterUnavailable should match ErrAdapterUnavailable")
	}
	if err.GetCode() != "ADAPTER_UNAVAILABLE" {
		t.Errorf("Unexpected code: %s", err.GetCode())
	}
	if err.GetFields()["service"] != "vision" {
		t.Error("service field missing")
	}
}

func TestProtocolViolation(t *testing.T) {
	err := NewProtocolViolation("unknown discriminator 7")
	if !errors.Is(err, ErrProtocolViolation) {
		t.Error("should match ErrProtocolViolation")
	}
	if !strings.Contains(err.Error(), "unknown discriminator 7") {
		t.Errorf("details missing from message: %s", err.Error())
	}
}

func TestMalformedInput(t *testing.T) {
	err := NewMalformedInput("empty video frame")
	if !errors.Is(err, ErrMalformedInput) {
		t.Error("should match ErrMalformedInput")
	}
	if GetErrorCode(err) != "MALFORMED_INPUT" {
		t.Errorf("Unexpected code: %s", GetErrorCode(err))
	}
}

func TestGetErrorCodePlainError(t *testing.T) {
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("plain error should have no code")
	}
	if GetErrorFields(errors.New("plain")) != nil {
		t.Error("plain error should have no fields")
	}
}
