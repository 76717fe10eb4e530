package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Verification failure (run did not pass)
	ExitCommandError = 2 // Command error (bad scenario, missing journal, etc.)
)

// ExitError is an error carrying a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response is the standard JSON envelope for CLI output.
type Response struct {
	Status string        `json:"status"` // "ok" or "error"
	Data   any           `json:"data,omitempty"`
	Error  *ResponseErr  `json:"error,omitempty"`
}

// ResponseErr is the error structure for JSON responses.
type ResponseErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes data inside the standard envelope.
func (f *OutputFormatter) JSON(data any) error {
	return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
}

// RawJSON writes pre-serialized JSON inside the standard envelope.
func (f *OutputFormatter) RawJSON(data []byte) error {
	return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: json.RawMessage(data)})
}

// Text writes a formatted line in text mode.
func (f *OutputFormatter) Text(format string, args ...any) {
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// Error writes an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseErr{Code: code, Message: message},
		})
	}
	fmt.Fprintf(f.Writer, "error [%s]: %s\n", code, message)
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on.
// Goes to ErrWriter so JSON on stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
