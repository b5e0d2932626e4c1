package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// Exit codes for cartctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the backend rejected the operation
	ExitCommandError = 2 // bad arguments, config or session
)

// ExitError carries the process exit code for a failed command.
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

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Unknown errors map to
// ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitFor maps an agent error onto an exit code. Precondition and session
// failures are command errors; backend rejections are failures.
func exitFor(message string, err error) *ExitError {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeUnauthorized, pkgerrors.CodeValidation:
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// Result is what every cart command prints.
type Result struct {
	View    cart.ViewState         `json:"cart"`
	Notices []notifications.Notice `json:"notices,omitempty"`
}

// CLIResponse is the JSON envelope of --format json.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputFormatter renders results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	switch v := data.(type) {
	case Result:
		return f.writeResult(v)
	case string:
		_, err := fmt.Fprintln(f.Writer, v)
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints err. It never replaces err; callers still return it so the
// exit code is set.
func (f *OutputFormatter) Error(err error) error {
	code := string(pkgerrors.CodeInternal)
	message := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
		message = typed.Message()
	}
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	_, writeErr := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose {
		f.VerboseLog("%s", strings.Join(pkgerrors.Dump(err).Chain, " <- "))
	}
	return writeErr
}

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

func (f *OutputFormatter) writeResult(r Result) error {
	for _, notice := range r.Notices {
		fmt.Fprintf(f.Writer, "[%s] %s\n", notice.Kind, notice.Message)
	}

	view := r.View
	fmt.Fprintf(f.Writer, "status: %s\n", view.Status)
	if view.Stale {
		fmt.Fprintln(f.Writer, "warning: cart may be out of date, run refresh")
	}
	if len(view.Items) == 0 {
		_, err := fmt.Fprintln(f.Writer, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPRODUCT\tNAME\tSIZE\tQTY\tPRICE\tTOTAL")
	for _, item := range view.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			item.ID,
			item.Product.ID,
			item.Product.Name,
			item.SelectedSize,
			item.Quantity,
			item.Product.Price.StringFixed(2),
			item.LineTotal().StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f.Writer, "items: %d  total: %s\n", view.TotalItems, view.TotalAmount.StringFixed(2))
	return err
}
