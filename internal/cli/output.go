package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"ms-registration/internal/logger"
)

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) Print(text string, value any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// commandLogger sends service logs to stderr so stdout stays parseable.
func commandLogger(opts *RootOptions, errOut io.Writer) *logger.Logger {
	if !opts.Verbose {
		return logger.NewConsoleLogger(nil)
	}
	return logger.NewConsoleLogger(errOut)
}
