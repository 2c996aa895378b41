// Package converter resolves uploaded sample archives into FASTA files.
// Compressed archives are handed to an external conversion tool, flat
// sequence formats are copied to the processed location unchanged.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/errors"
	"github.com/oceansense/edna-go/internal/logging"
)

// stderrTailLimit bounds the diagnostic text attached to conversion
// errors, full output still goes to the log.
const stderrTailLimit = 2048

// archiveExtensions are filename suffixes handed to the external tool.
var archiveExtensions = []string{".tar.gz", ".tgz"}

// flatExtensions are filename suffixes already in flat sequence form and
// only need copying to the processed location.
var flatExtensions = []string{".fasta", ".fa", ".fas", ".fna", ".txt"}

var getLogger = sync.OnceValue(func() *slog.Logger {
	return logging.ForService("converter")
})

// Converter resolves an uploaded sample file into a FASTA file at a
// deterministic output path. Implementations are pluggable so the
// external tool can be replaced by an in-process decoder without
// touching the pipeline.
type Converter interface {
	Convert(ctx context.Context, inputPath, originalName string) (outputPath string, err error)
}

// FormatFor returns the original-format tag recorded on the sample for
// the given filename, or an empty string when the format is not
// recognized.
func FormatFor(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return strings.TrimPrefix(ext, ".")
		}
	}
	for _, ext := range flatExtensions {
		if strings.HasSuffix(lower, ext) {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return ""
}

// isArchive reports whether the filename requires external conversion.
func isArchive(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isFlat reports whether the filename is already a flat sequence format.
func isFlat(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range flatExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// baseName strips the recognized extension from the filename so the
// output keeps the original basename.
func baseName(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range append(append([]string{}, archiveExtensions...), flatExtensions...) {
		if strings.HasSuffix(lower, ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}

// CommandConverter invokes the configured external conversion tool.
type CommandConverter struct {
	Settings *conf.Settings
}

// NewCommandConverter creates a converter using the tool configured in
// settings.
func NewCommandConverter(settings *conf.Settings) *CommandConverter {
	return &CommandConverter{Settings: settings}
}

// Convert resolves inputPath into a FASTA file under the processed
// directory. The output path is deterministic: the original basename
// with a .fasta extension.
func (c *CommandConverter) Convert(ctx context.Context, inputPath, originalName string) (string, error) {
	if err := os.MkdirAll(c.Settings.Storage.ProcessedPath, 0o755); err != nil {
		return "", errors.New(fmt.Errorf("creating processed directory: %w", err)).
			Component("converter").
			Category(errors.CategoryFileIO).
			Build()
	}

	outputPath := filepath.Join(c.Settings.Storage.ProcessedPath, baseName(originalName)+".fasta")

	switch {
	case isArchive(originalName):
		if err := c.runTool(ctx, inputPath, outputPath); err != nil {
			return "", err
		}
	case isFlat(originalName):
		if err := copyFile(inputPath, outputPath); err != nil {
			return "", errors.New(fmt.Errorf("copying flat sequence file: %w", err)).
				Component("converter").
				Category(errors.CategoryFileIO).
				Context("input", originalName).
				Build()
		}
	default:
		return "", errors.Newf("unsupported sample format: %s", originalName).
			Component("converter").
			Category(errors.CategoryUnsupportedFormat).
			Context("filename", originalName).
			Build()
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", errors.New(fmt.Errorf("conversion produced no output file: %w", err)).
			Component("converter").
			Category(errors.CategoryConversion).
			Context("output", outputPath).
			Build()
	}

	return outputPath, nil
}

// runTool executes the external conversion process with the input and
// output paths, capturing stderr for diagnostics. A partial output file
// is removed before returning an error.
func (c *CommandConverter) runTool(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Settings.Converter.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Settings.Converter.Command, //nolint:gosec // G204: command and script come from operator configuration
		c.Settings.Converter.Script, inputPath, outputPath)

	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	getLogger().Debug("running conversion tool",
		"command", c.Settings.Converter.Command,
		"script", c.Settings.Converter.Script,
		"input", inputPath,
		"output", outputPath)

	if err := cmd.Run(); err != nil {
		// Do not leave partial output behind.
		if removeErr := os.Remove(outputPath); removeErr != nil && !os.IsNotExist(removeErr) {
			getLogger().Warn("failed to remove partial conversion output",
				"output", outputPath, "error", removeErr)
		}

		diag := stderrTail(stderr.String())
		getLogger().Error("conversion tool failed",
			"input", inputPath,
			"error", err,
			"stderr", diag)

		category := errors.CategoryConversion
		if ctx.Err() == context.DeadlineExceeded {
			category = errors.CategoryTimeout
		}
		return errors.New(fmt.Errorf("conversion failed: %w", err)).
			Component("converter").
			Category(category).
			Context("input", inputPath).
			Context("stderr", diag).
			Build()
	}

	return nil
}

// stderrTail returns the trailing portion of the tool's stderr output.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		return s[len(s)-stderrTailLimit:]
	}
	return s
}

// copyFile copies src to dst, truncating any existing file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
