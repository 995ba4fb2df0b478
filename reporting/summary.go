// Package reporting projects categorized test results into the triage
// report and its output sinks.
package reporting

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dartlab/dart-triage/tree"
	"github.com/dartlab/dart-triage/types"
)

const (
	testFileSuffix    = "_test.dart"
	featureFileSuffix = ".feature"
)

// PathResolver converts file URLs to filesystem paths and checks sibling
// file existence. Tests substitute a stub.
type PathResolver interface {
	FromFileURL(rawURL string) (string, error)
	Exists(path string) bool
}

type osPathResolver struct{}

// NewPathResolver returns the OS-backed resolver.
func NewPathResolver() PathResolver {
	return &osPathResolver{}
}

func (osPathResolver) FromFileURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", rawURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %q", rawURL)
	}
	return filepath.FromSlash(u.Path), nil
}

func (osPathResolver) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReportError is one (error message, stack trace) pair on a failed test.
type ReportError struct {
	Error      string `yaml:"error"`
	StackTrace string `yaml:"stackTrace"`
}

// FailedTest is the flat report record for one failed test.
type FailedTest struct {
	File     string        `yaml:"file"`
	Line     int           `yaml:"line"`
	Column   int           `yaml:"column"`
	Feature  *string       `yaml:"feature"`
	Name     string        `yaml:"name"`
	Messages string        `yaml:"messages"`
	Errors   []ReportError `yaml:"errors"`
}

// SkippedTest is the flat report record for one skipped test.
type SkippedTest struct {
	File    string  `yaml:"file"`
	Line    int     `yaml:"line"`
	Column  int     `yaml:"column"`
	Feature *string `yaml:"feature"`
	Name    string  `yaml:"name"`
	Reason  *string `yaml:"reason"`
}

// Report is the serialization-ready triage report. The counts always equal
// the list lengths; SummaryBuilder maintains that invariant structurally.
type Report struct {
	FailedTestCount  int           `yaml:"failedTestCount"`
	Failed           []FailedTest  `yaml:"failed"`
	SkippedTestCount int           `yaml:"skippedTestCount"`
	Skipped          []SkippedTest `yaml:"skipped"`
}

// Empty reports whether the report carries no failed and no skipped tests.
func (r *Report) Empty() bool {
	return r.FailedTestCount == 0 && r.SkippedTestCount == 0
}

// SummaryBuilder constructs a Report from categorized results.
type SummaryBuilder struct {
	resolver PathResolver
	log      log.Logger
}

// NewSummaryBuilder creates a builder using the OS path resolver.
func NewSummaryBuilder(logger log.Logger) *SummaryBuilder {
	if logger == nil {
		logger = log.New()
	}
	return &SummaryBuilder{resolver: NewPathResolver(), log: logger}
}

// WithPathResolver overrides the resolver used for file-URL conversion and
// feature-file existence checks.
func (sb *SummaryBuilder) WithPathResolver(resolver PathResolver) *SummaryBuilder {
	sb.resolver = resolver
	return sb
}

// Build projects the failed and skipped tests of a result into a Report.
func (sb *SummaryBuilder) Build(result *tree.Result) *Report {
	report := &Report{
		Failed:  make([]FailedTest, 0, len(result.Failed)),
		Skipped: make([]SkippedTest, 0, len(result.Skipped)),
	}

	for _, test := range result.Failed {
		file, line, column := sb.resolveLocation(test)
		errors := make([]ReportError, 0, len(test.Errors))
		for _, testErr := range test.Errors {
			errors = append(errors, ReportError{
				Error:      testErr.Message,
				StackTrace: testErr.StackTrace,
			})
		}
		report.Failed = append(report.Failed, FailedTest{
			File:     file,
			Line:     line,
			Column:   column,
			Feature:  sb.featureFile(file),
			Name:     test.Name,
			Messages: joinMessages(test.Prints),
			Errors:   errors,
		})
	}

	for _, test := range result.Skipped {
		file, line, column := sb.resolveLocation(test)
		report.Skipped = append(report.Skipped, SkippedTest{
			File:    file,
			Line:    line,
			Column:  column,
			Feature: sb.featureFile(file),
			Name:    test.Name,
			Reason:  test.Metadata.SkipReason,
		})
	}

	report.FailedTestCount = len(report.Failed)
	report.SkippedTestCount = len(report.Skipped)
	return report
}

// resolveLocation derives a test's source file, line and column. Root
// location fields describe the test's true originating position and take
// precedence over the plain fields; the file falls back to the owning
// suite's path when no root URL was reported.
func (sb *SummaryBuilder) resolveLocation(test *types.Test) (string, int, int) {
	var file string
	if test.RootURL != nil {
		path, err := sb.resolver.FromFileURL(*test.RootURL)
		if err != nil {
			sb.log.Warn("Failed to resolve test root URL", "test", test.Name, "url", *test.RootURL, "error", err)
		} else {
			file = path
		}
	}
	if file == "" && test.Suite != nil {
		file = test.Suite.Path
	}

	line := intOrZero(test.RootLine, test.Line)
	column := intOrZero(test.RootColumn, test.Column)
	return file, line, column
}

// featureFile returns the path of the companion feature file for a test
// file, or nil when the file does not follow the naming convention or the
// companion does not exist on disk.
func (sb *SummaryBuilder) featureFile(testFile string) *string {
	if !strings.HasSuffix(testFile, testFileSuffix) {
		return nil
	}
	feature := strings.TrimSuffix(testFile, testFileSuffix) + featureFileSuffix
	if !sb.resolver.Exists(feature) {
		return nil
	}
	return &feature
}

func joinMessages(prints []string) string {
	if len(prints) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(prints))
	for _, message := range prints {
		cleaned = append(cleaned, stripansi.Strip(message))
	}
	return strings.Join(cleaned, "\n")
}

func intOrZero(root, plain *int) int {
	if root != nil {
		return *root
	}
	if plain != nil {
		return *plain
	}
	return 0
}
