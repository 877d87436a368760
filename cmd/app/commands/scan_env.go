package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/allisson/dominion/internal/entropy"
)

// ErrHighRiskSecrets is returned when the scan finds high-risk secrets, so the command
// exits non-zero.
var ErrHighRiskSecrets = errors.New("high-risk secrets found")

// ScanEnvOptions selects what scan-env inspects.
type ScanEnvOptions struct {
	Dir            string
	IncludeProcess bool
	// Environ overrides os.Environ for the process scan.
	Environ []string
	Format  string
}

// env files that document variables rather than hold them
var skippedEnvFileHints = []string{"example", "template", "sample", "dist"}

// RunScanEnv scans every .env* file in opts.Dir and, optionally, the process
// environment for known credential formats and low-entropy secrets.
func RunScanEnv(
	validator *entropy.Validator,
	logger *slog.Logger,
	writer io.Writer,
	opts ScanEnvOptions,
) error {
	if err := validateFormat(opts.Format); err != nil {
		return err
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	files, err := envFiles(opts.Dir)
	if err != nil {
		return err
	}

	report := &entropy.Report{Findings: []entropy.Finding{}}
	for _, path := range files {
		vars, err := godotenv.Read(path)
		if err != nil {
			logger.Warn("skipping unreadable env file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		report.Merge(validator.ScanVariables(path, vars))
	}

	if opts.IncludeProcess {
		environ := opts.Environ
		if environ == nil {
			environ = os.Environ()
		}
		report.Merge(validator.ScanVariables("process", environToMap(environ)))
	}

	logger.Info("environment scan completed",
		slog.Int("files", len(files)),
		slog.Int("variables", report.TotalVars),
		slog.Int("findings", len(report.Findings)),
		slog.String("risk_level", report.RiskLevel()),
	)

	if opts.Format == FormatJSON {
		if err := writeJSON(writer, struct {
			Files     []string `json:"files"`
			RiskLevel string   `json:"risk_level"`
			*entropy.Report
		}{Files: files, RiskLevel: report.RiskLevel(), Report: report}); err != nil {
			return err
		}
	} else {
		writeScanText(writer, files, report)
	}

	if report.RiskLevel() == "high" {
		return fmt.Errorf("%w: %d high-risk finding(s)", ErrHighRiskSecrets, report.Summary.HighRisk)
	}
	return nil
}

func envFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ".env*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list env files: %w", err)
	}

	files := make([]string, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if isDocumentationEnvFile(filepath.Base(path)) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func isDocumentationEnvFile(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range skippedEnvFileHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func environToMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = value
	}
	return vars
}

func writeScanText(w io.Writer, files []string, report *entropy.Report) {
	_, _ = fmt.Fprintf(w, "Scanned %d variable(s) from %d file(s)\n", report.TotalVars, len(files))
	_, _ = fmt.Fprintf(w, "Risk level: %s (high: %d, medium: %d, low entropy: %d)\n",
		report.RiskLevel(), report.Summary.HighRisk, report.Summary.MediumRisk, report.Summary.LowEntropy)

	if len(report.Findings) == 0 {
		_, _ = fmt.Fprintln(w, "No findings")
		return
	}

	_, _ = fmt.Fprintln(w)
	for _, f := range report.Findings {
		detail := f.Pattern
		if f.Reason != "" {
			detail = f.Reason
		}
		_, _ = fmt.Fprintf(w, "[%s] %s (%s): %s %s\n", f.Severity, f.Variable, f.Source, f.Issue, detail)
	}
}
