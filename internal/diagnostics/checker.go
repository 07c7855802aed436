package diagnostics

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
)

// HealthChecker checks the analysis service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (apiclient.ServiceStatus, error)
}

// Checker validates service reachability and required filesystem paths.
type Checker struct {
	healthFor  func(baseURL string) HealthChecker
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies and the API client.
func NewChecker() *Checker {
	return &Checker{
		healthFor: func(baseURL string) HealthChecker {
			return apiclient.New(baseURL)
		},
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks and returns a combined report. The remote check is
// advisory: an unreachable service is reported as a warning.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	baseItem := c.checkBaseURL(settings.BaseURL)
	items := []domain.DiagnosticItem{baseItem}
	if baseItem.Status == domain.DiagnosticStatusPass {
		items = append(items, c.checkService(ctx, settings.BaseURL))
	}
	items = append(items,
		c.checkLanguage(settings.Language),
		c.checkOutputDir(settings.OutputDir),
	)

	report := domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		Items:       items,
	}
	for _, item := range items {
		switch item.Status {
		case domain.DiagnosticStatusFail:
			report.HasFailures = true
		case domain.DiagnosticStatusWarn:
			report.HasWarnings = true
		}
	}
	return report
}

// checkBaseURL verifies the configured service address is an absolute http(s) URL.
func (c *Checker) checkBaseURL(baseURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "base_url",
		Name: "Service URL",
	}

	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Service URL is empty."
		item.Hint = "Set the analysis service address, for example http://localhost:8000."
		return item
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Service URL is not a valid http(s) address: %s", raw)
		item.Hint = "Use a full address including scheme and host."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", raw)
	return item
}

// checkService calls the health endpoint of the analysis service.
func (c *Checker) checkService(ctx context.Context, baseURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "service",
		Name: "Analysis service",
	}

	status, err := c.healthFor(baseURL).HealthCheck(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = apiclient.MessageOf(err)
		if apiclient.KindOf(err) == domain.ErrorKindUnreachable {
			item.Hint = "Start the backend or correct the service URL. Submissions will fail until it responds."
		} else {
			item.Hint = "The service answered but reported a problem. Submissions may still work."
		}
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Service reachable (status %s)", status.Status)
	return item
}

// checkLanguage validates the default language hint.
func (c *Checker) checkLanguage(language string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "language",
		Name: "Default language",
	}

	lang := domain.Language(strings.ToLower(strings.TrimSpace(language)))
	if lang == domain.LanguageAuto || lang.QueryCode() != "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Language: %s", lang)
		return item
	}

	item.Status = domain.DiagnosticStatusWarn
	item.Message = fmt.Sprintf("Unsupported language %q, the service will auto-detect.", language)
	item.Hint = "Choose auto, en or he."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where exported documents can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for document export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	healthFor func(string) HealthChecker,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		healthFor:  healthFor,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
