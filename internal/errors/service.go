// internal/errors/service.go - Retry and user-facing presentation of scrape failures
package errors

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service retries caller-level operations and turns failures into CLI output
type Service struct {
	retryConfig    RetryConfig
	messageHandler *MessageHandler
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a service with the default retry policy
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    2,
			BaseDelay:     time.Second * 5,
			BackoffFactor: 2.0,
			MaxDelay:      time.Minute,
		},
		messageHandler: &MessageHandler{showTechnical: false},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry policy
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// ExecuteWithRetry retries operation while its failure is retryable.
// Navigation failures are retried here because the navigator never retries itself.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		delay := s.calculateDelay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			continue
		}
	}

	return fmt.Errorf("operation %s failed: %w", operationName, lastErr)
}

// shouldRetry determines if error is retryable
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}

	switch KindOf(err) {
	case KindNavigation:
		return true
	case KindProtectionBypass, KindPersistence, KindConfig, KindMergeRead:
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range []string{"timeout", "connection refused", "connection reset", "temporary"} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := float64(s.retryConfig.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= s.retryConfig.BackoffFactor
	}
	if time.Duration(delay) > s.retryConfig.MaxDelay {
		return s.retryConfig.MaxDelay
	}
	return time.Duration(delay)
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch KindOf(err) {
	case KindNavigation:
		return "Page Could Not Be Loaded",
			"The search results page did not finish loading in time.",
			[]string{
				"Check your internet connection",
				"Increase navigation.timeout in the configuration",
				"Run the scrape again; navigation failures are not retried automatically more than twice",
			}
	case KindProtectionBypass:
		return "Blocked By Anti-Bot Protection",
			"The site kept showing a challenge page after every bypass step.",
			[]string{
				"Run with browser.headless: false and solve the challenge manually",
				"Increase navigation.long_wait and navigation.renavigate_wait",
				"Wait a few minutes before retrying from the same IP address",
			}
	case KindPersistence:
		return "Could Not Save Results",
			"Writing the CSV output failed, results were not saved.",
			[]string{
				"Check that the output directory is writable",
				"Check free disk space",
				"Appending requires the target CSV to exist already",
			}
	case KindConfig:
		return "Configuration Error",
			"The configuration or command arguments are invalid.",
			[]string{
				"Run 'leadscrapexter validate <config.yaml>'",
				"Check YAML indentation (use spaces, not tabs)",
			}
	case KindMergeRead:
		return "Could Not Read CSV",
			"A CSV file could not be read during merge.",
			[]string{"Check that the file is a valid CSV export"}
	}

	if Is(err, ErrNothingToMerge) {
		return "Nothing To Merge",
			"No CSV files under the output root matched the merge pattern.",
			[]string{
				"Run 'leadscrapexter scrape' first",
				"Check --output and --pattern",
				"Run 'leadscrapexter stats' to list what is there",
			}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "Operation Timed Out",
			"The operation did not finish within its time budget.",
			[]string{"Increase the relevant timeout in the configuration"}
	}
	if strings.Contains(errStr, "chrome") || strings.Contains(errStr, "exec") {
		return "Browser Failed To Start",
			"The headless browser could not be launched.",
			[]string{
				"Install Google Chrome or Chromium",
				"Set browser.exec_path to the browser binary",
			}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{
			"Try running the command again",
			"Run with --verbose for technical details",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindNavigation:
		return 3
	case KindProtectionBypass:
		return 4
	case KindPersistence:
		return 5
	case KindMergeRead:
		return 6
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	output := fmt.Sprintf("✗ %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		output += fmt.Sprintf("\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		output += "\nSuggestions:\n"
		for _, suggestion := range suggestions {
			output += fmt.Sprintf("  • %s\n", suggestion)
		}
	}

	return output
}
