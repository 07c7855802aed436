package bootstrap

import (
	"context"
	"strings"
	"sync"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
)

// serviceClient lets settings changes replace the API client between runs.
type serviceClient struct {
	mu     sync.RWMutex
	client *apiclient.Client
	newFn  func(baseURL string) *apiclient.Client
}

func newServiceClient(baseURL string) *serviceClient {
	s := &serviceClient{newFn: func(base string) *apiclient.Client { return apiclient.New(base) }}
	s.client = s.newFn(baseURL)
	return s
}

// SetBaseURL swaps the client when the address changed.
func (s *serviceClient) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.BaseURL() == strings.TrimRight(strings.TrimSpace(baseURL), "/") {
		return
	}
	s.client = s.newFn(baseURL)
}

func (s *serviceClient) current() *apiclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// SubmitForAnalysis delegates to the current client.
func (s *serviceClient) SubmitForAnalysis(ctx context.Context, sub domain.AudioSubmission, onProgress apiclient.ProgressFunc) (domain.AnalysisResult, error) {
	return s.current().SubmitForAnalysis(ctx, sub, onProgress)
}

// ExportResult delegates to the current client.
func (s *serviceClient) ExportResult(ctx context.Context, result domain.AnalysisResult) (apiclient.Document, error) {
	return s.current().ExportResult(ctx, result)
}
