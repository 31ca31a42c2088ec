package http

import (
	"context"

	"finsight/internal/services"
)

// AnalysisServiceInterface defines the analysis operations used by the handlers
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req services.AnalysisRequest) (*services.AnalysisReport, error)
	AnalyzeBatch(ctx context.Context, req services.BatchRequest) (*services.BatchResult, error)
	Get(id string) (*services.AnalysisReport, error)
	List() []services.ReportHeader
}
