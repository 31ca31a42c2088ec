package http

import (
	"context"

	"finsight/internal/services"
)

func contextWithReport(ctx context.Context, report *services.AnalysisReport) context.Context {
	return context.WithValue(ctx, reportCtxKey{}, report)
}

func reportFromContext(ctx context.Context) *services.AnalysisReport {
	report, _ := ctx.Value(reportCtxKey{}).(*services.AnalysisReport)
	return report
}
