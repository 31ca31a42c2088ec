// Package http implements the REST handlers of the FinSight web service.
//
// Handlers stay thin: they decode and validate the request body with
// go-playground/validator, hand a services request to the analysis service
// and render the result with go-chi/render. Every failure goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
// Routes served by AnalysisHandler under /api/analyses:
//
//	POST /                     run one analysis, 201 with the report
//	POST /batch                run the same options over several symbols
//	GET  /                     list stored report headers, newest first
//	GET  /{id}                 full report
//	GET  /{id}/anomalies.csv   flagged days, ?precision=0..8
//	GET  /{id}/series.csv      annotated series
//	GET  /{id}/workbook.xlsx   Anomalies, Series and Statistics sheets
//	GET  /{id}/report          ?format=text|json
//
// HealthHandler serves /api/health, /api/health/ready, /api/health/live,
// /api/health/stats and /api/version.
package http
