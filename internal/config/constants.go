package config

import "time"

// Application constants
const (
	AppName    = "finsight"
	AppVersion = "1.0.0"

	// Detection defaults. The bounds are the range offered to callers.
	DefaultZMultiplier        = 3.0
	DefaultPreEventWindowDays = 3
	MinZMultiplier            = 2.0
	MaxZMultiplier            = 5.0
	MinWindowDays             = 1
	MaxWindowDays             = 7

	// Providers
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"

	// Alpha Vantage free tier
	DefaultProviderRequestsPerMinute = 5
	DefaultProviderRetries           = 3

	// Rate Limiting
	DefaultRateLimitRPS = 10
	DefaultBurstSize    = 20

	// Network Timeouts
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultOperationTimeout = 2 * time.Minute

	// Export
	DefaultReportsDir      = "data/reports"
	DefaultExportPrecision = 2

	// Batch
	DefaultBatchConcurrency = 4
	DefaultBatchMaxSymbols  = 25
	DefaultStoreCapacity    = 100
)
