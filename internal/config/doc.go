// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default()
//	2. A YAML file (FINSIGHT_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables, after loading a .env file if one exists
//
// # Environment Variables
//
// All variables use the FINSIGHT_ prefix followed by the section name:
//
//	FINSIGHT_SERVER_PORT=8080
//	FINSIGHT_DETECTION_Z_MULTIPLIER=2.5
//	FINSIGHT_PROVIDER_KIND=yahoo
//	FINSIGHT_PROVIDER_API_KEY=...
//	FINSIGHT_EXPORT_PRECISION=4
//
// ALPHA_VANTAGE_API_KEY is honoured when FINSIGHT_PROVIDER_API_KEY is unset.
package config
