// Package cli implements the finsight command line: analyze runs one detection
// and writes CSV/XLSX reports, serve starts the HTTP application, check validates
// configuration and provider credentials.
package cli
