// Package config loads service configuration from SIMS_* environment
// variables.
//
// Server settings:
//
//	SIMS_HOST="0.0.0.0"
//	SIMS_PORT="8080"
//	SIMS_HEALTH_PORT="9090"
//
// Database and tables:
//
//	SIMS_POSTGRES_URL="postgres://localhost/sims?sslmode=disable"
//	SIMS_TABLE_USER_ROLES="user_roles"
//	SIMS_TABLE_ROLE_PERMISSIONS="role_permissions"
//	SIMS_TABLE_RECORDS="submissions"
//	SIMS_TABLE_STAGING="staging_rows"
//
// Caches:
//
//	SIMS_REDIS_URL="redis://localhost:6379/0"  # optional, shared directory cache
//	SIMS_DIRECTORY_CACHE_TTL="5m"
//	SIMS_ACCESS_CACHE_TTL="1m"
//
// Authentication:
//
//	SIMS_OIDC_ISSUER_URL="https://login.example.com"
//	SIMS_OIDC_CLIENT_ID="sims"
//	SIMS_AUTH_OPTIONAL="false"
//
// Import job:
//
//	SIMS_SMARTSHEET_TOKEN="..."
//	SIMS_IMPORT_REGISTRY="/etc/sims/sheets.yaml"
//	SIMS_IMPORT_SCHEDULE="*/15 * * * *"
//	SIMS_IMPORT_SHEET_TYPES="injury,observation,recognition"
//	SIMS_S3_BUCKET="sims-attachments"
//
// Observability:
//
//	SIMS_LOG_LEVEL="info"  # debug, info, warn, error
//	SIMS_OTEL_ENABLED="true"
//	SIMS_OTEL_ENDPOINT="otel-collector:4317"
//
// The HTTP server calls LoadConfig, which validates. The import job calls
// Load followed by ValidateImport since it never verifies tokens.
package config
