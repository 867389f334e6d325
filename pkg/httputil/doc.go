// Package httputil holds the small JSON response, request parsing and
// middleware helpers shared by the HTTP handlers.
//
// Errors are written as {"error": msg}. The import and query endpoints use
// WriteFailure, which writes {"success": false, "error": msg}.
package httputil
