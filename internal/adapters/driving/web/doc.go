// Package web exposes the session workflow as a JSON HTTP API.
//
// Routes mirror the browser flow of uploading a PDF, processing it and asking
// questions about it. Every JSON response carries a "success" field; failures
// add "error" and, for transient service problems, "retry_suggested".
package web
