// Package http contains the HTTP handlers for the dashboard API.
//
// Handlers depend on service interfaces, return render.JSON envelopes of
// the form {"status":"success","data":...} and report failures as
// RFC 7807 problem documents through the shared error handler.
package http
