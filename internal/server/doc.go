// Package server wires the HTTP API and the WebSocket observer channel on
// top of echo.
package server
