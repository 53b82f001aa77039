// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts the zonal statistics service to HTTP:
// submissions are answered with 202 and a task id, and clients poll the task
// endpoint until the task reaches a terminal state.
package api
