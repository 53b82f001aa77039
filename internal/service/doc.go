// Package service provides the application-level task dispatcher that sits
// between the HTTP layer and the task engine.
//
// A submission is admitted, registered with the task manager and handed to
// the background runner in one call. Callers receive the task id right away
// and poll for the outcome.
package service
