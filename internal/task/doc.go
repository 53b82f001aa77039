// Package task is the asynchronous execution engine. It bounds how many
// pipeline executions run at once (AdmissionController), owns the state of
// every task (Manager), and runs admitted jobs on a fixed pool of workers
// (Runner) whose outcome always lands in a terminal task state.
package task
