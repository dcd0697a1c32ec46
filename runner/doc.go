// Package runner implements the orchestration layer driving a single root
// agent: it loads the session, creates the run context, streams agent events
// to the caller while persisting history and applying event side effects
// (state deltas, artifact bookkeeping), and manages run lifecycle including
// cancellation and a concurrency cap.
//
// Teams manage their own members internally; to drive a whole group chat use
// the team package directly or the agenthive façade.
package runner
