// Package workflow runs queued tasks through their registered handlers.
//
// The Manager runs one lane per task kind. Each lane has a configurable
// number of workers that claim tasks from the queue, heartbeat them while
// the handler runs, and record the outcome: completion, a delayed retry with
// exponential backoff while attempts remain, or a terminal failure. A
// maintenance loop reclaims tasks whose heartbeat went stale and promotes
// delayed tasks whose backoff has elapsed.
//
// Handlers that share staged inputs implement stage.Cleaner; the manager
// calls Cleanup only after the task is marked complete, so the last task to
// finish sees every sibling as terminal and removes the input.
package workflow
