// Package processing implements the task handlers behind the workflow lanes.
//
// Every task reads an uploaded file from the staging store. Image tasks
// transcode it into the still preview format, video tasks into the web video
// format plus a poster frame, and upload tasks copy the original into the
// final store and record its probed geometry on the catalog. Each handler
// publishes to the final store and then, once its task is complete, deletes
// the staged input unless a sibling task may still read it.
package processing
