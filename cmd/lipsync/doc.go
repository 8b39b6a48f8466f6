// Command lipsync drives the lip-sync pipeline.
//
// It runs one-shot conversions in-process ("lipsync synthesize"), runs the
// daemon ("lipsync daemon"), and talks to a running daemon over its HTTP API
// ("lipsync jobs ...", "lipsync status").
package main
