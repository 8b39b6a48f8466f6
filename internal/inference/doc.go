// Package inference invokes the external lip-sync program once per segment.
//
// The program is launched as
//
//	<binary> <script> [extra_args...] --face <video> --audio <audio> --outfile <output>
//
// through a process.Runner, so tests can substitute processtest.Runner.
package inference
