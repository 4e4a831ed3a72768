// Package srtcast implements the control core of a live media-streaming
// client for SRT-style reliable transports.
//
// A Session coordinates the streaming lifecycle: it connects the transport
// producer, starts and stops the external media pipeline, and runs the
// adaptive bitrate regulation loop that tunes encoder targets to observed
// network conditions. The transport wire protocol, media capture, encoding,
// and muxing are external collaborators behind small interfaces; this
// module owns only their sequencing and the regulation timeline.
//
// # Getting Started
//
// Build a session from a transport producer and a media pipeline, with an
// optional regulation policy:
//
//	cfg := regulator.DefaultConfig()
//	session, err := srtcast.NewSession(srtcast.Config{
//	    Producer:         producer,
//	    Pipeline:         pipeline,
//	    RegulatorFactory: regulator.NewSRTRegulator,
//	    RegulatorConfig:  &cfg,
//	    StreamID:         "live/main",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	if err := session.StartStreamTo("ingest.example.com", 9000); err != nil {
//	    log.Fatal(err)
//	}
//
// While streaming, the session reads a fresh statistics snapshot from the
// producer every regulation interval and hands it to the regulator, which
// adjusts the shared bitrate cell the pipeline's encoders read from. The
// regulation loop is strictly nested inside the streaming window: it starts
// inside StartStream and is cancelled before the pipeline stops.
//
// # Lifecycle
//
// Sessions move through idle, connecting, connected, streaming, stopped,
// and failed states. Connect is permitted from idle, stopped, and failed;
// StartStream requires connected; StopStream requires streaming. A lost
// connection tears the stream down in the same order as StopStream and
// leaves the session failed, from where Connect may retry.
//
// # Connection Events
//
// SetConnectionEventCallback attaches a single observer for transport
// connect, disconnect, and connection-lost events. Events pass through
// unmodified; the observer may be replaced at any time and replacement
// applies to the next event.
//
// Connect and StartStreamTo block on network I/O. Do not call them from
// latency-sensitive goroutines.
package srtcast
