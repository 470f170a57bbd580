// Package log captures a machine-readable trace of channel traffic.
//
// It is separate from operational logging (slog). A Logger receives an
// Event for every raw frame (transport layer), every decoded message (wire
// layer) and every connection or subscription state change (service
// layer). Sinks:
//
//	log.NoopLogger{}                  // disabled
//	log.NewSlogAdapter(slog.Default()) // console, at debug level
//	log.NewFileLogger("client.slog")   // CBOR stream on disk
//	log.NewMultiLogger(a, b)           // fan out
//
// Capture files are a plain sequence of CBOR-encoded events with integer
// keys. Reader streams them back, optionally through a Filter; the
// streamio-log command views and exports them.
package log
