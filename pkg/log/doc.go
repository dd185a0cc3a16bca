// Package log provides structured protocol logging for Etherbone.
//
// This package defines the Logger interface and Event types for capturing
// protocol events at the UDP, record and bus layers. It is separate from
// operational logging (slog): protocol capture is a complete
// machine-readable trace of every packet and cycle a socket exchanged.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For bring-up sessions: write to a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/tmp/board.eblog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw UDP payloads (FrameEvent)
//   - Wire: completed cycles with their status (CycleEvent)
//   - Bus: socket and device state changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .eblog
// extension. The eb-log tool views, filters, summarizes and exports them.
package log
