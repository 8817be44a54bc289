// Package stageship provides an embeddable, crash-safe staging queue that
// delivers records to a stream-ingestion service in batches.
//
// Records are appended to batch files under a root directory. A batch file
// moves from staging/ to pending/ once it holds MaxRows rows, and from
// pending/ to archived/ (or is deleted) once the service acknowledged it.
// Every move is a rename, so a batch is in exactly one state at any time and
// survives a crash at any point. Delivery is at-least-once: a batch that
// could not be delivered stays pending and is retried on the next cycle.
//
// # Basic Usage
//
//	cfg := stageship.NewConfig("my-stream")
//	cfg.ServiceURL = "https://ingest.example.com"
//	cfg.AuthKey = "your-api-key"
//
//	s, err := stageship.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = s.Append(`{"event":"login","user":42}`)
//
//	// ... run until shutdown signal ...
//
//	if err := s.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Structured Payloads
//
// With [Config.Structured] set, only flat JSON objects (a '{', no nested
// braces, a '}') are taken from each batch, one per line. A record cut off
// by a crash is dropped instead of being shipped. Records with nested
// objects must be shipped unstructured.
//
// # Event Handling
//
// Implement [EventHandler], usually by embedding [BaseEventHandler], and
// pass it via [WithEventHandler]. Events are called synchronously from the
// goroutine doing the work.
//
// # Single Process
//
// One root directory must be used by one process at a time. Several
// goroutines may call [Sender.Append] concurrently.
package stageship
