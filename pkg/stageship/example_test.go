package stageship_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/stageship/pkg/stageship"
)

// printSink prints every payload it receives.
type printSink struct{}

func (printSink) VerifyActive(ctx context.Context, stream string) (bool, error) {
	return true, nil
}

func (printSink) Submit(ctx context.Context, payload []byte) (string, error) {
	fmt.Printf("submitted %q\n", payload)
	return "seq-1", nil
}

// ExampleNew stages three records and delivers the resulting batch.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "stageship-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	cfg := stageship.NewConfig("clicks")
	cfg.Root = filepath.Join(dir, "out")
	cfg.MaxRows = 3

	ctx := context.Background()
	s, err := stageship.New(ctx, cfg, stageship.WithSink(printSink{}))
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, r := range []string{`{"id":"A"}`, `{"id":"B"}`, `{"id":"C"}`} {
		if err := s.Append(r); err != nil {
			fmt.Println(err)
			return
		}
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	counts, _ := s.Counts()
	fmt.Printf("delivered %d, archived %d\n", res.Delivered, counts.Archived)

	// Output:
	// submitted "{\"id\":\"A\"}\n{\"id\":\"B\"}\n{\"id\":\"C\"}\n"
	// delivered 1, archived 1
}

// Example_withEventHandler shows how to observe promotions and deliveries.
func Example_withEventHandler() {
	cfg := stageship.NewConfig("clicks")
	cfg.ServiceURL = "https://ingest.example.com"
	cfg.PollInterval = 5 * time.Second

	s, err := stageship.New(context.Background(), cfg,
		stageship.WithEventHandler(&logHandler{}),
		stageship.WithArchiveRetention(stageship.DefaultRetentionConfig()),
	)
	if err != nil {
		fmt.Printf("failed to create sender: %v\n", err)
		return
	}

	_ = s // Start, Append, Stop...
}

// logHandler implements stageship.EventHandler.
type logHandler struct {
	stageship.BaseEventHandler // Embed for no-op defaults
}

func (h *logHandler) OnBatchPromoted(event stageship.BatchPromotedEvent) {
	fmt.Printf("batch %s ready (%d rows)\n", event.Name, event.Rows)
}

func (h *logHandler) OnBatchDelivered(event stageship.BatchDeliveredEvent) {
	fmt.Printf("batch %s acknowledged as %s, %s\n", event.Name, event.AckID, event.Disposition)
}

func (h *logHandler) OnDeliveryError(event stageship.DeliveryErrorEvent) {
	fmt.Printf("batch %s retried next cycle: %v\n", event.Name, event.Error)
}
