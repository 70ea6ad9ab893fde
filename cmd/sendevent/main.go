// Command sendevent publishes a single watch notification to the source
// topic, exercising the same delivery path the camera push service uses.
//
// Usage:
//
//	go run ./cmd/sendevent \
//	  -brokers localhost:9092 \
//	  -topic smoke-events \
//	  -address "Hansung University" \
//	  -status smoking \
//	  -photo https://example.com/cam7.jpg
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sperola37/smoke-watching/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	topic := flag.String("topic", "smoke-events", "source topic to publish to")
	address := flag.String("address", "", "watch-point address (required)")
	status := flag.String("status", "smoking", "notification status tag")
	photo := flag.String("photo", "", "optional photo URL")
	occurredAt := flag.String("occurred-at", "", "optional RFC3339 event time; defaults to now at the consumer")
	latitude := flag.String("latitude", "", "optional coordinate hint")
	longitude := flag.String("longitude", "", "optional coordinate hint")
	flag.Parse()

	if *address == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -address")
	}

	payload := domain.RawPayload{
		Address:    *address,
		Status:     *status,
		Photo:      *photo,
		OccurredAt: *occurredAt,
		Latitude:   *latitude,
		Longitude:  *longitude,
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(*address),
		Value: value,
	}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	fmt.Printf("published %s notification for %q to %s\n", *status, *address, *topic)
	return nil
}
