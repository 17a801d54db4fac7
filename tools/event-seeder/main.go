// event-seeder publishes synthetic events onto the ingest stream for
// local development and load testing.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/eventlake-systems/eventlake/common/messaging"
	"github.com/eventlake-systems/eventlake/common/messaging/nats"
	"github.com/eventlake-systems/eventlake/common/models"
)

var (
	natsURL    = flag.String("nats-url", "nats://localhost:4222", "NATS server URL")
	shard      = flag.String("shard", "shard-0", "Stream shard to publish to")
	count      = flag.Int("count", 100, "Number of events to generate")
	interval   = flag.Duration("interval", 10*time.Millisecond, "Interval between events")
	eventTypes = flag.String("types", "transaction,user_action,metric,system_event", "Comma-separated list of event types")
	timeSpread = flag.Duration("time-spread", 24*time.Hour, "Spread event timestamps over this period (0 for now)")
	badRatio   = flag.Float64("bad-ratio", 0, "Fraction of events generated without a timestamp, to exercise validation")
)

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	types := parseEventTypes(*eventTypes)
	if len(types) == 0 {
		log.Fatal("no valid event types; choose from transaction, user_action, metric, system_event")
	}

	log.Printf("Starting event seeder:")
	log.Printf("  NATS URL: %s", *natsURL)
	log.Printf("  Shard: %s", *shard)
	log.Printf("  Event count: %d", *count)
	log.Printf("  Event types: %v", types)
	log.Printf("  Time spread: %v", *timeSpread)

	client, err := nats.NewJetStreamClient(nats.Config{
		URL:  *natsURL,
		Name: "eventlake-seeder",
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := client.CreateOrUpdateStream(ctx, nats.EventsStream); err != nil {
		log.Fatalf("Failed to ensure events stream: %v", err)
	}

	subject := messaging.IngestShardSubject(*shard)
	successCount := 0
	failCount := 0

	for i := 0; i < *count; i++ {
		eventType := types[rand.Intn(len(types))]
		event := generateEvent(eventType, *timeSpread, *badRatio)

		payload, err := encodeEvent(event)
		if err != nil {
			log.Printf("Failed to encode event: %v", err)
			failCount++
			continue
		}

		if _, err := client.PublishSync(ctx, subject, payload); err != nil {
			log.Printf("Failed to publish event: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d events published", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Seeding complete:")
	log.Printf("  Success: %d events", successCount)
	log.Printf("  Failed: %d events", failCount)
}

// generateEvent builds one synthetic event of the given type. A badRatio
// fraction of events omit the timestamp so the validation path gets
// exercised too.
func generateEvent(eventType models.EventType, spread time.Duration, badRatio float64) map[string]interface{} {
	ts := time.Now().UTC()
	if spread > 0 {
		ts = ts.Add(-time.Duration(rand.Int63n(int64(spread))))
	}

	event := map[string]interface{}{
		"event_type": string(eventType),
		"timestamp":  ts.Format(time.RFC3339),
	}
	if badRatio > 0 && rand.Float64() < badRatio {
		delete(event, "timestamp")
	}

	switch eventType {
	case models.EventTypeTransaction:
		event["amount"] = gofakeit.Price(0.5, 5000)
		event["currency"] = gofakeit.CurrencyShort()
		event["customer_id"] = gofakeit.UUID()
		event["merchant"] = gofakeit.Company()
	case models.EventTypeUserAction:
		event["session_duration"] = float64(rand.Intn(600))
		event["user_id"] = gofakeit.Username()
		event["action"] = gofakeit.RandomString([]string{"login", "logout", "click", "purchase", "search"})
	case models.EventTypeMetric:
		event["value"] = gofakeit.Float64Range(-20, 150)
		event["metric_name"] = gofakeit.RandomString([]string{"cpu_usage", "memory_usage", "request_latency", "queue_depth"})
		event["host"] = gofakeit.DomainName()
	case models.EventTypeSystemEvent:
		event["component"] = gofakeit.AppName()
		event["message"] = gofakeit.HackerPhrase()
	}

	return event
}

// encodeEvent marshals and base64-encodes an event the way stream
// producers deliver them.
func encodeEvent(event map[string]interface{}) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

func parseEventTypes(types string) []models.EventType {
	result := []models.EventType{}
	current := ""
	flush := func() {
		if current == "" {
			return
		}
		if t, err := models.ParseEventType(current); err == nil {
			result = append(result, t)
		} else {
			log.Printf("Skipping unknown event type %q", current)
		}
		current = ""
	}
	for _, c := range types {
		if c == ',' {
			flush()
		} else {
			current += string(c)
		}
	}
	flush()
	return result
}
