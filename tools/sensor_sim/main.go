// Command sensor_sim publishes synthetic sensor readings to the fan-out
// topic, for local runs against a localstack-style endpoint. A fraction of
// the readings are repeated or malformed to exercise the dedup stage and
// the receiver's decode filter.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	locationsfile "gasmon/internal/locations/infrastructure/file"
)

type payload struct {
	LocationID string  `json:"locationId"`
	EventID    string  `json:"eventId"`
	Value      float64 `json:"value"`
	Timestamp  int64   `json:"timestamp"`
}

func main() {
	topicARN := os.Getenv("GASMON_TOPIC_ARN")
	if topicARN == "" {
		log.Fatal("GASMON_TOPIC_ARN is required")
	}
	locationsPath := getenvDefault("GASMON_LOCATIONS_FILE", "locations.json")
	region := getenvDefault("GASMON_AWS_REGION", "eu-west-1")
	endpoint := os.Getenv("GASMON_AWS_ENDPOINT")
	ratePerSecond := getenvIntDefault("SENSOR_SIM_RATE", 5)
	duplicateRate := getenvFloatDefault("SENSOR_SIM_DUPLICATE_RATE", 0.1)
	malformedRate := getenvFloatDefault("SENSOR_SIM_MALFORMED_RATE", 0.02)

	directory, err := locationsfile.Load(locationsPath)
	if err != nil {
		log.Fatalf("locations error: %v", err)
	}
	known := directory.All()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("aws config error: %v", err)
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second / time.Duration(ratePerSecond))
	defer ticker.Stop()

	log.Printf("publishing ~%d readings/s to %s", ratePerSecond, topicARN)
	var lastMessage string
	for range ticker.C {
		var message string
		switch {
		case lastMessage != "" && rng.Float64() < duplicateRate:
			message = lastMessage
		case rng.Float64() < malformedRate:
			message = fmt.Sprintf(`{"locationId": %d}`, rng.Intn(100))
		default:
			location := known[rng.Intn(len(known))]
			body, err := json.Marshal(payload{
				LocationID: location.ID,
				EventID:    uuid.NewString(),
				Value:      rng.Float64() * 100,
				Timestamp:  time.Now().Unix(),
			})
			if err != nil {
				log.Printf("marshal error: %v", err)
				continue
			}
			message = string(body)
			lastMessage = message
		}

		if _, err := client.Publish(context.Background(), &sns.PublishInput{
			TopicArn: aws.String(topicARN),
			Message:  aws.String(message),
		}); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
