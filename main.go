package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gasmon/internal/analytics"
	locations "gasmon/internal/locations/domain"
	locationsfile "gasmon/internal/locations/infrastructure/file"
	locationspg "gasmon/internal/locations/infrastructure/postgres"
	locationss3 "gasmon/internal/locations/infrastructure/s3"
	"gasmon/internal/observability/metrics"
	"gasmon/internal/pipeline"
	"gasmon/internal/receiver"
	"gasmon/internal/sink"
)

const (
	dedupWindow   = 300 * time.Second
	averageWindow = 60 * time.Second
)

var (
	errInvalidRunDuration     = errors.New("GASMON_RUN_SECONDS must be a positive integer")
	errMissingTopicARN        = errors.New("GASMON_TOPIC_ARN is required")
	errMissingLocationsBucket = errors.New("GASMON_LOCATIONS_BUCKET is required for the s3 locations source")
	errMissingDatabaseURL     = errors.New("DATABASE_URL is required for the postgres locations source")
	errMissingLocationsFile   = errors.New("GASMON_LOCATIONS_FILE is required for the file locations source")
	errUnknownLocationsSource = errors.New("GASMON_LOCATIONS_SOURCE must be s3, postgres or file")
)

type config struct {
	RunDurationSeconds int    `yaml:"run_duration_seconds"`
	AWSRegion          string `yaml:"aws_region"`
	AWSEndpoint        string `yaml:"aws_endpoint"`
	TopicARN           string `yaml:"topic_arn"`

	LocationsSource string `yaml:"locations_source"`
	LocationsBucket string `yaml:"locations_bucket"`
	LocationsKey    string `yaml:"locations_key"`
	LocationsFile   string `yaml:"locations_file"`
	DatabaseURL     string `yaml:"database_url"`

	MinuteCSVPath   string `yaml:"minute_csv_path"`
	LocationCSVPath string `yaml:"location_csv_path"`
	XLSXReportPath  string `yaml:"xlsx_report_path"`
	PDFReportPath   string `yaml:"pdf_report_path"`
	SurfacePath     string `yaml:"surface_path"`

	MetricsAddr string `yaml:"metrics_addr"`
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init(logger)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Printf("metrics server error: %v", err)
			}
		}()
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
	}

	runDuration := time.Duration(cfg.RunDurationSeconds) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatalf("aws config error: %v", err)
	}

	directory, err := loadDirectory(context.Background(), cfg, awsCfg, logger)
	if err != nil {
		logger.Fatalf("locations error: %v", err)
	}
	logger.Printf("loaded %d sensor locations", directory.Len())

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	})
	snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	})

	subscription, err := receiver.NewQueueSubscription(sqsClient, snsClient, cfg.TopicARN, logger)
	if err != nil {
		logger.Fatalf("subscription error: %v", err)
	}
	if err := subscription.Open(context.Background()); err != nil {
		logger.Fatalf("subscription open error: %v", err)
	}
	defer func() {
		if err := subscription.Close(context.Background()); err != nil {
			logger.Printf("subscription close error: %v", err)
		}
	}()

	events, err := receiver.NewReceiver(sqsClient, subscription.QueueURL(), logger)
	if err != nil {
		logger.Fatalf("receiver error: %v", err)
	}

	clock := pipeline.SystemClock{}
	source := pipeline.NewFixedDurationSource(runDuration, clock)
	dedup := pipeline.NewDeduplicator(dedupWindow, clock)
	averager := pipeline.NewWindowedAverager(averageWindow, clock)
	aggregator, err := analytics.NewLocationAggregator(directory)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}
	chain := pipeline.Chain(source, dedup, averager, aggregator)

	var printerOpts []sink.PrinterOption
	var surface *sink.SurfaceWriter
	if cfg.SurfacePath != "" {
		surfaceFile, err := os.Create(cfg.SurfacePath)
		if err != nil {
			logger.Fatalf("surface file error: %v", err)
		}
		defer surfaceFile.Close()
		surface, err = sink.NewSurfaceWriter(surfaceFile, aggregator)
		if err != nil {
			logger.Fatalf("surface writer error: %v", err)
		}
		printerOpts = append(printerOpts, sink.WithEventObserver(surface.Observe))
	}
	printer, err := sink.NewPrinter(os.Stdout, printerOpts...)
	if err != nil {
		logger.Fatalf("printer error: %v", err)
	}

	// The source stage can only cut the stream off when an event is pulled,
	// so the driving context carries the same deadline and ends the run on
	// a silent topic.
	ctx, cancel := context.WithTimeout(context.Background(), runDuration)
	defer cancel()

	logger.Printf("processing events for %d seconds", cfg.RunDurationSeconds)
	if err := pipeline.Run(chain, printer, events.Events(ctx)); err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}
	finishedAt := time.Now()

	summary := sink.RunSummary{
		RunDuration:       runDuration,
		EventsProcessed:   source.EventsProcessed(),
		DuplicatesSkipped: dedup.DuplicatesSkipped(),
		FinishedAt:        finishedAt,
	}
	logger.Printf("processed %d events in %d seconds (%.2f events/s), %d duplicates skipped",
		summary.EventsProcessed, cfg.RunDurationSeconds, summary.EventsPerSecond(), summary.DuplicatesSkipped)
	for _, average := range averager.Averages() {
		logger.Printf("average value at %s: %g", average.ClosedAt.Local().Format("02/01/2006 15:04:05"), average.Value)
	}
	for _, location := range aggregator.ReportedLocations() {
		logger.Printf("x=%g y=%g average value=%g", location.X, location.Y, aggregator.AverageFor(location.ID))
	}

	if err := sink.SaveMinuteAveragesCSV(cfg.MinuteCSVPath, averager.Averages()); err != nil {
		logger.Fatalf("minute averages export error: %v", err)
	}
	if err := sink.SaveLocationAveragesCSV(cfg.LocationCSVPath, aggregator, finishedAt); err != nil {
		logger.Fatalf("location averages export error: %v", err)
	}
	if cfg.XLSXReportPath != "" {
		report, err := sink.BuildRunReportXLSX(summary, averager.Averages(), aggregator)
		if err != nil {
			logger.Fatalf("xlsx report error: %v", err)
		}
		if err := os.WriteFile(cfg.XLSXReportPath, report, 0o644); err != nil {
			logger.Fatalf("xlsx report write error: %v", err)
		}
	}
	if cfg.PDFReportPath != "" {
		report, err := sink.BuildRunReportPDF(summary, averager.Averages(), aggregator)
		if err != nil {
			logger.Fatalf("pdf report error: %v", err)
		}
		if err := os.WriteFile(cfg.PDFReportPath, report, 0o644); err != nil {
			logger.Fatalf("pdf report write error: %v", err)
		}
	}
	if surface != nil {
		if err := surface.Flush(finishedAt); err != nil {
			logger.Printf("surface flush error: %v", err)
		}
	}
}

// loadDirectory fetches the static location set from the configured source.
func loadDirectory(ctx context.Context, cfg config, awsCfg aws.Config, logger *log.Logger) (*locations.Directory, error) {
	switch cfg.LocationsSource {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		repo, err := locationspg.NewLocationRepository(db)
		if err != nil {
			return nil, err
		}
		return repo.Load(ctx)
	case "file":
		return locationsfile.Load(cfg.LocationsFile)
	default:
		s3Client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
				o.UsePathStyle = true
			}
		})
		loader, err := locationss3.NewLoader(s3Client, cfg.LocationsBucket, cfg.LocationsKey, logger)
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx)
	}
}

// loadConfig reads configuration from the environment, with an optional
// YAML overlay pointed to by GASMON_CONFIG.
func loadConfig() (config, error) {
	cfg := config{
		RunDurationSeconds: getenvIntDefault("GASMON_RUN_SECONDS", 0),
		AWSRegion:          getenvDefault("GASMON_AWS_REGION", "eu-west-1"),
		AWSEndpoint:        os.Getenv("GASMON_AWS_ENDPOINT"),
		TopicARN:           os.Getenv("GASMON_TOPIC_ARN"),
		LocationsSource:    getenvDefault("GASMON_LOCATIONS_SOURCE", "s3"),
		LocationsBucket:    os.Getenv("GASMON_LOCATIONS_BUCKET"),
		LocationsKey:       getenvDefault("GASMON_LOCATIONS_KEY", "locations.json"),
		LocationsFile:      os.Getenv("GASMON_LOCATIONS_FILE"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MinuteCSVPath:      getenvDefault("GASMON_MINUTE_CSV", "average_values_per_minute.csv"),
		LocationCSVPath:    getenvDefault("GASMON_LOCATION_CSV", "average_values_per_location.csv"),
		XLSXReportPath:     os.Getenv("GASMON_XLSX_REPORT"),
		PDFReportPath:      os.Getenv("GASMON_PDF_REPORT"),
		SurfacePath:        os.Getenv("GASMON_SURFACE_FILE"),
		MetricsAddr:        os.Getenv("GASMON_METRICS_ADDR"),
	}

	if path := os.Getenv("GASMON_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.RunDurationSeconds <= 0 {
		return cfg, errInvalidRunDuration
	}
	if cfg.TopicARN == "" {
		return cfg, errMissingTopicARN
	}
	switch cfg.LocationsSource {
	case "s3":
		if cfg.LocationsBucket == "" {
			return cfg, errMissingLocationsBucket
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, errMissingDatabaseURL
		}
	case "file":
		if cfg.LocationsFile == "" {
			return cfg, errMissingLocationsFile
		}
	default:
		return cfg, errUnknownLocationsSource
	}
	return cfg, nil
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
	if err != nil {
		return fallback
	}
	return parsed
}
