package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/gostream/pipeline/internal/broker"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Stages   StageConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	TempDir            string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/gostream-pipeline"`
	ShutdownTimeout    time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	FanOutConcurrency  int           `envconfig:"WORKER_FANOUT_CONCURRENCY" default:"4"`
	EncoderThreads     int           `envconfig:"WORKER_ENCODER_THREADS" default:"0"`
	FFmpegPath         string        `envconfig:"WORKER_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath        string        `envconfig:"WORKER_FFPROBE_PATH" default:"ffprobe"`
	HLSSegmentDuration int           `envconfig:"WORKER_HLS_SEGMENT_SECONDS" default:"6"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"gostream"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"gostream"`
	DBName   string `envconfig:"POSTGRES_DB" default:"gostream"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// MinIOConfig names the three buckets the pipeline uses, per spec.md §6's
// bucket-per-concern layout: raw uploads, thumbnails (provisioned but
// unused until a thumbnailer stage exists), and processed HLS output.
type MinIOConfig struct {
	Endpoint        string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey       string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey       string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	UseSSL          bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	RawBucket       string `envconfig:"MINIO_RAW_BUCKET" default:"raw"`
	ThumbnailBucket string `envconfig:"MINIO_THUMBNAIL_BUCKET" default:"thumbnails"`
	ProcessedBucket string `envconfig:"MINIO_PROCESSED_BUCKET" default:"processed"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"gostream"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"gostream"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
	Queue    string `envconfig:"RABBITMQ_QUEUE" default:"pipeline.jobs"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	// StatusCacheTTL bounds how long a polled status row is cached,
	// trading a stale read for fewer round trips to Postgres.
	StatusCacheTTL time.Duration `envconfig:"REDIS_STATUS_CACHE_TTL" default:"2s"`
	// JoinTTL bounds how long fan-out group state survives in Redis: each
	// group key expires this long after its last write.
	JoinTTL time.Duration `envconfig:"REDIS_JOIN_TTL" default:"1h"`
}

// StageConfig holds the per-stage retry policy from spec.md §4.1: each
// stage gets its own attempt ceiling and backoff, enforced by the worker's
// broker engine via cenkalti/backoff. The Finalize values are not read by
// the engine: Finalize runs a single attempt.
type StageConfig struct {
	PrepareMaxAttempts   int           `envconfig:"STAGE_PREPARE_MAX_ATTEMPTS" default:"3"`
	PrepareBackoff       time.Duration `envconfig:"STAGE_PREPARE_BACKOFF" default:"60s"`
	TranscodeMaxAttempts int           `envconfig:"STAGE_TRANSCODE_MAX_ATTEMPTS" default:"2"`
	TranscodeBackoff     time.Duration `envconfig:"STAGE_TRANSCODE_BACKOFF" default:"30s"`
	SegmentMaxAttempts   int           `envconfig:"STAGE_SEGMENT_MAX_ATTEMPTS" default:"2"`
	SegmentBackoff       time.Duration `envconfig:"STAGE_SEGMENT_BACKOFF" default:"30s"`
	ManifestMaxAttempts  int           `envconfig:"STAGE_MANIFEST_MAX_ATTEMPTS" default:"2"`
	ManifestBackoff      time.Duration `envconfig:"STAGE_MANIFEST_BACKOFF" default:"15s"`
	UploadMaxAttempts    int           `envconfig:"STAGE_UPLOAD_MAX_ATTEMPTS" default:"3"`
	UploadBackoff        time.Duration `envconfig:"STAGE_UPLOAD_BACKOFF" default:"20s"`
	FinalizeMaxAttempts  int           `envconfig:"STAGE_FINALIZE_MAX_ATTEMPTS" default:"1"`
	FinalizeBackoff      time.Duration `envconfig:"STAGE_FINALIZE_BACKOFF" default:"0s"`
}

// BrokerStages converts the envconfig-loaded policy into the broker
// package's Stages type, keeping the env var names/defaults in this
// package while the broker stays free of a config import for its own
// tests.
func (c StageConfig) BrokerStages() broker.Stages {
	return broker.Stages{
		Prepare:   broker.StagePolicy{MaxAttempts: c.PrepareMaxAttempts, Backoff: c.PrepareBackoff},
		Transcode: broker.StagePolicy{MaxAttempts: c.TranscodeMaxAttempts, Backoff: c.TranscodeBackoff},
		Segment:   broker.StagePolicy{MaxAttempts: c.SegmentMaxAttempts, Backoff: c.SegmentBackoff},
		Manifest:  broker.StagePolicy{MaxAttempts: c.ManifestMaxAttempts, Backoff: c.ManifestBackoff},
		Upload:    broker.StagePolicy{MaxAttempts: c.UploadMaxAttempts, Backoff: c.UploadBackoff},
		Finalize:  broker.StagePolicy{MaxAttempts: c.FinalizeMaxAttempts, Backoff: c.FinalizeBackoff},
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
