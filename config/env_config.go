package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
		Expire    int
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
	}
	Deletion struct {
		SnapshotBucket    string        // Bucket holding data export artifacts
		SnapshotURLTTL    time.Duration // Presigned download link lifetime
		JobTTL            time.Duration // Unconfirmed jobs older than this are swept to failed
		CleanupRetries    int           // Attempts per cleanup phase before the job fails
		SnapshotRetainAll bool          // Keep artifacts even when preference is delete_all
	}
	ExternalService struct {
		AuthorizationServiceURL string
		IntegrationServiceURL   string
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	PrivateKey string

	Environment struct {
		Mode  string
		Group string
	}
	DomainName string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")

	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		fmt.Sscanf(val, "%d", &config.JWT.Expire)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")

	// Deletion workflow configuration
	config.Deletion.SnapshotBucket = os.Getenv("DELETION_SNAPSHOT_BUCKET")
	if config.Deletion.SnapshotBucket == "" {
		config.Deletion.SnapshotBucket = "account-snapshots"
	}
	if ttlStr := os.Getenv("DELETION_SNAPSHOT_URL_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			config.Deletion.SnapshotURLTTL = ttl
		}
	}
	if config.Deletion.SnapshotURLTTL == 0 {
		config.Deletion.SnapshotURLTTL = 15 * time.Minute
	}
	if ttlStr := os.Getenv("DELETION_JOB_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			config.Deletion.JobTTL = ttl
		}
	}
	if config.Deletion.JobTTL == 0 {
		config.Deletion.JobTTL = 7 * 24 * time.Hour
	}
	if retriesStr := os.Getenv("DELETION_CLEANUP_RETRIES"); retriesStr != "" {
		if retries, err := strconv.Atoi(retriesStr); err == nil && retries > 0 {
			config.Deletion.CleanupRetries = retries
		}
	}
	if config.Deletion.CleanupRetries == 0 {
		config.Deletion.CleanupRetries = 3
	}
	config.Deletion.SnapshotRetainAll = os.Getenv("DELETION_SNAPSHOT_RETAIN_ALL") == "true"

	config.PrivateKey = os.Getenv("PRIVATE_KEY")

	config.ExternalService.AuthorizationServiceURL = os.Getenv("AUTHORIZATION_SERVICE_URL")
	if config.ExternalService.AuthorizationServiceURL == "" {
		config.ExternalService.AuthorizationServiceURL = "http://localhost:8080"
	}
	config.ExternalService.IntegrationServiceURL = os.Getenv("INTEGRATION_SERVICE_URL")
	if config.ExternalService.IntegrationServiceURL == "" {
		config.ExternalService.IntegrationServiceURL = "http://localhost:8083"
	}

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	if grafanaEndpoint == "" {
		grafanaEndpoint = "https://grafana.gauas.online"
	}
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-account-service"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.DomainName = os.Getenv("DOMAIN_NAME")
	if config.DomainName == "" {
		config.DomainName = "localhost:8080"
	}

	return &config
}
