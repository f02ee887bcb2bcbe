package couchbase

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBucket is used when no bucket name is configured
const DefaultBucket = "erdashboard"

// Settings holds the cluster credentials and target bucket
type Settings struct {
	URL      string
	Username string
	Password string
	Bucket   string
}

// ConnectionManager handles Couchbase cluster and bucket connections
type ConnectionManager struct {
	cluster *gocb.Cluster
	bucket  *gocb.Bucket
}

// NewConnectionManager connects to the cluster and waits for the bucket's KV service
func NewConnectionManager(settings Settings) (*ConnectionManager, error) {
	if settings.Bucket == "" {
		settings.Bucket = DefaultBucket
	}

	cluster, err := gocb.Connect(connectionString(settings.URL), gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: settings.Username,
			Password: settings.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 10 * time.Second,
			KVTimeout:      5 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	// Open bucket (assume it exists - don't try to create it)
	bucket := cluster.Bucket(settings.Bucket)

	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
	})
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("bucket '%s' is not accessible: %w", settings.Bucket, err)
	}

	log.Info().
		Str("bucket", settings.Bucket).
		Msg("Connected to Couchbase")

	return &ConnectionManager{
		cluster: cluster,
		bucket:  bucket,
	}, nil
}

// connectionString accepts bare hosts and http:// URLs as well as couchbase schemes
func connectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

// Collection returns the bucket's default collection
func (cm *ConnectionManager) Collection() *gocb.Collection {
	return cm.bucket.DefaultCollection()
}
