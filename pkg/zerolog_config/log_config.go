package zerolog_config

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce = &sync.Once{}
var startupLoggerOnce = &sync.Once{}

// ElasticsearchWriter sends logs directly to Elasticsearch
type ElasticsearchWriter struct {
	URL    string
	Client *http.Client
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	client := ew.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Post(ew.URL+"/_doc", "application/json", bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// newLogger builds the console logger and, when elasticsearchURL is set, tees ECS documents to it.
// Console output goes to out so that stdout stays free for command output.
func newLogger(out io.Writer, elasticsearchURL, subAddress string) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}

	if elasticsearchURL == "" {
		return zerolog.New(consoleWriter).With().Str("app", appPrefix).Timestamp().Logger()
	}

	esWriter := &ElasticsearchWriter{
		URL:    strings.TrimSuffix(elasticsearchURL, "/") + "/" + subAddress,
		Client: &http.Client{Timeout: 5 * time.Second},
	}

	// ECS documents to Elasticsearch + pretty to console
	multi := zerolog.MultiLevelWriter(esWriter, consoleWriter)

	return ecszerolog.New(multi).With().Str("app", appPrefix).Logger()
}

// SetAppPrefix sets the app field attached to every log line
func SetAppPrefix(prefix string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = prefix
	})
}

// StartupWithEnv sets up the global logger once.
// An empty elasticsearchURL keeps logging on the console only.
// Run SetAppPrefix before StartupWithEnv.
func StartupWithEnv(elasticsearchURL, subAddress, level string) error {
	if subAddress == "" {
		return fmt.Errorf("subAddress is required")
	}
	startupLoggerOnce.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(level))
		log.Logger = newLogger(os.Stderr, elasticsearchURL, subAddress)
	})
	return nil
}
