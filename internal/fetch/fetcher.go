package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/erdashboard/internal/metrics"
)

// Fetcher performs GET requests against the hospital API and converts every
// failure into one of the typed errors of this package. It never retries.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher whose transport gives up after timeout.
// A zero timeout leaves requests unbounded.
func NewFetcher(timeout time.Duration) *Fetcher {
	return NewFetcherWithClient(&http.Client{
		Timeout: timeout,
	})
}

// NewFetcherWithClient creates a fetcher on top of an existing HTTP client
func NewFetcherWithClient(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{httpClient: httpClient}
}

// FetchJSON GETs url and returns the raw JSON body
func (f *Fetcher) FetchJSON(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	fetchStart := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamFetch(metrics.FetchTransportError, time.Since(fetchStart))
		log.Warn().Err(err).Str("url", url).Msg("Request to hospital API failed")
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		metrics.RecordUpstreamFetch(metrics.FetchTransportError, fetchDuration)
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamFetch(metrics.FetchBadStatus, fetchDuration)
		log.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("body", snippet(body)).
			Msg("Hospital API returned non-success status")
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSONContentType(contentType) {
		if looksLikeHTML(body) {
			metrics.RecordUpstreamFetch(metrics.FetchHTML, fetchDuration)
			log.Warn().
				Str("url", url).
				Str("content_type", contentType).
				Msg("Hospital API returned an HTML page, likely an authentication or VPN redirect")
			return nil, &HTMLInsteadOfJSONError{UnexpectedContentTypeError{URL: url, ContentType: contentType}}
		}

		metrics.RecordUpstreamFetch(metrics.FetchContentType, fetchDuration)
		log.Warn().
			Str("url", url).
			Str("content_type", contentType).
			Str("body", snippet(body)).
			Msg("Hospital API returned a non-JSON response")
		return nil, &UnexpectedContentTypeError{URL: url, ContentType: contentType}
	}

	var payload json.RawMessage
	err = json.Unmarshal(body, &payload)
	if err != nil {
		metrics.RecordUpstreamFetch(metrics.FetchParseError, fetchDuration)
		log.Warn().Err(err).Str("url", url).Msg("Failed to parse hospital API response")
		return nil, &JSONParseError{URL: url, Err: err}
	}

	metrics.RecordUpstreamFetch(metrics.FetchSuccess, fetchDuration)
	return payload, nil
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

var doctypeMarker = []byte("<!doctype")

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < len(doctypeMarker) {
		return false
	}
	return bytes.EqualFold(trimmed[:len(doctypeMarker)], doctypeMarker)
}
