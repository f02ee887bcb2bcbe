package fetch

import "fmt"

// maxBodySnippet bounds how much of an error response body is kept for diagnostics
const maxBodySnippet = 200

// NetworkError reports a non-success HTTP status, or a transport failure when
// StatusCode is 0
type NetworkError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("network error: status %d from %s. Response: %s", e.StatusCode, e.URL, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UnexpectedContentTypeError reports a response that is not declared as JSON
type UnexpectedContentTypeError struct {
	URL         string
	ContentType string
}

func (e *UnexpectedContentTypeError) Error() string {
	ct := e.ContentType
	if ct == "" {
		ct = "none"
	}
	return fmt.Sprintf("unexpected response from %s (content type: %s), expected JSON", e.URL, ct)
}

// HTMLInsteadOfJSONError reports an HTML document where JSON was expected. This is
// what an authentication portal or VPN gateway usually serves.
type HTMLInsteadOfJSONError struct {
	UnexpectedContentTypeError
}

func (e *HTMLInsteadOfJSONError) Error() string {
	return fmt.Sprintf("the API at %s returned an HTML page instead of JSON; "+
		"check that the URL is correct and whether authentication or VPN/network access is required", e.URL)
}

// Unwrap exposes the embedded error so errors.As matches UnexpectedContentTypeError too
func (e *HTMLInsteadOfJSONError) Unwrap() error { return &e.UnexpectedContentTypeError }

// JSONParseError reports a JSON content type whose body does not parse
type JSONParseError struct {
	URL string
	Err error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON response from %s: %v", e.URL, e.Err)
}

func (e *JSONParseError) Unwrap() error { return e.Err }

func snippet(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > maxBodySnippet {
		runes = runes[:maxBodySnippet]
	}
	return string(runes)
}
