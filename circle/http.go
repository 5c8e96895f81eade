package circle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 5 * time.Second

// ErrNotFound is returned for 404 responses, which Iris uses for "not indexed yet".
var ErrNotFound = errors.New("not found")

// httpRequest performs a request with a bounded timeout and unmarshals the JSON response
func httpRequest(ctx context.Context, method, url string, result any) error {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.Unmarshal(body, result)
}

// normalizeMessageHash ensures the hash has 0x prefix
func normalizeMessageHash(hash string) string {
	if len(hash) > 2 && hash[:2] != "0x" {
		return "0x" + hash
	}
	return hash
}

// normalizeBaseURL removes trailing slashes and the legacy /attestations suffix
func normalizeBaseURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	return strings.TrimSuffix(url, "/attestations")
}
