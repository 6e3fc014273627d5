//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"testing"
	"time"
)

const (
	commandPort = 8081
	queryPort   = 8082
)

// baseURL returns the base URL for a service running on the given port.
func baseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// uniqueProductID generates a unique product id to avoid test collisions.
func uniqueProductID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), rand.Intn(100000))
}

// uniqueUUID generates a UUID v4 for test data. Not cryptographically
// secure, fine for tests.
func uniqueUUID() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// skipIfNotRunning performs a quick health check against a service.
// If the service is unreachable, the test is skipped (not failed).
func skipIfNotRunning(t *testing.T, port int) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL(port) + "/health/live")
	if err != nil {
		t.Skipf("service on port %d not reachable (Docker not running?): %v", port, err)
	}
	resp.Body.Close()
}

// httpGet performs an HTTP GET request and returns the status code and decoded JSON body.
func httpGet(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// httpPost performs an HTTP POST request with a JSON body.
func httpPost(t *testing.T, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body failed: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(http.MethodPost, url, bodyReader)
	if err != nil {
		t.Fatalf("creating POST request for %s failed: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// submitRating posts a rating to the command service.
func submitRating(t *testing.T, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	return httpPost(t, baseURL(commandPort)+"/api/v1/ratings", body)
}

// graphqlQuery executes a GraphQL query against the query service and
// returns the decoded "data" object. Fails the test on transport or
// GraphQL errors.
func graphqlQuery(t *testing.T, query string, variables map[string]interface{}) map[string]interface{} {
	t.Helper()
	status, resp := httpPost(t, baseURL(queryPort)+"/graphql", map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if status != http.StatusOK {
		t.Fatalf("graphql query returned status %d: %v", status, resp)
	}
	if errs, ok := resp["errors"]; ok && errs != nil {
		t.Fatalf("graphql query returned errors: %v", errs)
	}
	data, _ := resp["data"].(map[string]interface{})
	if data == nil {
		t.Fatalf("graphql response has no data: %v", resp)
	}
	return data
}

// productStats queries the product's rating stats, returning nil when the
// product has no projected stats yet.
func productStats(t *testing.T, productID string) map[string]interface{} {
	t.Helper()
	data := graphqlQuery(t, `
		query($id: ID!) {
			productRatingStats(productId: $id) {
				productId
				averageRating
				reviewCount
				ratingDistribution { oneStar twoStar threeStar fourStar fiveStar }
			}
		}`,
		map[string]interface{}{"id": productID},
	)
	stats, _ := data["productRatingStats"].(map[string]interface{})
	return stats
}

// waitForStats polls the query service until the product's stats report the
// wanted review count, or the timeout elapses. Projection is asynchronous;
// polling bounds the wait without fixed sleeps.
func waitForStats(t *testing.T, productID string, wantCount int, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		last = productStats(t, productID)
		if last != nil && int(last["reviewCount"].(float64)) >= wantCount {
			return last
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("stats for %s did not reach %d reviews within %s (last: %v)",
		productID, wantCount, timeout, last)
	return nil
}

// decodeBody reads the response body and attempts to decode it as JSON.
// If the body is empty or not JSON, it returns an empty map.
func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading response body failed: %v", err)
	}
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		// Not JSON; return the raw string in a "raw" key for debugging.
		return map[string]interface{}{"raw": string(raw)}
	}
	return result
}
