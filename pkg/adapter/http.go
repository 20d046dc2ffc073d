package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"xroute/pkg/types"
)

// flexFloat decodes numbers that providers send either as JSON numbers or
// as numeric strings
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexInt is flexFloat for integral fields such as chain ids
type flexInt int64

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, query url.Values, headers map[string]string, out interface{}) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return doJSON(client, req, headers, out)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body interface{}, headers map[string]string, out interface{}) error {
	var payload []byte
	switch b := body.(type) {
	case json.RawMessage:
		payload = b
	default:
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req, headers, out)
}

func doJSON(client *http.Client, req *http.Request, headers map[string]string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// keepValid drops routes that break the route invariants
func keepValid(routes []types.Route) []types.Route {
	out := routes[:0]
	for _, r := range routes {
		if r.Validate() == nil {
			out = append(out, r)
		}
	}
	return out
}

// filterTokens applies the shared token search rules
func filterTokens(tokens []types.Token, query string) []types.Token {
	out := make([]types.Token, 0, MaxTokenResults)
	for _, t := range tokens {
		if !t.Matches(query) {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTokenResults {
			break
		}
	}
	return out
}

func routeID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
