package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aweris/soundbank/internal/compression"
)

// HTTPSource talks to the audio API.
type HTTPSource struct {
	baseURL  string
	client   *http.Client
	attempts int
}

// NewHTTPSource creates a source for baseURL (e.g. "https://bugle.example.com/api").
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid manifest url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		attempts: DefaultAttempts,
	}, nil
}

func (s *HTTPSource) String() string { return s.baseURL }

// SetAttempts sets how many times a request is tried before giving up.
func (s *HTTPSource) SetAttempts(n int) {
	if n > 0 {
		s.attempts = n
	}
}

func (s *HTTPSource) List(ctx context.Context) ([]Record, error) {
	return retry(ctx, s.attempts, func() ([]Record, error) {
		resp, err := s.get(ctx, s.baseURL+"/audio/list")
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := decodedBody(resp)
		if err != nil {
			return nil, permanent(err)
		}
		defer body.Close()

		var records []Record
		if err := json.NewDecoder(body).Decode(&records); err != nil {
			return nil, permanent(fmt.Errorf("decode manifest: %w", err))
		}
		return records, nil
	})
}

func (s *HTTPSource) Download(ctx context.Context, rec Record, w io.Writer) error {
	u := fmt.Sprintf("%s/audio/%s/download?hash=%s",
		s.baseURL, url.PathEscape(rec.ID), url.QueryEscape(rec.Hash))

	// Only the request is retried; once bytes reach w the attempt is final.
	resp, err := retry(ctx, s.attempts, func() (*http.Response, error) {
		return s.get(ctx, u)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("read %s: %w", rec.Filename(), err)
	}
	return nil
}

// get issues a GET and returns the response when the status is 200. 5xx and
// transport errors are retryable, anything else is permanent.
func (s *HTTPSource) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Accept", "application/json, application/octet-stream")
	req.Header.Set("Accept-Encoding", "zstd")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	err = fmt.Errorf("GET %s: server returned %d", req.URL.Path, resp.StatusCode)
	if resp.StatusCode >= 500 {
		return nil, err
	}
	return nil, permanent(err)
}

// decodedBody undoes a zstd Content-Encoding. Setting Accept-Encoding
// ourselves disables net/http's transparent gzip handling, so gzip is never
// negotiated.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch enc := resp.Header.Get("Content-Encoding"); enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "zstd":
		rc, err := compression.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}
