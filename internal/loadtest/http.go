package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
)

// HTTPClient wraps http.Client and pins every request to one session.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	sessionID string
}

func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	return c.client.Do(req)
}

// call performs a request and decodes a JSON response into out when the
// status matches want.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out interface{}, want int) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func slicePath(year int, week model.Week, position string) string {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("week", week.String())
	if position != "" {
		q.Set("position", position)
	}
	return "/api/v1/stats?" + q.Encode()
}

type sliceRead struct {
	week     model.Week
	position string
}

// readSlices reads every configured slice config.Rounds times using a
// fixed pool of workers.
func readSlices(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	var reads []sliceRead
	for round := 0; round < config.Rounds; round++ {
		for _, w := range config.Weeks {
			for _, p := range config.Positions {
				reads = append(reads, sliceRead{week: w, position: p})
			}
		}
	}

	log := logger.Get().Named("loadtest")
	log.Info(ctx, "reading slices",
		logger.Int("reads", len(reads)),
		logger.Int("workers", config.Workers))

	var (
		ok      int64
		failed  int64
		records int64
	)

	readChan := make(chan sliceRead, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for read := range readChan {
				var resp sliceResponse
				err := client.call(ctx, http.MethodGet, slicePath(config.Year, read.week, read.position), nil, &resp, http.StatusOK)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "slice read failed",
							logger.String("week", read.week.String()),
							logger.String("position", read.position),
							logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&ok, 1)
				atomic.AddInt64(&records, int64(resp.Count))
			}
		}()
	}

	go func() {
		defer close(readChan)
		for _, read := range reads {
			select {
			case <-ctx.Done():
				return
			case readChan <- read:
			}
		}
	}()

	wg.Wait()

	stats.SlicesRequested = len(reads)
	stats.SlicesOK = int(atomic.LoadInt64(&ok))
	stats.SlicesFailed = int(atomic.LoadInt64(&failed))
	stats.RecordsRead = int(atomic.LoadInt64(&records))

	log.Info(ctx, "slice reads completed",
		logger.Int("ok", stats.SlicesOK),
		logger.Int("failed", stats.SlicesFailed),
		logger.Int("records", stats.RecordsRead))

	return ctx.Err()
}
