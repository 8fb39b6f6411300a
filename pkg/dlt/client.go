package dlt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

const (
	discoveryTimeout   = 10 * time.Second
	descriptionTimeout = 30 * time.Second

	retryAttempts = 3
)

// Client talks to the ledger's read-only HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	// descHTTP carries the longer timeout for self-description fetches.
	descHTTP *http.Client
}

// NewClient creates a ledger client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: discoveryTimeout},
		descHTTP: &http.Client{Timeout: descriptionTimeout},
	}
}

// ListOfferings returns the ids in the ledger's offerings index.
func (c *Client) ListOfferings(ctx context.Context) ([]string, error) {
	var index struct {
		Addresses []string `json:"addresses"`
	}
	err := c.getJSON(ctx, c.http, fmt.Sprintf("%s/offerings", c.baseURL), &index)
	if err != nil {
		return nil, fmt.Errorf("listing offerings: %w", err)
	}
	return index.Addresses, nil
}

// GetOffering fetches the ledger metadata for one offering id.
func (c *Client) GetOffering(ctx context.Context, id string) (*types.OfferingMeta, error) {
	var meta types.OfferingMeta
	err := c.getJSON(ctx, c.http, fmt.Sprintf("%s/offerings/%s", c.baseURL, id), &meta)
	if err != nil {
		return nil, fmt.Errorf("fetching offering %s: %w", id, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return &meta, nil
}

// FetchDescription downloads the full JSON-LD self-description from an
// offering's descriptionUri.
func (c *Client) FetchDescription(ctx context.Context, uri string) (json.RawMessage, error) {
	var payload json.RawMessage
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.descHTTP.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("description fetch returned HTTP %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			payload = body
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching description %s: %w", uri, err)
	}
	return payload, nil
}

func (c *Client) getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("ledger returned HTTP %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return json.NewDecoder(resp.Body).Decode(out)
		},
		retry.Attempts(retryAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithComponent("dlt").Debug().Uint("attempt", n+1).Err(err).Str("url", url).Msg("retrying ledger request")
		}),
	)
}
