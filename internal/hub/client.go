// Package hub talks to the smart-home hub: bulk state queries, bounded
// history windows and service calls over REST, plus the state-changed
// event stream and the assist pipeline over the websocket API.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/logger"
)

// Client is the REST side of the hub API. All requests carry the
// bearer token and honor both the configured timeout and the caller's
// context.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   logger.Logger
}

// NewClient builds a Client from the hub configuration.
func NewClient(cfg *config.HubConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Client{
		base:  cfg.RestURL(),
		token: cfg.Token,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   log,
	}
}

// Ping verifies the hub API answers at all. The root endpoint serves a
// static status message and costs the hub nothing.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Message string `json:"message"`
	}
	return c.get(ctx, "/", nil, &status)
}

// States fetches the full state snapshot for every entity the hub
// knows.
func (c *Client) States(ctx context.Context) ([]entity.State, error) {
	var states []entity.State
	if err := c.get(ctx, "/states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// HistoryQuery bounds one history fetch. Minimal requests strip
// attributes from intermediate points and are cheaper; leave it false
// when an attribute is being graphed.
type HistoryQuery struct {
	EntityID string
	Begin    time.Time
	End      time.Time
	Minimal  bool
}

// History fetches the recorded points for one entity inside the query
// window, ordered by sample time. An entity with no recorded history
// yields an empty slice.
func (c *Client) History(ctx context.Context, q HistoryQuery) ([]entity.HistoryPoint, error) {
	query := url.Values{}
	query.Set("filter_entity_id", q.EntityID)
	query.Set("end_time", q.End.UTC().Format(time.RFC3339))
	if q.Minimal {
		query.Set("minimal_response", "")
	}

	path := "/history/period/" + q.Begin.UTC().Format(time.RFC3339)
	var periods [][]entity.HistoryPoint
	if err := c.get(ctx, path, query, &periods); err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, nil
	}
	points := periods[0]
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp().Before(points[j].Timestamp())
	})
	return points, nil
}

// ServiceDomain is one domain's callable services as reported by the
// hub.
type ServiceDomain struct {
	Domain   string                 `json:"domain"`
	Services map[string]ServiceInfo `json:"services"`
}

// ServiceInfo describes one callable service.
type ServiceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Services lists every callable service grouped by domain.
func (c *Client) Services(ctx context.Context) ([]ServiceDomain, error) {
	var domains []ServiceDomain
	if err := c.get(ctx, "/services", nil, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// CallService invokes domain.service with the given payload. The
// entity id, when set, rides in the payload under entity_id as the hub
// expects.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string, data map[string]interface{}) error {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	if entityID != "" {
		payload["entity_id"] = entityID
	}
	path := fmt.Sprintf("/services/%s/%s", domain, service)
	if err := c.post(ctx, path, payload); err != nil {
		return err
	}
	c.log.WithFields(map[string]interface{}{
		"domain":  domain,
		"service": service,
		"entity":  entityID,
	}).Debug("Service called")
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.WrapMalformed(err, "failed to build hub request")
	}
	c.auth(req)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapMalformed(err, "failed to encode service payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return errors.WrapMalformed(err, "failed to build hub request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	return c.do(req, nil)
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "hub request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthError("hub rejected the access token").WithStatus(resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return errors.NewMalformedError("hub rejected the request").WithStatus(resp.StatusCode).
			WithDetails(map[string]interface{}{"url": req.URL.Path})
	case resp.StatusCode >= 400:
		return errors.NewTransientError("hub returned an error").WithStatus(resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapMalformed(err, "failed to decode hub response")
	}
	return nil
}
