package healthstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/glucose"
	"github.com/jwulff/glucosync/internal/record"
)

// DefaultTimeout bounds every store request. A timeout is a transient
// failure, never data loss.
const DefaultTimeout = 30 * time.Second

// Client talks to a health store over HTTP. It authenticates lazily and
// re-authenticates once when the session expires mid-call.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	sessionID  string
}

// NewClient creates a store client with the default request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// authenticate trades the API key for a session ID.
func (c *Client) authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"apiKey": c.APIKey})
	if err != nil {
		return fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/auth/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("auth request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth failed with status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, &c.sessionID); err != nil {
		return fmt.Errorf("failed to parse session ID: %w", err)
	}
	return nil
}

// do performs one authenticated request, re-authenticating once on a 401.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	if c.sessionID == "" {
		if err := c.authenticate(ctx); err != nil {
			return nil, 0, err
		}
	}

	data, status, err := c.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		c.sessionID = ""
		if err := c.authenticate(ctx); err != nil {
			return nil, 0, err
		}
		data, status, err = c.doOnce(ctx, method, path, body)
		if err != nil {
			return nil, 0, err
		}
	}
	return data, status, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-ID", c.sessionID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// transport failures and timeouts are retryable
		return nil, 0, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return data, resp.StatusCode, nil
}

// checkStatus maps non-200 statuses onto the error taxonomy.
func checkStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusForbidden:
		return fmt.Errorf("store rejected request: %w", access.ErrPermissionDenied)
	case status == http.StatusGone:
		return ErrTokenExpired
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Err: fmt.Errorf("store returned status %d: %s", status, string(body))}
	default:
		return fmt.Errorf("store returned status %d: %s", status, string(body))
	}
}

// CheckAvailability implements Store.
func (c *Client) CheckAvailability(ctx context.Context) (bool, error) {
	data, status, err := c.do(ctx, "GET", "/v1/availability", nil)
	if err != nil {
		return false, err
	}
	if err := checkStatus(status, data); err != nil {
		return false, err
	}

	var out struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return false, fmt.Errorf("failed to parse availability response: %w", err)
	}
	return out.Available, nil
}

// CheckPermissions implements Store.
func (c *Client) CheckPermissions(ctx context.Context) (access.TierSet, error) {
	data, status, err := c.do(ctx, "GET", "/v1/permissions", nil)
	if err != nil {
		return access.TierSet{}, err
	}
	if err := checkStatus(status, data); err != nil {
		return access.TierSet{}, err
	}

	var out struct {
		Tiers []string `json:"tiers"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return access.TierSet{}, fmt.Errorf("failed to parse permissions response: %w", err)
	}

	var tiers []access.Tier
	for _, name := range out.Tiers {
		t, err := access.ParseTier(name)
		if err != nil {
			return access.TierSet{}, fmt.Errorf("failed to parse permissions response: %w", err)
		}
		tiers = append(tiers, t)
	}
	return access.NewTierSet(tiers...), nil
}

// WriteRecords implements Store.
func (c *Client) WriteRecords(ctx context.Context, records []record.GlucoseRecord) (*WriteResult, error) {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = toWire(r)
	}

	data, status, err := c.do(ctx, "POST", "/v1/records", wire)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, data); err != nil {
		return nil, err
	}

	var out struct {
		Succeeded int `json:"succeeded"`
		Failed    []struct {
			Index  int    `json:"index"`
			Reason string `json:"reason"`
		} `json:"failed"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse write response: %w", err)
	}

	result := &WriteResult{Succeeded: out.Succeeded}
	for _, f := range out.Failed {
		if f.Index < 0 || f.Index >= len(records) {
			continue
		}
		result.Failed = append(result.Failed, WriteFailure{
			Record: records[f.Index],
			Reason: f.Reason,
		})
	}
	return result, nil
}

// ReadRecords implements Store.
func (c *Client) ReadRecords(ctx context.Context, w Window) ([]record.GlucoseRecord, error) {
	path := fmt.Sprintf("/v1/records?start=%s&end=%s",
		url.QueryEscape(w.Start.Format(time.RFC3339)),
		url.QueryEscape(w.End.Format(time.RFC3339)))

	data, status, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, data); err != nil {
		return nil, err
	}

	var wire []wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse records response: %w", err)
	}

	records := make([]record.GlucoseRecord, len(wire))
	for i, wr := range wire {
		records[i] = fromWire(wr)
	}
	return records, nil
}

// ReadChanges implements Store.
func (c *Client) ReadChanges(ctx context.Context, token Token) (ChangeResult, error) {
	data, status, err := c.do(ctx, "GET", "/v1/changes?token="+url.QueryEscape(string(token)), nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, data); err != nil {
		return nil, err
	}

	var out struct {
		Records     []wireRecord `json:"records"`
		NextToken   string       `json:"nextToken"`
		Done        bool         `json:"done"`
		ResumeToken string       `json:"resumeToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse changes response: %w", err)
	}

	if out.Done {
		return ChangesDone{ResumeToken: Token(out.ResumeToken)}, nil
	}

	records := make([]record.GlucoseRecord, len(out.Records))
	for i, w := range out.Records {
		records[i] = fromWire(w)
	}
	return ChangePage{Records: records, NextToken: Token(out.NextToken)}, nil
}

// wireRecord is the store's JSON record shape.
type wireRecord struct {
	Value        float64   `json:"value"`
	Instant      time.Time `json:"instant"`
	ZoneOffset   int       `json:"zoneOffset"`
	Meal         string    `json:"mealRelation"`
	Specimen     string    `json:"specimenSource"`
	SourceID     string    `json:"sourceId"`
	Method       string    `json:"recordingMethod"`
	Manufacturer string    `json:"deviceManufacturer"`
	Model        string    `json:"deviceModel"`
	LastModified time.Time `json:"lastModified"`
}

func toWire(r record.GlucoseRecord) wireRecord {
	return wireRecord{
		Value:        r.Value,
		Instant:      r.Instant,
		ZoneOffset:   r.ZoneOffset,
		Meal:         string(r.Meal),
		Specimen:     string(r.Specimen),
		SourceID:     r.Provenance.SourceID,
		Method:       string(r.Provenance.Method),
		Manufacturer: r.Provenance.Device.Manufacturer,
		Model:        r.Provenance.Device.Model,
		LastModified: r.Provenance.LastModified,
	}
}

func fromWire(w wireRecord) record.GlucoseRecord {
	return record.GlucoseRecord{
		Value:      w.Value,
		Instant:    w.Instant,
		ZoneOffset: w.ZoneOffset,
		Meal:       glucose.MealRelation(w.Meal),
		Specimen:   record.SpecimenSource(w.Specimen),
		Provenance: record.Provenance{
			SourceID:     w.SourceID,
			Method:       record.RecordingMethod(w.Method),
			Device: record.DeviceDescriptor{
				Manufacturer: w.Manufacturer,
				Model:        w.Model,
			},
			LastModified: w.LastModified,
		},
	}
}
