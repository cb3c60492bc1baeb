package mlserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verity-ml/predict-cli/internal/resilience"
)

const (
	defaultIAMURL     = "https://iam.cloud.ibm.com/identity/token"
	defaultAPIVersion = "2020-09-01"

	// tokenSlack refreshes the IAM token this long before it expires.
	tokenSlack = 60 * time.Second
)

// WatsonOption configures the Watson client.
type WatsonOption func(*WatsonClient)

// WithIAMURL overrides the IAM token endpoint.
func WithIAMURL(u string) WatsonOption {
	return func(c *WatsonClient) {
		c.iamURL = u
	}
}

// WithWatsonHTTPClient overrides the default http.Client.
func WithWatsonHTTPClient(hc *http.Client) WatsonOption {
	return func(c *WatsonClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the scoring request rate limit.
func WithRateLimit(l *rate.Limiter) WatsonOption {
	return func(c *WatsonClient) {
		c.limiter = l
	}
}

// WatsonClient scores rows against Watson Machine Learning deployments.
// Scoring calls are rate limited and authenticate with an IAM bearer token
// that is cached until shortly before expiry.
type WatsonClient struct {
	endpoint string
	apiKey   string
	iamURL   string
	http     *http.Client
	limiter  *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewWatsonClient creates a Watson ML scoring client.
func NewWatsonClient(endpoint, apiKey string, opts ...WatsonOption) *WatsonClient {
	c := &WatsonClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		iamURL:   defaultIAMURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type iamResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// bearerToken returns a cached IAM token, exchanging the API key for a fresh
// one when the cache is empty or near expiry.
func (c *WatsonClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "watson: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "watson: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "watson: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("watson: token exchange status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	var tok iamResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "watson: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("watson: empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	zap.L().Debug("watson: refreshed IAM token", zap.Int("expires_in", tok.ExpiresIn))
	return c.token, nil
}

type scoringInput struct {
	Fields []string   `json:"fields"`
	Values [][]string `json:"values"`
}

type scoringRequest struct {
	InputData []scoringInput `json:"input_data"`
}

type scoringOutput struct {
	Fields []string `json:"fields"`
	Values [][]any  `json:"values"`
}

type scoringResponse struct {
	Predictions []scoringOutput `json:"predictions"`
}

// Predict scores the request rows against the deployment. The scoring
// payload shape is one input_data block with the field names and all row
// values; the response carries, per row, the predicted label followed by the
// class probability vector.
func (c *WatsonClient) Predict(ctx context.Context, req Request) (*Response, error) {
	if req.DeploymentID == "" {
		return nil, eris.New("watson: deployment id required")
	}
	if len(req.Values) == 0 {
		return &Response{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "watson: rate limiter wait")
	}

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(scoringRequest{
		InputData: []scoringInput{{Fields: req.Fields, Values: req.Values}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "watson: marshal scoring request")
	}

	scoringURL := fmt.Sprintf("%s/ml/v4/deployments/%s/predictions?version=%s",
		c.endpoint, req.DeploymentID, defaultAPIVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, scoringURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "watson: create scoring request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "watson: scoring request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "watson: read scoring response")
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked early; drop the cache so the next
		// attempt re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, resilience.NewTransientError(
			eris.Errorf("watson: scoring status 401: %s", string(respBody)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("watson: scoring status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var scored scoringResponse
	if err := json.Unmarshal(respBody, &scored); err != nil {
		return nil, eris.Wrap(err, "watson: unmarshal scoring response")
	}
	if len(scored.Predictions) == 0 {
		return nil, eris.New("watson: scoring response has no predictions")
	}

	return parsePredictions(scored.Predictions[0], len(req.Values))
}

// parsePredictions converts one scoring output block into row predictions.
// Each row value is [label, [p0, p1, ...]]; confidence is the max class
// probability.
func parsePredictions(out scoringOutput, wantRows int) (*Response, error) {
	if len(out.Values) != wantRows {
		return nil, eris.Errorf("watson: scored %d rows, expected %d", len(out.Values), wantRows)
	}

	preds := make([]RowPrediction, 0, len(out.Values))
	for i, row := range out.Values {
		if len(row) == 0 {
			return nil, eris.Errorf("watson: empty prediction for row %d", i)
		}

		value := stringify(row[0])

		confidence := 0.0
		if len(row) > 1 {
			probs, ok := row[1].([]any)
			if !ok {
				return nil, eris.Errorf("watson: row %d probability vector has unexpected shape", i)
			}
			for _, p := range probs {
				f, ok := p.(float64)
				if !ok {
					return nil, eris.Errorf("watson: row %d probability is not numeric", i)
				}
				if f > confidence {
					confidence = f
				}
			}
		}

		preds = append(preds, RowPrediction{Value: value, Confidence: confidence})
	}

	return &Response{Predictions: preds}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Integral labels come back as JSON numbers.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
