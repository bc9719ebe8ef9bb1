package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"server/internal/infra"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxPollWait  = 300 * time.Second
)

// NanoBananaOptions controls how the NanoBanana client is configured.
type NanoBananaOptions struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxPollWait  time.Duration
}

// NanoBanana is the HTTP client for the external generation service. Submit
// may return results inline (the synchronous backends do); otherwise the
// client polls the job until it completes or the wait budget runs out.
type NanoBanana struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxPollWait  time.Duration
}

func NewNanoBanana(opts NanoBananaOptions) *NanoBanana {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxPollWait := opts.MaxPollWait
	if maxPollWait <= 0 {
		maxPollWait = defaultMaxPollWait
	}
	return &NanoBanana{
		apiKey:       opts.APIKey,
		baseURL:      opts.BaseURL,
		httpClient:   client,
		logger:       opts.Logger,
		pollInterval: pollInterval,
		maxPollWait:  maxPollWait,
	}
}

type createJobRequest struct {
	InputImage       string `json:"input_image"`
	Prompt           string `json:"prompt"`
	Mode             string `json:"mode"`
	OutputFormat     string `json:"output_format"`
	Quality          string `json:"quality"`
	ShadowOption     string `json:"shadow_option,omitempty"`
	ModelGender      string `json:"model_gender,omitempty"`
	SceneEnvironment string `json:"scene_environment,omitempty"`
}

type jobResponse struct {
	JobID           string   `json:"job_id"`
	Status          string   `json:"status"`
	GeneratedImages []string `json:"generated_images"`
	Error           string   `json:"error"`
}

// Generate submits the request and resolves the generated images, polling if
// the service answered asynchronously.
func (c *NanoBanana) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	opts := parseSubOptions(req.Params)
	payload := createJobRequest{
		InputImage:       req.InputURL,
		Prompt:           BuildPrompt(req.Mode, req.PromptOverride),
		Mode:             string(req.Mode),
		OutputFormat:     "png",
		Quality:          "high",
		ShadowOption:     opts.ShadowOption,
		ModelGender:      opts.ModelGender,
		SceneEnvironment: opts.SceneEnvironment,
	}

	resp, err := c.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	images := resp.GeneratedImages
	if len(images) == 0 && resp.JobID != "" {
		polled, err := c.PollUntilComplete(ctx, resp.JobID)
		if err != nil {
			return nil, err
		}
		images = polled.GeneratedImages
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("generation returned no images")
	}

	decoded := make([][]byte, 0, len(images))
	for i, encoded := range images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", i+1, err)
		}
		decoded = append(decoded, data)
	}

	return &GenerateResult{ProviderJobID: resp.JobID, Images: decoded}, nil
}

// Submit creates a generation job on the remote service.
func (c *NanoBanana) Submit(ctx context.Context, payload createJobRequest) (*jobResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
}

// Poll fetches the current status of a previously submitted job.
func (c *NanoBanana) Poll(ctx context.Context, providerJobID string) (*jobResponse, error) {
	return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+providerJobID, nil)
}

// PollUntilComplete polls the job until it reports a terminal status or the
// wait budget elapses.
func (c *NanoBanana) PollUntilComplete(ctx context.Context, providerJobID string) (*jobResponse, error) {
	deadline := time.Now().Add(c.maxPollWait)
	for {
		resp, err := c.Poll(ctx, providerJobID)
		if err != nil {
			return nil, err
		}
		switch resp.Status {
		case "completed":
			return resp, nil
		case "failed":
			if resp.Error != "" {
				return nil, fmt.Errorf("generation failed: %s", resp.Error)
			}
			return nil, fmt.Errorf("generation failed")
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("generation timed out after %s", c.maxPollWait)
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *NanoBanana) doJSON(ctx context.Context, method, url string, body io.Reader) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var parsed jobResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Generator = (*NanoBanana)(nil)
