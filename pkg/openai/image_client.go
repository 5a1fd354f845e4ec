package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avdeev/taskchat/pkg/domain"
)

const imagesURL = "https://api.openai.com/v1/images/generations"

type imageClient struct {
	token   string
	baseURL string
	hc      *http.Client
}

func NewImageClient(token string, timeout time.Duration) (*imageClient, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return &imageClient{
		token:   token,
		baseURL: imagesURL,
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// Generate issues exactly one billed request for the given candidate and
// returns the decoded image bytes. Failures come back as *domain.ImageError
// so the pipeline can branch on the kind instead of the message text.
func (c *imageClient) Generate(ctx context.Context, prompt string, candidate domain.GenerationCandidate) ([]byte, error) {
	request := imagesGenerationsRequest{
		Model:          candidate.Model,
		Prompt:         prompt,
		N:              1,
		Size:           candidate.Size,
		Quality:        candidate.Quality,
		ResponseFormat: "b64_json",
		OutputFormat:   candidate.Encoding,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		// Timeouts and transport failures count against the candidate only.
		return nil, &domain.ImageError{Kind: domain.ImageErrorTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp)
	}

	var imageResponse imagesGenerationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&imageResponse); err != nil {
		return nil, fmt.Errorf("decoding response data: %w", err)
	}

	if len(imageResponse.Data) == 0 {
		return nil, fmt.Errorf("no image data in response")
	}

	return imageResponse.Data[0].B64JSON, nil
}

// classifyStatus maps the service's HTTP responses onto error kinds:
// unknown-model and bad-parameter classes mean the candidate is unusable for
// this account, auth and quota failures will recur for every candidate, and
// server errors may pass on the next attempt.
func classifyStatus(resp *http.Response) *domain.ImageError {
	bodyBytes, _ := io.ReadAll(resp.Body)

	message := string(bodyBytes)
	var parsed apiError
	if err := json.Unmarshal(bodyBytes, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	var kind domain.ImageErrorKind
	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		kind = domain.ImageErrorUnsupported
	case resp.StatusCode >= 500:
		kind = domain.ImageErrorTransient
	default:
		// 401, 403, 429 and anything else in the 4xx range: an account
		// problem that a cheaper candidate will not fix.
		kind = domain.ImageErrorFatal
	}

	return &domain.ImageError{Kind: kind, Status: resp.StatusCode, Message: message}
}
