package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// RetryPolicy controls CallWithRetry. A wait list shorter than the attempt count reuses its
// last value.
type RetryPolicy struct {
	MaxAttempts          int
	RateLimitWaitTimes   []time.Duration
	ServerErrorWaitTimes []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		RateLimitWaitTimes:   []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerErrorWaitTimes: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// CallWithRetry retries rate-limit and server errors with the policy's waits and returns any
// other error immediately.
func CallWithRetry(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, policy RetryPolicy) (*openai.ChatCompletion, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var wait time.Duration
		switch {
		case isRateLimitError(err):
			wait = waitFor(policy.RateLimitWaitTimes, attempt)
		case isServerError(err):
			wait = waitFor(policy.ServerErrorWaitTimes, attempt)
		default:
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func waitFor(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt < len(waits) {
		return waits[attempt]
	}
	return waits[len(waits)-1]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if statusCode(err) == http.StatusTooManyRequests {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code >= 500 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint, including
// Ollama's /v1.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	policy RetryPolicy
}

func NewOpenAIBackend(baseURL, apiKey, model string, timeout time.Duration, policy RetryPolicy) *OpenAIBackend {
	if strings.TrimSpace(apiKey) == "" {
		// Local servers ignore the key but the client refuses to send an empty one.
		apiKey = "unused"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := openai.NewClient(opts...)
	return &OpenAIBackend{client: &client, model: model, policy: policy}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Complete(ctx context.Context, req ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "journal_analysis",
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := CallWithRetry(ctx, b.client, params, b.policy)
	if err != nil {
		return "", &TransportError{Backend: b.Name(), StatusCode: statusCode(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &TransportError{Backend: b.Name(), Err: errors.New("response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// GenerateSchema reflects T into a strict JSON schema: every object rejects additional
// properties and lists all of its properties as required, sorted by name.
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	b, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		return nil, fmt.Errorf("GenerateSchema: marshal: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("GenerateSchema: decode: %w", err)
	}
	closeObjects(schema)
	return schema, nil
}

// closeObjects walks properties and array items, applying the strict-mode object rules.
func closeObjects(node map[string]any) {
	props, _ := node["properties"].(map[string]any)
	if node["type"] == "object" {
		node["additionalProperties"] = false
		if len(props) > 0 {
			node["required"] = slices.Sorted(maps.Keys(props))
		}
	}
	for _, prop := range props {
		if child, ok := prop.(map[string]any); ok {
			closeObjects(child)
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		closeObjects(items)
	}
}
