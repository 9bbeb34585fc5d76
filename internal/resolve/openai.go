package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

const systemPrompt = `You classify aquaculture mooring components from Norwegian and English inspection documents.
Given a row description and partial fields, fill in what can be determined. Component nouns are often Norwegian
(anker, sjakkel, kjetting, tau, bøye, svivel, kause, koblingsplate, lodd).
Return strictly one JSON object, no other text:
{"componentType":"anchor|shackle|chain|rope|buoy|swivel|thimble|connector|sinker|unknown",
"subtype":"","manufacturer":"","partNumber":"","trackingNumber":"",
"specifications":{"weightKg":null,"lengthM":null,"diameterMm":null,"capacityT":null},
"confidence":0.0}
Leave fields empty or null when the text does not support them. Never invent part numbers.
confidence is your certainty in [0,1].`

// OpenAIResolver is the reference Resolver implementation: one chat
// completion per ambiguous row, strict-JSON answer.
type OpenAIResolver struct {
	apiKey string
	model  string
	base   string
	httpc  *http.Client
	log    zerolog.Logger
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type resolverAnswer struct {
	ComponentType  string                   `json:"componentType"`
	Subtype        string                   `json:"subtype"`
	Manufacturer   string                   `json:"manufacturer"`
	PartNumber     string                   `json:"partNumber"`
	TrackingNumber string                   `json:"trackingNumber"`
	Specifications *internal.Specifications `json:"specifications"`
	Confidence     float64                  `json:"confidence"`
}

var validComponentTypes = map[string]internal.ComponentType{
	"anchor":    internal.ComponentAnchor,
	"shackle":   internal.ComponentShackle,
	"chain":     internal.ComponentChain,
	"rope":      internal.ComponentRope,
	"buoy":      internal.ComponentBuoy,
	"swivel":    internal.ComponentSwivel,
	"thimble":   internal.ComponentThimble,
	"connector": internal.ComponentConnector,
	"sinker":    internal.ComponentSinker,
}

func NewOpenAIResolver(cfg config.Config, log zerolog.Logger) *OpenAIResolver {
	return &OpenAIResolver{
		apiKey: cfg.OpenAIAPIKey,
		model:  cfg.OpenAIModel,
		base:   strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		httpc:  &http.Client{Timeout: time.Duration(cfg.OpenAITimeoutMs) * time.Millisecond},
		log:    log,
	}
}

func (r *OpenAIResolver) Resolve(ctx context.Context, req Request) (Fields, error) {
	if r.apiKey == "" {
		return Fields{}, errors.New("OPENAI_API_KEY is empty")
	}

	userInput, _ := json.Marshal(map[string]any{
		"rawText":                req.RawText,
		"manufacturerField":      req.ManufacturerField,
		"existingPartNumber":     req.PartNumber,
		"existingTrackingNumber": req.TrackingNumber,
	})
	payload, _ := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "INPUT_JSON:\n" + string(userInput)},
		},
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	})

	body, err := r.post(ctx, payload)
	if err != nil {
		return Fields{}, err
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Fields{}, fmt.Errorf("openai resolve: bad envelope: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Fields{}, errors.New("openai resolve: no choices")
	}

	out := stripCodeFences(strings.TrimSpace(cr.Choices[0].Message.Content))
	var answer resolverAnswer
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		return Fields{}, fmt.Errorf("openai resolve: bad JSON: %w", err)
	}
	return answer.toFields(), nil
}

func (r *OpenAIResolver) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.apiKey)

		resp, err := r.httpc.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				r.log.Debug().Int("status", resp.StatusCode).Dur("backoff", backoff).Msg("openai retry")
				time.Sleep(backoff)
				lastErr = fmt.Errorf("openai status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("openai error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("openai request failed")
	}
	return nil, lastErr
}

func (a resolverAnswer) toFields() Fields {
	f := Fields{Confidence: a.Confidence}
	if ct, ok := validComponentTypes[strings.ToLower(strings.TrimSpace(a.ComponentType))]; ok {
		c := ct
		f.ComponentType = &c
	}
	if s := strings.TrimSpace(a.Subtype); s != "" {
		f.Subtype = util.StringPtr(s)
	}
	if s := strings.TrimSpace(a.Manufacturer); s != "" {
		f.Manufacturer = util.StringPtr(s)
	}
	if s := util.NormalizeCode(a.PartNumber); s != "" {
		f.PartNumber = util.StringPtr(s)
	}
	if s := util.NormalizeCode(a.TrackingNumber); s != "" {
		f.TrackingNumber = util.StringPtr(s)
	}
	if a.Specifications != nil && !a.Specifications.Empty() {
		specs := *a.Specifications
		f.Specs = &specs
	}
	return f
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
