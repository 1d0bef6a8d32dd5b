package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

const (
	DefaultModel     = "claude-haiku-4-5"
	DefaultMaxTokens = 400

	// responses shorter than this are treated as unusable
	minSummaryLength = 20
)

const systemPrompt = "You are a grocery shopping assistant. Give concise, actionable advice in under 150 words. Amounts are in Indian rupees."

// AnthropicConfig holds configuration for the LLM summarizer
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string
	Options   []option.RequestOption
}

// Anthropic asks a Claude model for shopping advice about a plan.
type Anthropic struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates the LLM summarizer
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	return &Anthropic{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Summarize returns domain.ErrSummaryUnavailable when the model gives nothing usable.
func (a *Anthropic) Summarize(ctx context.Context, city string, plan *domain.AllocationPlan) (string, error) {
	prompt, err := buildPrompt(city, plan)
	if err != nil {
		return "", err
	}

	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	text = strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	if len(text) < minSummaryLength {
		return "", eris.Wrapf(domain.ErrSummaryUnavailable, "anthropic: response too short (%d chars)", len(text))
	}
	return text, nil
}

type storeBreakdown struct {
	Items       []string `json:"items"`
	Subtotal    string   `json:"subtotal"`
	DeliveryFee string   `json:"delivery_fee"`
}

func buildPrompt(city string, plan *domain.AllocationPlan) (string, error) {
	if plan == nil {
		return "", domain.NewValidationError("plan", "must not be nil")
	}

	breakdown := make(map[string]storeBreakdown)
	for store, assignments := range plan.ItemsByStore() {
		sb := storeBreakdown{
			Subtotal:    plan.PerStoreSubtotal[store].String(),
			DeliveryFee: plan.DeliveryFeesCharged[store].String(),
		}
		for _, a := range assignments {
			name := string(a.Item)
			if a.DisplayName != "" {
				name += " (" + a.DisplayName + ")"
			}
			sb.Items = append(sb.Items, fmt.Sprintf("%s: ₹%s", name, a.Price))
		}
		breakdown[store] = sb
	}
	breakdownJSON, err := json.MarshalIndent(breakdown, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "anthropic: marshal breakdown")
	}

	checked := make([]string, 0, len(plan.PerStoreSubtotal))
	for store := range plan.PerStoreSubtotal {
		checked = append(checked, store)
	}
	sort.Strings(checked)

	unavailable := "None"
	if len(plan.UnavailableItems) > 0 {
		names := make([]string, len(plan.UnavailableItems))
		for i, u := range plan.UnavailableItems {
			names[i] = string(u.Item)
		}
		unavailable = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this grocery cart optimization result and write a helpful summary.\n\n")
	fmt.Fprintf(&b, "SHOPPING REQUEST:\n- Location: %s\n- Stores checked: %s\n\n", city, strings.Join(checked, ", "))
	fmt.Fprintf(&b, "OPTIMIZATION RESULT (%s strategy):\n", plan.Strategy)
	fmt.Fprintf(&b, "- Items found: %d/%d\n", len(plan.Assignments), len(plan.Assignments)+len(plan.UnavailableItems))
	fmt.Fprintf(&b, "- Total cost including delivery: ₹%s\n", plan.GrandTotal)
	fmt.Fprintf(&b, "- Stores to order from: %d\n", len(plan.StoresUsed()))
	fmt.Fprintf(&b, "- Unavailable items: %s\n\n", unavailable)
	fmt.Fprintf(&b, "STORE BREAKDOWN:\n%s\n\n", breakdownJSON)
	b.WriteString("Include practical ordering advice and alternatives for unavailable items.")
	return b.String(), nil
}
