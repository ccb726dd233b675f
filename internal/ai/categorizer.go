package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront-agent/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Categorizer asks an OpenAI model for the category of a bookkeeping
// transaction the keyword heuristics could not place.
type Categorizer struct {
	client *openai.Client
	model  string
}

func NewCategorizer(apiKey, model string, opts ...option.RequestOption) *Categorizer {
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &Categorizer{client: &client, model: model}
}

func (c *Categorizer) SuggestCategory(ctx context.Context, tx core.Transaction, allowed []string) (core.CategorySuggestion, error) {
	prompt := fmt.Sprintf(`You are a bookkeeper for a small Philippine online store.
Pick the single best category for the transaction below.
Rules:
1. Use ONLY one of the allowed categories, spelled exactly as listed.
2. Provide a confidence score (0.0-1.0).
3. Explain your choice in one sentence.

Allowed categories:
%s

Transaction:
Description: %s
Amount: PHP %s
Source file: %s`, "- "+strings.Join(allowed, "\n- "), tx.Description, tx.Amount.StringFixed(2), tx.SourceFile)

	schemaMap, err := suggestionSchema()
	if err != nil {
		return core.CategorySuggestion{}, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "category_suggestion",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A bookkeeping category for one transaction"),
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return core.CategorySuggestion{}, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return core.CategorySuggestion{}, fmt.Errorf("empty response content")
	}

	var sug core.CategorySuggestion
	if err := json.Unmarshal([]byte(content), &sug); err != nil {
		return core.CategorySuggestion{}, fmt.Errorf("failed to parse completion: %w", err)
	}
	sug.Category = strings.TrimSpace(sug.Category)
	if sug.Category == "" {
		return core.CategorySuggestion{}, fmt.Errorf("model returned no category")
	}
	return sug, nil
}

func suggestionSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(core.CategorySuggestion{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
