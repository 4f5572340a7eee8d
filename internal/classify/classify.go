// Package classify suggests a category and subcategory for a transaction
// description using Gemini, constrained to the account's own taxonomy.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModel is used when the config does not name one.
const DefaultModel = "gemini-2.0-flash"

// Suggestion is the model's pick for one description.
type Suggestion struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Classifier calls Gemini with the account taxonomy baked into the prompt.
type Classifier struct {
	model string
	log   zerolog.Logger
}

// New creates a classifier for the given model name ("" selects DefaultModel).
func New(model string, log zerolog.Logger) *Classifier {
	if model == "" {
		model = DefaultModel
	}
	return &Classifier{model: model, log: log}
}

// Suggest asks the model to classify description against taxonomy, a map of
// category name to its subcategories. Auth comes from the environment
// (GEMINI_API_KEY or application default credentials).
func (c *Classifier) Suggest(ctx context.Context, description string, taxonomy map[string][]string) (Suggestion, error) {
	prompt, err := buildPrompt(description, taxonomy)
	if err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return Suggestion{}, fmt.Errorf("Suggest: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var out Suggestion
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	if _, ok := taxonomy[out.Category]; !ok {
		c.log.Warn().Str("category", out.Category).Msg("model returned category outside taxonomy")
		return Suggestion{Category: "Outros", Subcategory: ""}, nil
	}
	return out, nil
}

// buildPrompt renders the instruction block. Categories are sorted so the
// same taxonomy always yields the same prompt.
func buildPrompt(description string, taxonomy map[string][]string) (string, error) {
	if len(taxonomy) == 0 {
		return "", fmt.Errorf("buildPrompt: empty taxonomy")
	}

	cats := make([]string, 0, len(taxonomy))
	for cat := range taxonomy {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString("You are a personal-finance transaction classifier.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Classify the transaction description below into a category and subcategory.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("- Output a single JSON object: {\"category\": string, \"subcategory\": string}\n\n")

	b.WriteString("Use ONLY the following Categories and Subcategories:\n\n")
	for _, cat := range cats {
		b.WriteString(cat + ":\n")
		subs := taxonomy[cat]
		if len(subs) == 0 {
			b.WriteString("  (no subcategories - use empty string \"\")\n\n")
			continue
		}
		for _, s := range subs {
			b.WriteString("  - " + s + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("1. Category must be EXACTLY one of the category names shown above (case-sensitive).\n")
	b.WriteString("2. If a category has subcategories listed, you MUST choose one of them.\n")
	b.WriteString("3. If a category shows \"(no subcategories)\", use empty string \"\" for subcategory.\n")
	b.WriteString("4. If you are unsure, use category \"Outros\" with subcategory \"\".\n")
	b.WriteString("5. Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	b.WriteString("6. Output must begin with \"{\" and end with \"}\".\n\n")

	b.WriteString("Transaction description:\n")
	b.WriteString(description + "\n")

	return b.String(), nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there's still junk around the JSON object, keep only from the first
	// '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
