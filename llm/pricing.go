package llm

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrUnknownModel = errors.New("llm: no price for model")

type ModelPrice struct {
	InputCostPerToken  float64 `json:"input_cost_per_token" yaml:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token" yaml:"output_cost_per_token"`
}

// PriceTable maps model names to per-token prices.
type PriceTable map[string]ModelPrice

var _ CostCalculator = PriceTable(nil)

func (p PriceTable) Cost(resp Response, model string) (float64, error) {
	price, ok := p[model]
	if !ok && resp.Model != "" {
		price, ok = p[resp.Model]
	}
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	return float64(resp.Usage.PromptTokens)*price.InputCostPerToken +
		float64(resp.Usage.CompletionTokens)*price.OutputCostPerToken, nil
}

// ParsePriceTable reads a litellm style model_prices document. Entries
// without token prices (image models, sample_spec ...) are skipped.
func ParsePriceTable(doc []byte) (PriceTable, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("llm: price document is not JSON")
	}
	out := make(PriceTable)
	gjson.ParseBytes(doc).ForEach(func(model, v gjson.Result) bool {
		in, outp := v.Get("input_cost_per_token"), v.Get("output_cost_per_token")
		if !in.Exists() && !outp.Exists() {
			return true
		}
		out[model.String()] = ModelPrice{InputCostPerToken: in.Float(), OutputCostPerToken: outp.Float()}
		return true
	})
	return out, nil
}
