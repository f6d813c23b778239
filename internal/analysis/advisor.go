package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Strategy produces advice for a scenario. ok=false means the strategy has
// nothing to say and the next one in the chain should be tried; an error
// also falls through to the next strategy.
type Strategy interface {
	Name() string
	Advise(ctx context.Context, s Scenario) (Advice, bool, error)
}

// Advisor runs scenarios through an ordered strategy chain. The last
// strategy is expected to always answer, so a fully exhausted chain is a
// configuration error.
type Advisor struct {
	strategies []Strategy
	logger     logrus.FieldLogger
}

func NewAdvisor(logger logrus.FieldLogger, strategies ...Strategy) *Advisor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Advisor{strategies: strategies, logger: logger}
}

// Advise returns the first answer any strategy produces.
func (a *Advisor) Advise(ctx context.Context, s Scenario) (Advice, error) {
	for _, strat := range a.strategies {
		advice, ok, err := strat.Advise(ctx, s)
		if err != nil {
			a.logger.WithError(err).WithField("strategy", strat.Name()).Warn("Strategy failed, trying next")
			continue
		}
		if ok {
			advice.Source = strat.Name()
			return advice, nil
		}
	}
	return Advice{}, fmt.Errorf("no strategy produced advice")
}

// TemplateStrategy answers the common spots it recognizes from a small
// lookup table and passes on everything else.
type TemplateStrategy struct{}

func (TemplateStrategy) Name() string { return "template" }

func (TemplateStrategy) Advise(_ context.Context, s Scenario) (Advice, bool, error) {
	if len(s.HoleCards) != 2 || len(s.Board) > 0 {
		return Advice{}, false, nil
	}
	r1, r2 := cardRank(s.HoleCards[0]), cardRank(s.HoleCards[1])
	if r1 == "" || r2 == "" {
		return Advice{}, false, nil
	}
	if r1 == r2 && premiumPairs[r1] {
		return Advice{
			Recommendation: "raise",
			Reasoning:      fmt.Sprintf("Pocket %ss are a premium pair, open or 3-bet from any position.", r1),
			Confidence:     0.9,
		}, true, nil
	}
	if (r1 == "A" && r2 == "K") || (r1 == "K" && r2 == "A") {
		return Advice{
			Recommendation: "raise",
			Reasoning:      "Ace-king plays well as a raise preflop, you dominate most calling ranges.",
			Confidence:     0.85,
		}, true, nil
	}
	return Advice{}, false, nil
}

var premiumPairs = map[string]bool{"A": true, "K": true, "Q": true, "J": true}

func cardRank(card string) string {
	card = strings.ToUpper(strings.TrimSpace(card))
	if card == "" {
		return ""
	}
	if strings.HasPrefix(card, "10") {
		return "T"
	}
	return card[:1]
}

// OpenAIStrategy asks a chat model for advice. Transient API failures are
// retried with backoff before the chain falls through to the rule-based
// fallback.
type OpenAIStrategy struct {
	client *openai.Client
	model  string
	retry  retrypolicy.RetryPolicy[openai.ChatCompletionResponse]
}

func NewOpenAIStrategy(client *openai.Client) *OpenAIStrategy {
	retry := retrypolicy.NewBuilder[openai.ChatCompletionResponse]().
		WithBackoff(500*time.Millisecond, 4*time.Second).
		WithMaxRetries(2).
		Build()
	return &OpenAIStrategy{
		client: client,
		model:  openai.GPT4oMini,
		retry:  retry,
	}
}

func (s *OpenAIStrategy) Name() string { return "openai" }

func (s *OpenAIStrategy) Advise(ctx context.Context, sc Scenario) (Advice, bool, error) {
	if s.client == nil {
		return Advice{}, false, nil
	}
	prompt := fmt.Sprintf(
		"You are a poker coach. Hand: %s. Position: %s. Stack: %.0fbb. Game: %s. Board: %s. "+
			"Reply with JSON {\"recommendation\":\"fold|call|raise\",\"reasoning\":\"...\",\"confidence\":0.0}.",
		strings.Join(sc.HoleCards, " "), sc.Position, sc.StackBB, sc.GameType, strings.Join(sc.Board, " "))

	resp, err := failsafe.With(s.retry).Get(func() (openai.ChatCompletionResponse, error) {
		return s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
			MaxTokens:   200,
			Temperature: 0.2,
		})
	})
	if err != nil {
		return Advice{}, false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Advice{}, false, fmt.Errorf("chat completion returned no choices")
	}

	var advice Advice
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")
	if err := json.Unmarshal([]byte(content), &advice); err != nil {
		return Advice{}, false, fmt.Errorf("parse model reply: %w", err)
	}
	if advice.Recommendation == "" {
		return Advice{}, false, fmt.Errorf("model reply missing recommendation")
	}
	return advice, true, nil
}

// RuleStrategy is the terminal fallback: it always answers, using stack
// depth and a crude hand-strength read.
type RuleStrategy struct{}

func (RuleStrategy) Name() string { return "rules" }

func (RuleStrategy) Advise(_ context.Context, s Scenario) (Advice, bool, error) {
	pair := len(s.HoleCards) == 2 && cardRank(s.HoleCards[0]) == cardRank(s.HoleCards[1]) && cardRank(s.HoleCards[0]) != ""
	switch {
	case s.StackBB > 0 && s.StackBB <= 15 && pair:
		return Advice{
			Recommendation: "raise",
			Reasoning:      "Short stacked with a pair, shove and realize your equity.",
			Confidence:     0.6,
		}, true, nil
	case s.StackBB > 0 && s.StackBB <= 15:
		return Advice{
			Recommendation: "fold",
			Reasoning:      "Short stacked with an unpaired hand, wait for a better spot.",
			Confidence:     0.5,
		}, true, nil
	case pair:
		return Advice{
			Recommendation: "call",
			Reasoning:      "Pairs play fine deep, see a flop and look to set mine.",
			Confidence:     0.5,
		}, true, nil
	default:
		return Advice{
			Recommendation: "fold",
			Reasoning:      "Without a clear read, folding marginal hands keeps the stack intact.",
			Confidence:     0.4,
		}, true, nil
	}
}
