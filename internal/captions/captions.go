// Package captions turns a content item into post text. Generation is a
// fallback chain: an LLM first when configured, then category template
// banks, so posting never blocks on an upstream outage.
package captions

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Item describes the content being captioned.
type Item struct {
	Category    string
	Description string
	Title       string
}

// Generator produces a caption for an item. ok=false means this generator
// has nothing and the next in the chain should run.
type Generator interface {
	Generate(ctx context.Context, item Item) (string, bool, error)
}

// Chain tries generators in order and returns the first caption produced.
type Chain struct {
	generators []Generator
	logger     logrus.FieldLogger
}

func NewChain(logger logrus.FieldLogger, generators ...Generator) *Chain {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Chain{generators: generators, logger: logger}
}

func (c *Chain) Generate(ctx context.Context, item Item) (string, error) {
	for _, g := range c.generators {
		caption, ok, err := g.Generate(ctx, item)
		if err != nil {
			c.logger.WithError(err).Warn("Caption generator failed, trying next")
			continue
		}
		if ok {
			return caption, nil
		}
	}
	return "", fmt.Errorf("no caption generator produced output")
}

// TemplateGenerator fills a category-specific caption bank. It always
// answers, making it the terminal link of the chain.
type TemplateGenerator struct {
	rng *rand.Rand
}

// NewTemplateGenerator seeds the bank picker. A nil-safe zero value is not
// provided; callers pass a source so tests can fix the sequence.
func NewTemplateGenerator(seed int64) *TemplateGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TemplateGenerator{rng: rand.New(rand.NewSource(seed))}
}

var captionBanks = map[string][]string{
	"bluff": {
		"the audacity on this one",
		"zero equity, full commitment",
		"this is why you never give up on a pot",
		"imagine making this move with air",
	},
	"badbeat": {
		"I felt this one through the screen",
		"poker is a cruel game sometimes",
		"one outer on the river, of course",
		"looking away does not make it hurt less",
	},
	"hero-call": {
		"the read was REAL",
		"soul read of the century",
		"how do you even find this call",
		"snap call with a bluff catcher, respect",
	},
	"cooler": {
		"nothing anyone can do here",
		"cooler of the year candidate",
		"both players played it perfectly and one still lost everything",
		"set over set never gets easier to watch",
	},
	"funny": {
		"I cannot stop watching this",
		"poker players are a different breed",
		"this table is pure chaos",
		"watch until the end",
	},
	"news": {
		"big news for the poker world",
		"worth a read if you follow the scene",
		"this changes things",
		"interesting development here",
	},
}

var defaultBank = []string{
	"had to share this one",
	"this hand lives rent free in my head",
	"what a spot",
}

func (g *TemplateGenerator) Generate(_ context.Context, item Item) (string, bool, error) {
	bank, ok := captionBanks[strings.ToLower(item.Category)]
	if !ok {
		bank = defaultBank
	}
	caption := bank[g.rng.Intn(len(bank))]
	if item.Title != "" {
		caption = fmt.Sprintf("%s: %s", caption, item.Title)
	}
	return caption, true, nil
}

// OpenAIGenerator asks a chat model for a one line caption. Transient
// failures retry with backoff; a nil client passes the item along.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	retry  retrypolicy.RetryPolicy[openai.ChatCompletionResponse]
}

func NewOpenAIGenerator(client *openai.Client) *OpenAIGenerator {
	retry := retrypolicy.NewBuilder[openai.ChatCompletionResponse]().
		WithBackoff(500*time.Millisecond, 4*time.Second).
		WithMaxRetries(2).
		Build()
	return &OpenAIGenerator{client: client, model: openai.GPT4oMini, retry: retry}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, item Item) (string, bool, error) {
	if g.client == nil {
		return "", false, nil
	}
	prompt := fmt.Sprintf(
		"Write one short casual social media caption (under 120 characters, no hashtags, no quotes) "+
			"for a poker %s clip. Clip description: %s",
		item.Category, item.Description)
	if item.Title != "" {
		prompt = fmt.Sprintf(
			"Write one short casual social media caption (under 120 characters, no hashtags, no quotes) "+
				"reacting to this poker news headline: %s", item.Title)
	}

	resp, err := failsafe.With(g.retry).Get(func() (openai.ChatCompletionResponse, error) {
		return g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
			MaxTokens:   60,
			Temperature: 0.9,
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", false, fmt.Errorf("chat completion returned no choices")
	}
	caption := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if caption == "" {
		return "", false, fmt.Errorf("chat completion returned empty caption")
	}
	return caption, true, nil
}
