// Package lorem is an offline provider that streams lorem ipsum articles.
// It needs no credentials and is used for demos, load tests and the
// end-to-end suites.
//
// The model name selects the behavior:
//
//	lorem-fast    30 words per second
//	lorem-medium  10 words per second (default)
//	lorem-slow    2 words per second
//	lorem-fail    fails after streaming half of the article
//	lorem-reject  fails before producing any text
package lorem

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/papercomputeco/scribe/pkg/llm"
)

const (
	providerName = "lorem"

	// defaultWords is the article length when the request sets no limit.
	defaultWords = 120
)

var (
	// ErrRejected is produced by the lorem-reject model.
	ErrRejected = errors.New("lorem: generation rejected")

	// ErrInterrupted is produced midway by the lorem-fail model.
	ErrInterrupted = errors.New("lorem: generation interrupted")
)

// Config configures the lorem provider.
type Config struct {
	// WordDelay overrides the per-word pacing implied by the model name.
	// A negative value disables pacing entirely.
	WordDelay time.Duration
}

// Provider implements provider.Provider with generated placeholder text.
type Provider struct {
	wordDelay time.Duration

	// golorem's generator is not safe for concurrent use.
	mu        sync.Mutex
	generator *loremgen.Lorem
}

func New(c Config) *Provider {
	return &Provider{
		wordDelay: c.WordDelay,
		generator: loremgen.New(),
	}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	model := req.Model
	words := Fragments(p.article(req.Subject, req.MaxTokensOr(defaultWords)))
	delay := p.delayFor(model)

	ch := make(chan llm.StreamChunk, 16)
	go func() {
		defer close(ch)

		if strings.Contains(model, "reject") {
			llm.Send(ctx, ch, llm.StreamChunk{Err: ErrRejected})
			return
		}

		failAt := -1
		if strings.Contains(model, "fail") {
			failAt = len(words) / 2
		}

		for i, w := range words {
			if i == failAt {
				llm.Send(ctx, ch, llm.StreamChunk{Err: ErrInterrupted})
				return
			}
			if !llm.Send(ctx, ch, llm.StreamChunk{Text: w}) {
				return
			}
			if !sleep(ctx, delay) {
				return
			}
		}

		llm.Send(ctx, ch, llm.StreamChunk{
			StopReason: "end_turn",
			Usage: &llm.Usage{
				CompletionTokens: len(words),
				TotalTokens:      len(words),
			},
		})
	}()

	return ch, nil
}

// article builds a markdown article of roughly targetWords words, headed by
// the subject when one is given.
func (p *Provider) article(subject string, targetWords int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	if subject != "" {
		sb.WriteString("# ")
		sb.WriteString(strings.TrimSpace(subject))
		sb.WriteString("\n\n")
	}

	wordCount := 0
	paragraphWords := 0
	for wordCount < targetWords {
		sentence := p.generator.Sentence(5, 15)
		n := len(strings.Fields(sentence))
		wordCount += n
		paragraphWords += n

		sb.WriteString(sentence)
		if paragraphWords >= 50 && wordCount < targetWords {
			sb.WriteString("\n\n")
			paragraphWords = 0
			continue
		}
		sb.WriteString(" ")
	}

	return strings.TrimSpace(sb.String()) + "\n"
}

// Fragments splits text into word sized pieces whose concatenation is the
// original text. Each piece carries the whitespace that follows its word.
func Fragments(text string) []string {
	var (
		out   []string
		start int
	)
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n'
		if inSpace && !isSpace {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// delayFor returns the delay between words based on the model name.
func (p *Provider) delayFor(model string) time.Duration {
	switch {
	case p.wordDelay < 0:
		return 0
	case p.wordDelay > 0:
		return p.wordDelay
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
