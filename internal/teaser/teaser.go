// Package teaser turns article text into short social-media teasers and
// hashtag sets using a tiered text generation backend. Every operation has a
// deterministic fallback so the pipeline keeps moving when the backend is
// unavailable.
package teaser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/metrics"
	"github.com/DMXMax/mjfeed/internal/model"
)

// maxTrendPicks caps how many trending tags a single article may adopt.
const maxTrendPicks = 2

// exampleDescriptionLimit trims few-shot example descriptions so the
// rewrite prompt stays small.
const exampleDescriptionLimit = 150

// TextGenerator is the generation backend. Generate uses the standard model,
// GenerateLite the cheaper tier.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateLite(ctx context.Context, prompt string) (string, error)
}

// TrendSource supplies cached trending tags. An empty result means no
// trending context is available.
type TrendSource interface {
	Read() []model.Tag
}

// ExampleSource supplies recently approved teasers for few-shot prompting.
type ExampleSource interface {
	RecentExamples(ctx context.Context, limit int) ([]model.TeaserExample, error)
}

// Limits holds the length thresholds that drive pre-summarization of long
// article text.
type Limits struct {
	// LongThreshold is the description length above which the text is
	// condensed before teaser generation.
	LongThreshold int
	// SummaryTargetLength is the size a condensed description aims for,
	// and the truncation length when condensing fails.
	SummaryTargetLength int
	// SummaryPromptMaxChars bounds how much article text is embedded in
	// the condensing prompt.
	SummaryPromptMaxChars int
}

type Generator struct {
	gen      TextGenerator
	trends   TrendSource
	examples ExampleSource
	baseTags []string
	limits   Limits
	now      func() time.Time
	log      *slog.Logger
}

// NewGenerator builds a Generator. gen may be nil, in which case every
// operation takes its fallback path.
func NewGenerator(gen TextGenerator, trends TrendSource, examples ExampleSource, baseTags []string, limits Limits) *Generator {
	return &Generator{
		gen:      gen,
		trends:   trends,
		examples: examples,
		baseTags: baseTags,
		limits:   limits,
		now:      time.Now,
		log:      logger.With("teaser"),
	}
}

// Teaser produces a teaser of at most maxLength characters for the given
// article description. Long descriptions are condensed with the lite model
// first. Any generation failure falls back to truncation, never to an error.
func (g *Generator) Teaser(ctx context.Context, description string, maxLength int) string {
	text := description
	if len(text) > g.limits.LongThreshold {
		text = g.condense(ctx, text)
	}

	if g.gen == nil {
		return truncate(text, maxLength)
	}

	prompt := fmt.Sprintf(`Write a teaser for a social media post about the following news article.
The teaser must be at most %d characters, punchy, and make the reader want to click through.
Do not use hashtags or emojis. Reply with the teaser text only.

Article:
%s`, maxLength, text)

	out, err := g.gen.Generate(ctx, prompt)
	if err != nil || out == "" {
		g.log.Warn("teaser generation failed, falling back to truncation", "error", err)
		metrics.Global.IncrementGenerationFallback()
		return truncate(text, maxLength)
	}

	metrics.Global.IncrementTeasersGenerated()
	return truncate(out, maxLength)
}

// condense shrinks a long description with the lite model, truncating to the
// summary target length if that fails.
func (g *Generator) condense(ctx context.Context, text string) string {
	if g.gen == nil {
		return truncate(text, g.limits.SummaryTargetLength)
	}

	excerpt := text
	if len(excerpt) > g.limits.SummaryPromptMaxChars {
		excerpt = excerpt[:g.limits.SummaryPromptMaxChars]
	}

	prompt := fmt.Sprintf(`Summarize the following article text in roughly %d characters.
Keep the key facts and the overall tone. Reply with the summary only.

%s`, g.limits.SummaryTargetLength, excerpt)

	out, err := g.gen.GenerateLite(ctx, prompt)
	if err != nil || out == "" {
		g.log.Warn("pre-summarization failed, truncating instead", "error", err)
		metrics.Global.IncrementGenerationFallback()
		return truncate(text, g.limits.SummaryTargetLength)
	}
	return out
}

// Hashtags assembles the hashtag set for an article: the configured base
// tags, a tag derived from the feed section, and up to two currently
// trending tags judged relevant by the lite model.
func (g *Generator) Hashtags(ctx context.Context, section, title, description string) []string {
	tags := make([]string, len(g.baseTags))
	copy(tags, g.baseTags)

	if section != "" {
		tags = append(tags, "#"+strings.ReplaceAll(section, " ", ""))
	}

	if title == "" || description == "" || g.gen == nil {
		return tags
	}
	trending := g.trends.Read()
	if len(trending) == 0 {
		return tags
	}

	for _, name := range g.relevantTrends(ctx, title, description, trending) {
		tags = append(tags, "#"+name)
	}
	return tags
}

// relevantTrends asks the lite model which trending tags fit the article and
// validates its answer against the candidate list. Tags come back in the
// casing the trend source reported.
func (g *Generator) relevantTrends(ctx context.Context, title, description string, trending []model.Tag) []string {
	byLower := make(map[string]string, len(trending))
	names := make([]string, 0, len(trending))
	for _, tag := range trending {
		byLower[strings.ToLower(tag.Name)] = tag.Name
		names = append(names, tag.Name)
	}

	prompt := fmt.Sprintf(`These hashtags are currently trending: %s

Which of them, if any, are genuinely relevant to this article? Pick at most %d.
Reply with the chosen tags separated by commas, or "none" if none fit.

Title: %s
Article: %s`, strings.Join(names, ", "), maxTrendPicks, title, description)

	out, err := g.gen.GenerateLite(ctx, prompt)
	if err != nil {
		g.log.Warn("trend relevance check failed", "error", err)
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(out), "none") {
		return nil
	}

	var picked []string
	for _, field := range strings.FieldsFunc(out, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		name := strings.TrimPrefix(strings.TrimSpace(field), "#")
		original, ok := byLower[strings.ToLower(name)]
		if !ok {
			continue
		}
		picked = append(picked, original)
		if len(picked) == maxTrendPicks {
			break
		}
	}
	return picked
}

// NewTeaser rewrites a teaser based on reviewer feedback, using recently
// approved teasers as few-shot examples. The fallback embeds the feedback so
// the reviewer can see the rewrite did not happen.
func (g *Generator) NewTeaser(ctx context.Context, description, feedback string, maxLength int) string {
	if g.gen == nil {
		return g.fallbackRewrite(feedback)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the teaser for this article in at most %d characters. The previous attempt was rejected with this feedback:\n", maxLength)
	b.WriteString(feedback)
	b.WriteString("\n\n")

	if g.examples != nil {
		examples, err := g.examples.RecentExamples(ctx, 3)
		if err != nil {
			g.log.Warn("could not load teaser examples", "error", err)
		}
		if len(examples) > 0 {
			b.WriteString("Here are teasers that were approved recently:\n")
			for _, ex := range examples {
				fmt.Fprintf(&b, "Article: %s\nTeaser: %s\n\n", truncate(ex.Description, exampleDescriptionLimit), ex.Teaser)
			}
		}
	}

	b.WriteString("Article:\n")
	b.WriteString(description)
	b.WriteString("\n\nReply with the new teaser text only.")

	out, err := g.gen.Generate(ctx, b.String())
	if err != nil || out == "" {
		g.log.Warn("teaser rewrite failed", "error", err)
		metrics.Global.IncrementGenerationFallback()
		return g.fallbackRewrite(feedback)
	}

	metrics.Global.IncrementTeasersGenerated()
	return truncate(out, maxLength)
}

func (g *Generator) fallbackRewrite(feedback string) string {
	return fmt.Sprintf("New summary based on feedback: %s (Fallback - %s)", feedback, g.now().Format("15:04:05"))
}

// truncate cuts s to at most max characters, appending an ellipsis marker
// when anything was removed.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
