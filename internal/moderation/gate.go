package moderation

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// API is the moderation capability; satisfied by *openai.Client.
type API interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// Gate submits text to the moderation capability. With failOpen set (the
// default), a capability error yields an unflagged verdict instead of
// blocking the conversation. That is a deliberate product decision; flip
// bot.fail_open_moderation in config to get fail-closed behavior.
type Gate struct {
	client   API
	model    string
	failOpen bool
	logger   *zap.Logger
}

func NewGate(client API, model string, failOpen bool, logger *zap.Logger) *Gate {
	if model == "" {
		model = openai.ModerationTextStable
	}
	return &Gate{
		client:   client,
		model:    model,
		failOpen: failOpen,
		logger:   logger,
	}
}

// Check moderates a single piece of text. With failOpen the returned error
// is always nil.
func (g *Gate) Check(ctx context.Context, text string) (models.Verdict, error) {
	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: g.model,
	})
	if err != nil {
		if g.failOpen {
			g.logger.Warn("Moderation capability failed, failing open", zap.Error(err))
			return models.Verdict{}, nil
		}
		return models.Verdict{}, err
	}

	if len(resp.Results) == 0 {
		return models.Verdict{}, nil
	}

	result := resp.Results[0]
	verdict := models.Verdict{
		Flagged: result.Flagged,
		Scores:  make(map[string]float64),
	}
	for _, c := range categoriesOf(result) {
		if c.flagged {
			verdict.Categories = append(verdict.Categories, c.label)
		}
		verdict.Scores[c.label] = c.score
	}

	return verdict, nil
}

type category struct {
	label   string
	flagged bool
	score   float64
}

// categoriesOf flattens the capability's fixed category fields in its
// documented order.
func categoriesOf(r openai.Result) []category {
	return []category{
		{"hate", r.Categories.Hate, float64(r.CategoryScores.Hate)},
		{"hate/threatening", r.Categories.HateThreatening, float64(r.CategoryScores.HateThreatening)},
		{"harassment", r.Categories.Harassment, float64(r.CategoryScores.Harassment)},
		{"harassment/threatening", r.Categories.HarassmentThreatening, float64(r.CategoryScores.HarassmentThreatening)},
		{"self-harm", r.Categories.SelfHarm, float64(r.CategoryScores.SelfHarm)},
		{"self-harm/intent", r.Categories.SelfHarmIntent, float64(r.CategoryScores.SelfHarmIntent)},
		{"self-harm/instructions", r.Categories.SelfHarmInstructions, float64(r.CategoryScores.SelfHarmInstructions)},
		{"sexual", r.Categories.Sexual, float64(r.CategoryScores.Sexual)},
		{"sexual/minors", r.Categories.SexualMinors, float64(r.CategoryScores.SexualMinors)},
		{"violence", r.Categories.Violence, float64(r.CategoryScores.Violence)},
		{"violence/graphic", r.Categories.ViolenceGraphic, float64(r.CategoryScores.ViolenceGraphic)},
	}
}
