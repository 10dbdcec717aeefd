package acoustic

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// EmotionClassifier optionally labels a window's dominant emotion, given
// its computed Features. Grounded on this pack's go-openai usage (this
// repo and aimuz-transy both depend on sashabaranov/go-openai as the one
// LLM-backed classification client); failures are swallowed exactly like
// an inference-router fallback failure — emotion is best-effort.
type EmotionClassifier struct {
	client *openai.Client
	model  string
}

// NewEmotionClassifier returns nil when apiKey is empty: emotion
// classification is simply omitted from events, per spec.md §4.5 step 3
// ("optionally classify emotion").
func NewEmotionClassifier(apiKey string) *EmotionClassifier {
	if apiKey == "" {
		return nil
	}
	return &EmotionClassifier{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// Classify returns a one-word emotion label, or "" if classification
// fails or the classifier is nil. It never returns an error: the caller
// (the audio processor) must not let this block window emission.
func (c *EmotionClassifier) Classify(ctx context.Context, f Features) string {
	if c == nil || c.client == nil {
		return ""
	}

	prompt := fmt.Sprintf(
		"Acoustic window features: energy=%.4f mfcc_mean=%.4f risk_score=%.4f. "+
			"Reply with exactly one lowercase word naming the most likely speaker "+
			"emotion (e.g. calm, distressed, pain, neutral, anxious). No punctuation.",
		f.Energy, f.MFCCMean, f.RiskScore,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   4,
		Temperature: 0,
	})
	if err != nil || len(resp.Choices) == 0 {
		return ""
	}

	label := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	label = strings.Trim(label, ".,!\"' ")
	if label == "" {
		return ""
	}
	return label
}
