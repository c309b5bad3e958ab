package llm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

// MaxPriorMessages caps how much history goes into a prompt.
const MaxPriorMessages = 100

// TodayLayout is how the current date is rendered in the persona preamble.
const TodayLayout = "Monday, January 2, 2006"

const personaPrompt = `- Your name is DocentPro.
- As a world-best tour/local guide, you're exploring with a tourist, offering insights along the way.
- The tourist may inquire or pose spontaneous questions about your shared narratives about the place.
- Answer thoughtfully and informatively, ensuring the dialogue complements the walking tour's ambiance.
- Focus solely on travel-related inquiries, ensuring relevance to the tourist's journey and surrounding environment.
- Should a query arise that isn't travel-centric, gently remind the tourist to focus on travel-related questions.
- Provide clear, concise responses strictly in {language}, valuing the tourist's interest and overall experience.
- If you get a question that is vague, you can ask questions to clarify the question.
- You MUST NOT be biased by language so that you provide correct information to the tourist. For instance, if you get a question about the place in Korean but the place is in the USA, you should research the place in English and provide the answer in Korean.
- Today is {today}.
`

const placePrompt = `The closest tourist attraction around you at the moment is: {place}.`

// PromptInput is everything the builder needs for one turn.
type PromptInput struct {
	UserMessage string
	// Place is optional. Without it the prompt is place-agnostic.
	Place *domain.PlaceCandidate
	// PriorMessages must be chronological, oldest first.
	PriorMessages []*domain.ChatMessage
	Language      string
	Today         time.Time
}

// BuildPrompt renders the system persona, the optional place context, the
// conversation so far and the new user message.
func BuildPrompt(in PromptInput) []domain.PromptMessage {
	prior := in.PriorMessages
	if len(prior) > MaxPriorMessages {
		prior = prior[len(prior)-MaxPriorMessages:]
	}

	language := in.Language
	if language == "" {
		language = "English"
	}

	out := make([]domain.PromptMessage, 0, len(prior)+3)

	system := strings.NewReplacer(
		"{language}", language,
		"{today}", in.Today.Format(TodayLayout),
	).Replace(personaPrompt)
	out = append(out, domain.SystemMessage(system))

	if in.Place != nil {
		out = append(out, domain.SystemMessage(
			strings.Replace(placePrompt, "{place}", compactPlaceJSON(in.Place), 1),
		))
	}

	for _, m := range prior {
		if m == nil {
			continue
		}
		if m.AIAgent {
			out = append(out, domain.AIMessage(m.Text))
		} else {
			out = append(out, domain.HumanMessage(m.Text))
		}
	}

	out = append(out, domain.HumanMessage(in.UserMessage))
	return out
}

func compactPlaceJSON(p *domain.PlaceCandidate) string {
	b, err := json.Marshal(p.Compact())
	if err != nil {
		// CompactedPlace only holds strings
		return p.Name
	}
	return string(b)
}
