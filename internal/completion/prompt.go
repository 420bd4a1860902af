package completion

import (
	"fmt"
	"strings"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

const defaultMaxTokens = 600

const basePrompt = `Tu es l'assistant de support d'une académie de trading en ligne.
Réponds en français, de façon concise et bienveillante, en Markdown simple.
Ne donne jamais de conseil en investissement personnalisé ni de signal de trading.
Si la question sort du cadre de la formation, redirige poliment vers le support.`

// SystemPrompt renders the member summary into the instruction sent with
// every completion.
func SystemPrompt(summary assistant.CompactContext) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nContexte du membre :")
	if summary.UserName != "" {
		fmt.Fprintf(&b, "\n- Prénom : %s", summary.UserName)
	}
	if summary.TotalModules > 0 {
		fmt.Fprintf(&b, "\n- Modules terminés : %d/%d", summary.CompletedModules, summary.TotalModules)
		fmt.Fprintf(&b, "\n- Leçons terminées : %d/%d", summary.CompletedLessons, summary.TotalLessons)
	}
	if summary.ContinueModule != "" {
		fmt.Fprintf(&b, "\n- En cours : %s, leçon « %s »", summary.ContinueModule, summary.ContinueLesson)
	}
	for _, ch := range summary.Challenges {
		state := "non inscrit"
		if ch.Joined {
			state = "inscrit"
		}
		fmt.Fprintf(&b, "\n- Défi « %s » : %d/%d (%s)", ch.Title, ch.Progress, ch.Target, state)
	}
	if summary.UserName == "" && summary.TotalModules == 0 && summary.ContinueModule == "" && len(summary.Challenges) == 0 {
		b.WriteString("\n- Aucune information disponible.")
	}
	return b.String()
}
