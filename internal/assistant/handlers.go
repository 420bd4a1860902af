package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ashureev/academy-assistant/internal/domain"
)

const maxListedChallenges = 3

var defaultSuggestions = []string{
	"Où en suis-je dans ma formation ?",
	"Quels sont les défis en cours ?",
	"Comment contacter le support ?",
}

func continueLessonAction(cl *domain.ContinueLearning) Action {
	return Action{
		Type:  ActionContinueLesson,
		Label: "Continuer : " + cl.LessonTitle,
		Data: map[string]any{
			"moduleId":       cl.ModuleID,
			"moduleTitle":    cl.ModuleTitle,
			"lessonId":       cl.LessonID,
			"lessonTitle":    cl.LessonTitle,
			"completionRate": cl.CompletionRate,
		},
	}
}

func joinChallengeAction(ch domain.Challenge) Action {
	return Action{
		Type:  ActionJoinChallenge,
		Label: "Rejoindre : " + ch.Title,
		Data: map[string]any{
			"challengeId":    ch.ID,
			"challengeTitle": ch.Title,
		},
	}
}

func claimRewardAction(ch domain.Challenge) Action {
	return Action{
		Type:  ActionClaimReward,
		Label: "Réclamer : " + ch.Reward,
		Data: map[string]any{
			"challengeId":    ch.ID,
			"challengeTitle": ch.Title,
			"reward":         ch.Reward,
		},
	}
}

func viewProgressAction() Action {
	return Action{Type: ActionViewProgress, Label: "Voir ma progression"}
}

func searchAction(label, query string) Action {
	return Action{
		Type:  ActionSearchContent,
		Label: label,
		Data:  map[string]any{"query": query},
	}
}

func greetingName(sc *SessionContext) string {
	if name := sc.Profile.FirstName(); name != "" {
		return " " + name
	}
	return ""
}

func handleGreeting(_ context.Context, _ *Responder, t turn) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour%s ! Je suis l'assistant de l'académie.", greetingName(t.sc))

	resp := Response{Confidence: confidenceGreeting}
	if cl := t.sc.ContinueLearning(); cl != nil {
		fmt.Fprintf(&b, " Prêt à reprendre **%s** ? Votre prochaine leçon : « %s ».", cl.ModuleTitle, cl.LessonTitle)
		resp.Actions = append(resp.Actions, continueLessonAction(cl))
	} else {
		b.WriteString(" Comment puis-je vous aider aujourd'hui ?")
	}
	resp.Message = b.String()
	resp.Suggestions = []string{
		"Voir ma progression",
		"Quels sont les défis en cours ?",
		"Comment fonctionne la formation ?",
	}
	return resp
}

func handleGoodbye(_ context.Context, _ *Responder, t turn) Response {
	msg := fmt.Sprintf("À bientôt%s ! Bonne continuation dans votre formation.", greetingName(t.sc))
	if cl := t.sc.ContinueLearning(); cl != nil {
		msg += fmt.Sprintf(" La leçon « %s » vous attend quand vous voulez.", cl.LessonTitle)
	}
	return Response{Message: msg, Confidence: confidenceGoodbye}
}

func handleThanks(_ context.Context, _ *Responder, _ turn) Response {
	return Response{
		Message:     "Avec plaisir ! N'hésitez pas si vous avez d'autres questions.",
		Suggestions: slices.Clone(defaultSuggestions),
		Confidence:  confidenceThanks,
	}
}

func handleContinueLearning(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceContinueLearning}
	cl := t.sc.ContinueLearning()
	switch {
	case cl != nil:
		resp.Message = fmt.Sprintf(
			"Vous en êtes au module **%s** (%.0f %% terminé). Prochaine leçon : « %s ».",
			cl.ModuleTitle, cl.CompletionRate, cl.LessonTitle)
		resp.Actions = []Action{continueLessonAction(cl)}
	case t.sc.Progress != nil && len(t.sc.Progress.Modules) > 0 &&
		t.sc.Progress.CompletedModules() == len(t.sc.Progress.Modules):
		resp.Message = "Bravo, vous avez terminé tous les modules de la formation ! Pourquoi ne pas relever un défi ?"
		resp.Suggestions = []string{"Quels sont les défis en cours ?"}
	case t.sc.Progress != nil && len(t.sc.Progress.Modules) > 0:
		first := t.sc.Progress.Modules[0]
		resp.Message = fmt.Sprintf("Vous n'avez pas encore commencé. Je vous conseille de débuter par le module **%s**.", first.ModuleTitle)
		resp.Actions = []Action{searchAction("Ouvrir "+first.ModuleTitle, first.ModuleTitle)}
	default:
		resp.Message = "Je n'arrive pas à retrouver votre dernière leçon pour le moment. Vous pouvez la reprendre depuis votre tableau de bord."
		resp.Actions = []Action{viewProgressAction()}
	}
	return resp
}

func handleProgress(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceProgress}
	p := t.sc.Progress
	if p == nil {
		resp.Message = "Je n'arrive pas à récupérer votre progression pour le moment. Elle reste consultable depuis votre tableau de bord."
		resp.Actions = []Action{viewProgressAction()}
		return resp
	}

	completed, total := p.LessonTotals()
	var b strings.Builder
	fmt.Fprintf(&b, "Vous avez terminé %d leçon(s) sur %d (%.0f %%) et %d module(s) sur %d.",
		completed, total, p.OverallRate(), p.CompletedModules(), len(p.Modules))
	for _, m := range p.Modules {
		if m.CompletedLessons == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n- **%s** : %d/%d", m.ModuleTitle, m.CompletedLessons, m.TotalLessons)
		if m.IsCompleted {
			b.WriteString(" ✓")
		}
	}
	if cl := p.ContinueLearning; cl != nil {
		fmt.Fprintf(&b, "\n\nProchaine étape : « %s » dans %s.", cl.LessonTitle, cl.ModuleTitle)
		resp.Actions = append(resp.Actions, continueLessonAction(cl))
	}
	resp.Actions = append(resp.Actions, viewProgressAction())
	resp.Message = b.String()
	resp.Suggestions = []string{"Quelles quêtes sont en cours ?", "Quels sont les défis en cours ?"}
	return resp
}

func handleChallenges(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceChallenges}
	switch {
	case t.sc.Challenges == nil:
		resp.Message = "Je ne parviens pas à charger les défis pour le moment. Réessayez dans quelques instants."
		return resp
	case len(t.sc.Challenges) == 0:
		resp.Message = "Aucun défi n'est actif en ce moment. Revenez bientôt, de nouveaux défis sont lancés régulièrement !"
		resp.Suggestions = []string{"Quelles quêtes sont en cours ?"}
		return resp
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Il y a %d défi(s) actif(s) :", len(t.sc.Challenges))
	for i, ch := range t.sc.Challenges {
		if i == maxListedChallenges {
			break
		}
		fmt.Fprintf(&b, "\n- **%s** : %d/%d, récompense %s, %d participant(s)", ch.Title, ch.Progress, ch.Target, ch.Reward, ch.Participants)
		switch {
		case ch.Claimable():
			b.WriteString(" (terminé, récompense à réclamer)")
			resp.Actions = append(resp.Actions, claimRewardAction(ch))
		case ch.Completed():
			b.WriteString(" (terminé)")
		case ch.Joined() && ch.UserRank != nil:
			fmt.Fprintf(&b, " (inscrit, rang %d)", *ch.UserRank)
		case ch.Joined():
			b.WriteString(" (inscrit)")
		}
	}
	if unjoined := t.sc.UnjoinedChallenges(); len(unjoined) > 0 {
		resp.Actions = append(resp.Actions, joinChallengeAction(unjoined[0]))
	}
	resp.Message = b.String()
	resp.Suggestions = []string{"Quelles récompenses puis-je obtenir ?"}
	return resp
}

func handleQuests(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceQuests}
	switch {
	case t.sc.Quests == nil:
		resp.Message = "Je ne parviens pas à charger vos quêtes pour le moment."
		return resp
	case len(t.sc.Quests) == 0:
		resp.Message = "Vous n'avez aucune quête active. Les quêtes apparaissent au fil de votre formation."
		return resp
	}

	inProgress := t.sc.QuestsInProgress()
	done := 0
	for _, q := range t.sc.Quests {
		if q.Done() {
			done++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Vous avez %d quête(s) en cours et %d terminée(s).", len(inProgress), done)
	for _, q := range inProgress {
		fmt.Fprintf(&b, "\n- **%s** : %d/%d (%d %%)", q.Title, q.Progress, q.Target, q.Percentage)
		if q.Reward.XP != nil {
			fmt.Fprintf(&b, ", %d XP", *q.Reward.XP)
		}
	}
	resp.Message = b.String()
	if cl := t.sc.ContinueLearning(); cl != nil && len(inProgress) > 0 {
		resp.Actions = []Action{continueLessonAction(cl)}
	}
	resp.Suggestions = []string{"Voir ma progression"}
	return resp
}

func handleRewards(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceRewards}
	var claimable []domain.Challenge
	for _, ch := range t.sc.Challenges {
		if ch.Claimable() {
			claimable = append(claimable, ch)
		}
	}
	if len(claimable) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Vous avez %d récompense(s) à réclamer :", len(claimable))
		for _, ch := range claimable {
			fmt.Fprintf(&b, "\n- %s (défi **%s**)", ch.Reward, ch.Title)
			resp.Actions = append(resp.Actions, claimRewardAction(ch))
		}
		resp.Message = b.String()
		return resp
	}

	xp := 0
	for _, q := range t.sc.QuestsInProgress() {
		if q.Reward.XP != nil {
			xp += *q.Reward.XP
		}
	}
	resp.Message = "Les défis et les quêtes rapportent de l'XP et des badges. Aucune récompense n'est à réclamer pour l'instant."
	if xp > 0 {
		resp.Message += fmt.Sprintf(" Vos quêtes en cours peuvent encore vous rapporter %d XP.", xp)
	}
	resp.Suggestions = []string{"Quels sont les défis en cours ?", "Quelles quêtes sont en cours ?"}
	return resp
}

func handleTrainingContent(_ context.Context, _ *Responder, t turn) Response {
	resp := Response{Confidence: confidenceTrainingContent}
	var b strings.Builder
	b.WriteString("La formation est organisée en modules progressifs, des bases du trading jusqu'à la préparation aux prop firms.")
	if p := t.sc.Progress; p != nil && len(p.Modules) > 0 {
		b.WriteString(" Voici les modules :")
		for _, m := range p.Modules {
			fmt.Fprintf(&b, "\n- **%s** (%d leçons)", m.ModuleTitle, m.TotalLessons)
		}
	}
	if cl := t.sc.ContinueLearning(); cl != nil {
		resp.Actions = []Action{continueLessonAction(cl)}
	}
	resp.Message = b.String()
	resp.Suggestions = []string{"Cherche des leçons sur l'analyse technique", "Où en suis-je ?"}
	return resp
}

func handleDefault(_ context.Context, _ *Responder, _ turn) Response {
	return Response{
		Message:     "Je ne suis pas sûr d'avoir bien compris votre question. Pouvez-vous la reformuler ? Je peux vous aider sur votre progression, les défis, les quêtes ou le contenu de la formation.",
		Suggestions: slices.Clone(defaultSuggestions),
		Confidence:  confidenceDefault,
	}
}
