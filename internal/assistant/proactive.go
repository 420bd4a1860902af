package assistant

import (
	"fmt"
	"time"
)

// IdleThreshold is how long the conversation must be quiet before the
// assistant speaks unprompted.
const IdleThreshold = 5 * time.Minute

const confidenceProactive = 0.9

// Clock returns the current time.
type Clock func() time.Time

// proactiveEligible applies the idle rule and the state conditions.
func proactiveEligible(sc *SessionContext, last *Message, now time.Time) bool {
	if sc == nil || sc.UserID == "" {
		return false
	}
	if last != nil && now.Sub(last.Timestamp) < IdleThreshold {
		return false
	}
	return sc.ContinueLearning() != nil ||
		len(sc.UnjoinedChallenges()) > 0 ||
		len(sc.QuestsInProgress()) > 0
}

// buildProactive assembles the proactive reply, or nil when nothing qualifies.
func buildProactive(sc *SessionContext, last *Message, now time.Time) *Response {
	if !proactiveEligible(sc, last, now) {
		return nil
	}

	resp := &Response{
		Actions:    []Action{},
		Confidence: confidenceProactive,
	}
	var lead string
	if cl := sc.ContinueLearning(); cl != nil {
		lead = fmt.Sprintf("Votre leçon « %s » du module %s vous attend.", cl.LessonTitle, cl.ModuleTitle)
		resp.Suggestions = append(resp.Suggestions, "Reprendre « "+cl.LessonTitle+" »")
		resp.Actions = append(resp.Actions, continueLessonAction(cl))
	}
	if unjoined := sc.UnjoinedChallenges(); len(unjoined) > 0 {
		ch := unjoined[0]
		if lead == "" {
			lead = fmt.Sprintf("Le défi « %s » est ouvert, %d membre(s) y participent déjà.", ch.Title, ch.Participants)
		}
		resp.Suggestions = append(resp.Suggestions, "Rejoindre le défi « "+ch.Title+" »")
		resp.Actions = append(resp.Actions, joinChallengeAction(ch))
	}
	if quests := sc.QuestsInProgress(); len(quests) > 0 {
		q := quests[0]
		if lead == "" {
			lead = fmt.Sprintf("Votre quête « %s » est à %d %%.", q.Title, q.Percentage)
		}
		resp.Suggestions = append(resp.Suggestions, fmt.Sprintf("Avancer sur « %s » (%d/%d)", q.Title, q.Progress, q.Target))
	}

	tod := timeOfDaySuggestion(now)
	resp.Suggestions = append(resp.Suggestions, tod)
	resp.Message = lead + " " + tod
	if name := sc.Profile.FirstName(); name != "" {
		resp.Message = name + ", " + lowerFirst(resp.Message)
	}
	return resp
}

// timeOfDaySuggestion frames a suggestion for the hour of now: morning
// 05:00-11:59, afternoon 12:00-17:59, evening otherwise.
func timeOfDaySuggestion(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		return "Une leçon ce matin pour bien démarrer la journée ?"
	case h >= 12 && h < 18:
		return "Une pause cet après-midi ? C'est le moment idéal pour une leçon courte."
	default:
		return "Ce soir, prenez quelques minutes pour revoir ce que vous avez appris."
	}
}

func lowerFirst(s string) string {
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			return string(r+'a'-'A') + s[i+1:]
		}
		return s
	}
	return s
}
