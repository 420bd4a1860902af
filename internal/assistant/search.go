package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/academy-assistant/internal/domain"
)

const (
	maxSearchModules = 3
	maxSearchLessons = 5
)

var (
	// Text after one of these markers is taken as the query.
	searchMarker = regexp.MustCompile(`\b(?:sur|about|concernant|a propos (?:de|du|des)|parlant de|pour)\s+(.+)$`)
	searchNoise  = regexp.MustCompile(`^(?:je|tu|vous|peux|pouvez|cherche\w*|recherche\w*|trouve\w*|moi|me|une?|des|les?|la|l'|du|de|d'|lecons?|modules?|cours|videos?|contenus?|stp|svp)$`)
	searchPolite = regexp.MustCompile(`\bs'il (?:te|vous) plait\b`)
	searchElide  = regexp.MustCompile(`\b([ld])'`)
	searchPunct  = regexp.MustCompile(`[?!.,;:"«»()]+`)
)

// extractKeyword isolates the subject of a content query. Filler words are
// trimmed from both ends only, so "psychologie du trader" stays whole. It
// returns "" when nothing meaningful is left.
func extractKeyword(text string) string {
	s := normalize(text)
	s = searchPunct.ReplaceAllString(s, " ")
	s = searchPolite.ReplaceAllString(s, " ")
	if m := searchMarker.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	words := strings.Fields(searchElide.ReplaceAllString(s, "$1' "))
	for len(words) > 0 && searchNoise.MatchString(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && searchNoise.MatchString(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.ReplaceAll(strings.Join(words, " "), "' ", "'")
}

// matchesKeyword reports whether every significant word of keyword appears in
// the folded text, in any order.
func matchesKeyword(text, keyword string) bool {
	folded := normalize(text)
	matched := false
	for _, w := range strings.Fields(searchElide.ReplaceAllString(keyword, "$1' ")) {
		if searchNoise.MatchString(w) {
			continue
		}
		if !strings.Contains(folded, w) {
			return false
		}
		matched = true
	}
	return matched
}

type searchResult struct {
	modules []domain.Module
	lessons []domain.Lesson
	titles  map[string]string // module id to title
}

func (r *Responder) search(ctx context.Context, keyword string) searchResult {
	res := searchResult{titles: map[string]string{}}
	if r.content == nil {
		return res
	}

	modules, err := r.content.SearchModules(ctx, keyword)
	if err != nil {
		r.logger.Warn("module search failed", "keyword", keyword, "error", err)
	}
	all, err := r.content.SearchModules(ctx, "")
	if err != nil {
		r.logger.Warn("module listing failed", "error", err)
		all = modules
	}
	for _, m := range all {
		res.titles[m.ID] = m.Title
	}

	// The store matches the raw phrase, so titles are matched again here on
	// folded text word by word.
	if len(modules) == 0 {
		for _, m := range all {
			if matchesKeyword(m.Title+" "+m.Description, keyword) {
				modules = append(modules, m)
			}
		}
	}
	if len(modules) > maxSearchModules {
		modules = modules[:maxSearchModules]
	}
	res.modules = modules

	for _, m := range all {
		if len(res.lessons) == maxSearchLessons || ctx.Err() != nil {
			break
		}
		lessons, err := r.content.ListLessons(ctx, m.ID)
		if err != nil {
			r.logger.Warn("lesson listing failed", "module_id", m.ID, "error", err)
			continue
		}
		for _, l := range lessons {
			if matchesKeyword(l.Title+" "+l.Description, keyword) {
				res.lessons = append(res.lessons, l)
				if len(res.lessons) == maxSearchLessons {
					break
				}
			}
		}
	}
	return res
}

func handleSearchContent(ctx context.Context, r *Responder, t turn) Response {
	keyword := extractKeyword(t.text)
	if keyword == "" {
		return Response{
			Message:     "Sur quel sujet voulez-vous que je cherche ? Par exemple : « cherche des leçons sur le RSI ».",
			Suggestions: []string{"Cherche des leçons sur le money management", "Cherche des leçons sur la psychologie"},
			Confidence:  confidenceSearchEmpty,
		}
	}

	res := r.search(ctx, keyword)
	if len(res.modules) == 0 && len(res.lessons) == 0 {
		return Response{
			Message:     fmt.Sprintf("Je n'ai trouvé aucun contenu correspondant à « %s ».", keyword),
			Actions:     []Action{searchAction("Parcourir le catalogue", keyword)},
			Suggestions: []string{"Quel est le contenu de la formation ?"},
			Confidence:  confidenceSearchEmpty,
		}
	}

	resp := Response{Confidence: confidenceSearchContent}
	var b strings.Builder
	fmt.Fprintf(&b, "Voici ce que j'ai trouvé pour « %s » :", keyword)
	if len(res.modules) > 0 {
		b.WriteString("\n\n**Modules**")
		for _, m := range res.modules {
			fmt.Fprintf(&b, "\n- %s", m.Title)
			if m.Description != "" {
				fmt.Fprintf(&b, " : %s", m.Description)
			}
		}
	}
	if len(res.lessons) > 0 {
		b.WriteString("\n\n**Leçons**")
		for _, l := range res.lessons {
			fmt.Fprintf(&b, "\n- %s (%s)", l.Title, res.titles[l.ModuleID])
		}
		first := res.lessons[0]
		resp.Actions = append(resp.Actions, continueLessonAction(&domain.ContinueLearning{
			ModuleID:    first.ModuleID,
			ModuleTitle: res.titles[first.ModuleID],
			LessonID:    first.ID,
			LessonTitle: first.Title,
		}))
	}
	resp.Actions = append(resp.Actions, searchAction("Voir tous les résultats", keyword))
	resp.Message = b.String()
	return resp
}
