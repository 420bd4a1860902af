package assistant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is the communicative purpose recognized in a member message.
type Intent string

// The fixed intent enumeration.
const (
	IntentGreeting          Intent = "greeting"
	IntentGoodbye           Intent = "goodbye"
	IntentThanks            Intent = "thanks"
	IntentContinueLearning  Intent = "continue_learning"
	IntentProgress          Intent = "progress"
	IntentPropFirm          Intent = "prop_firm"
	IntentChallenges        Intent = "challenges"
	IntentQuests            Intent = "quests"
	IntentRewards           Intent = "rewards"
	IntentSearchContent     Intent = "search_content"
	IntentTrainingContent   Intent = "training_content"
	IntentLiveSessions      Intent = "live_sessions"
	IntentCertificate       Intent = "certificate"
	IntentDiscord           Intent = "discord"
	IntentRegistration      Intent = "registration"
	IntentAccount           Intent = "account"
	IntentRefund            Intent = "refund"
	IntentPricing           Intent = "pricing"
	IntentOnboarding        Intent = "onboarding"
	IntentFounder           Intent = "founder"
	IntentResults           Intent = "results"
	IntentSignals           Intent = "signals"
	IntentMoneyManagement   Intent = "money_management"
	IntentTechnicalAnalysis Intent = "technical_analysis"
	IntentPsychology        Intent = "psychology"
	IntentStrategies        Intent = "strategies"
	IntentTechnicalSupport  Intent = "technical_support"
	IntentContact           Intent = "contact"
	IntentHelp              Intent = "help"
	IntentDefault           Intent = "default"
)

var allIntents = []Intent{
	IntentGreeting, IntentGoodbye, IntentThanks, IntentContinueLearning,
	IntentProgress, IntentPropFirm, IntentChallenges, IntentQuests,
	IntentRewards, IntentSearchContent, IntentTrainingContent,
	IntentLiveSessions, IntentCertificate, IntentDiscord, IntentRegistration,
	IntentAccount, IntentRefund, IntentPricing, IntentOnboarding,
	IntentFounder, IntentResults, IntentSignals, IntentMoneyManagement,
	IntentTechnicalAnalysis, IntentPsychology, IntentStrategies,
	IntentTechnicalSupport, IntentContact, IntentHelp, IntentDefault,
}

// Intents returns the fixed enumeration.
func Intents() []Intent {
	return append([]Intent(nil), allIntents...)
}

// Valid reports whether i belongs to the enumeration.
func (i Intent) Valid() bool {
	for _, v := range allIntents {
		if v == i {
			return true
		}
	}
	return false
}

type intentRule struct {
	pattern *regexp.Regexp
	intent  Intent
}

// intentRules are evaluated top to bottom against folded text; the first
// match wins. Order is priority: greetings before help, prop firm before
// generic challenges, continue-learning and search before training content,
// account before contact, refund before pricing.
var intentRules = []intentRule{
	{regexp.MustCompile(`\b(salut|bonjour|bonsoir|hello|hi|hey|coucou|slt|bjr)\b`), IntentGreeting},
	{regexp.MustCompile(`\b(au revoir|bye|a plus|a bientot|ciao|bonne (journee|soiree|nuit))\b`), IntentGoodbye},
	{regexp.MustCompile(`\b(merci|thanks|thank you|thx)\b`), IntentThanks},
	{regexp.MustCompile(`\b(continuer|reprendre|prochaine lecon|lecon suivante|next lesson|ou j'en (etais|suis))\b`), IntentContinueLearning},
	{regexp.MustCompile(`\b(progression|progres|avancement|mes stats|statistiques|ou en suis-je)\b`), IntentProgress},
	{regexp.MustCompile(`\b(prop ?firms?|ftmo|funded|compte finance|capital finance)\b`), IntentPropFirm},
	{regexp.MustCompile(`\b(defis?|challenges?)\b`), IntentChallenges},
	{regexp.MustCompile(`\b(quetes?|quests?|missions?)\b`), IntentQuests},
	{regexp.MustCompile(`\b(recompenses?|xp|badges?|reclamer)\b`), IntentRewards},
	{regexp.MustCompile(`\b(cherche\w*|recherche\w*|trouve\w*)\b|\b(lecons?|modules?|cours|videos?) (sur|about)\b`), IntentSearchContent},
	{regexp.MustCompile(`\b(formations?|modules?|cours|lecons?|contenus?|programme|videos?)\b`), IntentTrainingContent},
	{regexp.MustCompile(`\b(lives?|webinaires?|replays?|en direct)\b`), IntentLiveSessions},
	{regexp.MustCompile(`\b(certificats?|certification|diplomes?|attestation)\b`), IntentCertificate},
	{regexp.MustCompile(`\b(discord|communaute|serveur)\b`), IntentDiscord},
	{regexp.MustCompile(`\b(inscri\w*|s'inscrire|creer un compte|sign ?up)\b`), IntentRegistration},
	{regexp.MustCompile(`\b(mot de passe|password|mon compte|connexion|identifiants?|mon profil)\b`), IntentAccount},
	{regexp.MustCompile(`\b(rembours\w*|annul\w*|resili\w*|garantie)\b`), IntentRefund},
	{regexp.MustCompile(`\b(prix|tarifs?|combien|couts?|coute|abonnements?|payer|paiement|offres?)\b`), IntentPricing},
	{regexp.MustCompile(`\b(commencer|debuter|debutant|par ou|premiers pas|demarrer)\b`), IntentOnboarding},
	{regexp.MustCompile(`\b(fondat\w*|createur|qui a cree|qui est derriere)\b`), IntentFounder},
	{regexp.MustCompile(`\b(resultats?|temoignages?|avis|performances?|rentab\w*)\b`), IntentResults},
	{regexp.MustCompile(`\b(signal|signaux|alertes?|copy ?trading)\b`), IntentSignals},
	{regexp.MustCompile(`\b(money management|gestion (du|de) (risque|capital)|risques?|stop ?loss|taille de position|levier|drawdown)\b`), IntentMoneyManagement},
	{regexp.MustCompile(`\b(analyse technique|indicateurs?|rsi|macd|supports?|resistances?|chandeliers?|bougies?|tendances?|fibonacci|moyennes? mobiles?)\b`), IntentTechnicalAnalysis},
	{regexp.MustCompile(`\b(psycholog\w*|emotions?|peur|stress|discipline|mental|patience|frustr\w*)\b`), IntentPsychology},
	{regexp.MustCompile(`\b(strategies?|strategy|setups?|scalping|swing|day ?trading|methodes?)\b`), IntentStrategies},
	{regexp.MustCompile(`\b(bugs?|beug|erreur|marche pas|fonctionne pas|probleme technique|plante|bloque|page blanche)\b`), IntentTechnicalSupport},
	{regexp.MustCompile(`\b(contact\w*|joindre|support|telephone|humain|conseiller|parler a quelqu'un)\b`), IntentContact},
	{regexp.MustCompile(`\b(aide|aider|help|besoin|comment ca marche|que peux-tu|tu peux faire)\b`), IntentHelp},
}

var spaceRun = regexp.MustCompile(`\s+`)

// normalize trims, lowercases and folds diacritics and typographic apostrophes.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("’", "'", "‘", "'", "`", "'").Replace(s)
	// A chain holds state, so one is built per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	return spaceRun.ReplaceAllString(s, " ")
}

// AnalyzeIntent maps free text to an intent. It never panics and returns
// IntentDefault for empty or unmatched input.
func AnalyzeIntent(text string) Intent {
	s := normalize(text)
	if s == "" {
		return IntentDefault
	}
	for _, rule := range intentRules {
		if rule.pattern.MatchString(s) {
			return rule.intent
		}
	}
	return IntentDefault
}
