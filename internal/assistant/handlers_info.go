package assistant

import (
	"context"
	"strconv"
)

// info builds a fixed informational reply.
func info(msg string, confidence float64, suggestions []string, actions ...Action) Response {
	return Response{
		Message:     msg,
		Actions:     actions,
		Suggestions: suggestions,
		Confidence:  confidence,
	}
}

func handleLiveSessions(_ context.Context, _ *Responder, _ turn) Response {
	return info("Des sessions live sont organisées chaque semaine avec les formateurs. Les horaires sont annoncés sur le Discord et les replays sont disponibles dans votre espace membre.",
		confidenceLiveSessions,
		[]string{"Comment rejoindre le Discord ?"})
}

func handleCertificate(_ context.Context, _ *Responder, t turn) Response {
	msg := "Un certificat de réussite est délivré lorsque tous les modules de la formation sont terminés."
	if p := t.sc.Progress; p != nil && len(p.Modules) > 0 {
		if left := len(p.Modules) - p.CompletedModules(); left > 0 {
			msg += " Il vous reste " + strconv.Itoa(left) + " module(s) à terminer."
		} else {
			msg += " Vous avez tout terminé : votre certificat est disponible depuis votre tableau de bord."
		}
	}
	return info(msg, confidenceCertificate, []string{"Où en suis-je ?"}, viewProgressAction())
}

func handleDiscord(_ context.Context, _ *Responder, _ turn) Response {
	return info("La communauté se retrouve sur notre serveur Discord. Le lien d'invitation se trouve dans votre tableau de bord, rubrique Communauté.",
		confidenceDiscord,
		[]string{"Quand ont lieu les lives ?"})
}

func handleRegistration(_ context.Context, _ *Responder, _ turn) Response {
	return info("Pour vous inscrire, choisissez une offre sur la page Tarifs puis créez votre compte. L'accès à la formation est immédiat après le paiement.",
		confidenceRegistration,
		[]string{"Quels sont les tarifs ?", "Par où commencer ?"})
}

func handleAccount(_ context.Context, _ *Responder, _ turn) Response {
	return info("Vous pouvez modifier vos informations et votre mot de passe depuis la page Profil. En cas de problème de connexion, utilisez « Mot de passe oublié » sur la page de connexion.",
		confidenceAccount,
		[]string{"Comment contacter le support ?"})
}

func handleRefund(_ context.Context, _ *Responder, _ turn) Response {
	return info("Les demandes de remboursement ou d'annulation sont traitées par l'équipe support, selon les conditions générales de vente. Écrivez-nous depuis la page Contact en précisant votre adresse e-mail.",
		confidenceRefund,
		[]string{"Comment contacter le support ?"})
}

func handlePricing(_ context.Context, _ *Responder, _ turn) Response {
	return info("Les offres et leurs tarifs sont détaillés sur la page Tarifs. Chaque offre donne accès à l'ensemble des modules, aux lives et à la communauté.",
		confidencePricing,
		[]string{"Comment s'inscrire ?", "Quel est le contenu de la formation ?"})
}

func handleOnboarding(_ context.Context, _ *Responder, t turn) Response {
	if cl := t.sc.ContinueLearning(); cl != nil {
		return info("Vous avez déjà commencé ! Reprenez là où vous vous êtes arrêté : « "+cl.LessonTitle+" ».",
			confidenceOnboarding, nil, continueLessonAction(cl))
	}
	return info("Pour bien démarrer, suivez les modules dans l'ordre en commençant par les bases du trading, puis rejoignez la communauté sur Discord.",
		confidenceOnboarding,
		[]string{"Quel est le contenu de la formation ?", "Comment rejoindre le Discord ?"},
		searchAction("Voir les bases", "bases"))
}

func handleFounder(_ context.Context, _ *Responder, _ turn) Response {
	return info("L'académie a été fondée par des traders professionnels qui souhaitaient transmettre une méthode structurée, axée sur la gestion du risque et la discipline.",
		confidenceFounder,
		[]string{"Quels résultats obtiennent les élèves ?"})
}

func handleResults(_ context.Context, _ *Responder, _ turn) Response {
	return info("Les témoignages d'élèves sont disponibles sur la page Résultats. Le trading comporte des risques : les performances passées ne préjugent pas des performances futures.",
		confidenceResults,
		[]string{"Comment gérer mon risque ?"})
}

func handleSignals(_ context.Context, _ *Responder, _ turn) Response {
	return info("L'académie ne fournit pas de signaux de trading : l'objectif est de vous rendre autonome dans vos prises de décision.",
		confidenceSignals,
		[]string{"Quelles stratégies sont enseignées ?"})
}

func handleMoneyManagement(_ context.Context, _ *Responder, _ turn) Response {
	return info("La gestion du risque est au cœur de la méthode : risquer un faible pourcentage du capital par trade, toujours placer un stop loss et adapter la taille de position.",
		confidenceMoneyManagement,
		[]string{"Cherche des leçons sur le money management"},
		searchAction("Module money management", "money management"))
}

func handleTechnicalAnalysis(_ context.Context, _ *Responder, _ turn) Response {
	return info("L'analyse technique est couverte en détail : supports et résistances, tendances, chandeliers et indicateurs comme le RSI ou le MACD.",
		confidenceTechnicalAnalysis,
		[]string{"Cherche des leçons sur les indicateurs"},
		searchAction("Module analyse technique", "analyse"))
}

func handlePsychology(_ context.Context, _ *Responder, _ turn) Response {
	return info("La psychologie du trader est un module à part entière : gestion des émotions, discipline et tenue d'un journal de trading.",
		confidencePsychology,
		[]string{"Quels sont les défis en cours ?"},
		searchAction("Module psychologie", "psychologie"))
}

func handleStrategies(_ context.Context, _ *Responder, _ turn) Response {
	return info("Plusieurs approches sont enseignées, du scalping au swing trading. Chaque stratégie est présentée avec ses règles d'entrée, de sortie et de gestion du risque.",
		confidenceStrategies,
		[]string{"Comment gérer mon risque ?"},
		searchAction("Voir les stratégies", "strategie"))
}

func handlePropFirm(_ context.Context, _ *Responder, _ turn) Response {
	return info("Un module dédié prépare aux challenges de prop firms : règles de drawdown, objectifs de profit et gestion du risque adaptée au compte financé.",
		confidencePropFirm,
		[]string{"Comment gérer mon risque ?"},
		searchAction("Module prop firm", "prop firm"))
}

func handleTechnicalSupport(_ context.Context, _ *Responder, _ turn) Response {
	return info("Désolé pour ce désagrément. Essayez de recharger la page ou de vider le cache du navigateur. Si le problème persiste, contactez le support en décrivant ce qui se passe.",
		confidenceTechnicalSupport,
		[]string{"Comment contacter le support ?"})
}

func handleContact(_ context.Context, _ *Responder, _ turn) Response {
	return info("Vous pouvez joindre l'équipe depuis la page Contact ou par e-mail. Nous répondons généralement sous 24 heures ouvrées.",
		confidenceContact, nil)
}

func handleHelp(_ context.Context, _ *Responder, _ turn) Response {
	return info("Je peux vous aider à reprendre votre formation, suivre votre progression, découvrir les défis et quêtes, ou trouver une leçon sur un sujet précis.",
		confidenceHelp,
		[]string{"Où en suis-je ?", "Quels sont les défis en cours ?", "Cherche des leçons sur le RSI"})
}
