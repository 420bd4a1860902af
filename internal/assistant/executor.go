package assistant

import (
	"context"
	"fmt"
)

// Confirmation strings returned by ExecuteAction.
const (
	msgActionUnknown      = "Action non reconnue."
	msgActionFailed       = "Une erreur est survenue lors de l'exécution de l'action. Veuillez réessayer."
	msgJoinNeedsLogin     = "Connectez-vous pour rejoindre un défi."
	msgJoinMissingID      = "Impossible de rejoindre ce défi : identifiant manquant."
	msgJoinFailed         = "Impossible de rejoindre le défi pour le moment. Veuillez réessayer plus tard."
	msgClaimFailed        = "Impossible de réclamer la récompense pour le moment. Veuillez réessayer plus tard."
	msgClaimDelegated     = "Votre récompense va être créditée sur votre compte."
	msgViewProgress       = "Ouverture de votre tableau de progression."
	msgContinueNextLesson = "Redirection vers votre prochaine leçon..."
)

// ExecuteAction carries out action and returns a confirmation for the member.
// Failures are logged and reported in the returned string.
func (s *Session) ExecuteAction(ctx context.Context, action Action) (result string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action panicked", "type", action.Type, "panic", r)
			result = msgActionFailed
		}
	}()

	switch action.Type {
	case ActionContinueLesson:
		if title := action.StringData("lessonTitle"); title != "" {
			return fmt.Sprintf("Redirection vers la leçon « %s »...", title)
		}
		return msgContinueNextLesson

	case ActionJoinChallenge:
		return s.joinChallenge(ctx, action)

	case ActionClaimReward:
		return s.claimReward(ctx, action)

	case ActionViewProgress:
		return msgViewProgress

	case ActionSearchContent:
		if q := action.StringData("query"); q != "" {
			return fmt.Sprintf("Recherche de « %s » dans le catalogue.", q)
		}
		return "Ouverture du catalogue de la formation."

	default:
		s.logger.Warn("unknown action type", "type", action.Type)
		return msgActionUnknown
	}
}

func (s *Session) joinChallenge(ctx context.Context, action Action) string {
	userID := s.UserID()
	if userID == "" {
		return msgJoinNeedsLogin
	}
	challengeID := action.StringData("challengeId")
	if challengeID == "" {
		return msgJoinMissingID
	}
	if s.deps.Challenges == nil {
		s.logger.Warn("no challenge service configured", "user_id", userID)
		return msgJoinFailed
	}

	if err := s.deps.Challenges.JoinChallenge(ctx, challengeID, userID); err != nil {
		s.logger.Error("failed to join challenge",
			"user_id", userID,
			"challenge_id", challengeID,
			"error", err,
		)
		return msgJoinFailed
	}
	s.InitializeContext(ctx, userID)

	if title := action.StringData("challengeTitle"); title != "" {
		return fmt.Sprintf("Vous avez rejoint le défi « %s » ! Bonne chance.", title)
	}
	return "Vous avez rejoint le défi ! Bonne chance."
}

func (s *Session) claimReward(ctx context.Context, action Action) string {
	userID := s.UserID()
	challengeID := action.StringData("challengeId")
	if userID == "" || challengeID == "" || s.deps.Rewards == nil {
		return msgClaimDelegated
	}

	if err := s.deps.Rewards.ClaimChallengeReward(ctx, challengeID, userID); err != nil {
		s.logger.Error("failed to claim reward",
			"user_id", userID,
			"challenge_id", challengeID,
			"error", err,
		)
		return msgClaimFailed
	}
	s.InitializeContext(ctx, userID)

	if reward := action.StringData("reward"); reward != "" {
		return fmt.Sprintf("Récompense réclamée : %s !", reward)
	}
	return "Récompense réclamée !"
}
