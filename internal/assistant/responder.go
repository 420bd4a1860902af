package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// FallbackThreshold is the confidence below which a reply is delegated to
// the generative provider.
const FallbackThreshold = 0.5

// Heuristic confidence per handler. They are not probabilities: they only
// gate the fallback.
const (
	confidenceGreeting          = 0.95
	confidenceGoodbye           = 0.95
	confidenceThanks            = 0.95
	confidenceContinueLearning  = 0.9
	confidenceProgress          = 0.9
	confidencePropFirm          = 0.85
	confidenceChallenges        = 0.9
	confidenceQuests            = 0.9
	confidenceRewards           = 0.85
	confidenceSearchContent     = 0.85
	confidenceSearchEmpty       = 0.4
	confidenceTrainingContent   = 0.85
	confidenceLiveSessions      = 0.8
	confidenceCertificate       = 0.8
	confidenceDiscord           = 0.9
	confidenceRegistration      = 0.85
	confidenceAccount           = 0.8
	confidenceRefund            = 0.8
	confidencePricing           = 0.85
	confidenceOnboarding        = 0.85
	confidenceFounder           = 0.85
	confidenceResults           = 0.8
	confidenceSignals           = 0.8
	confidenceMoneyManagement   = 0.8
	confidenceTechnicalAnalysis = 0.8
	confidencePsychology        = 0.8
	confidenceStrategies        = 0.8
	confidenceTechnicalSupport  = 0.8
	confidenceContact           = 0.85
	confidenceHelp              = 0.85
	confidenceDefault           = 0.35
)

var intentConfidence = map[Intent]float64{
	IntentGreeting:          confidenceGreeting,
	IntentGoodbye:           confidenceGoodbye,
	IntentThanks:            confidenceThanks,
	IntentContinueLearning:  confidenceContinueLearning,
	IntentProgress:          confidenceProgress,
	IntentPropFirm:          confidencePropFirm,
	IntentChallenges:        confidenceChallenges,
	IntentQuests:            confidenceQuests,
	IntentRewards:           confidenceRewards,
	IntentSearchContent:     confidenceSearchContent,
	IntentTrainingContent:   confidenceTrainingContent,
	IntentLiveSessions:      confidenceLiveSessions,
	IntentCertificate:       confidenceCertificate,
	IntentDiscord:           confidenceDiscord,
	IntentRegistration:      confidenceRegistration,
	IntentAccount:           confidenceAccount,
	IntentRefund:            confidenceRefund,
	IntentPricing:           confidencePricing,
	IntentOnboarding:        confidenceOnboarding,
	IntentFounder:           confidenceFounder,
	IntentResults:           confidenceResults,
	IntentSignals:           confidenceSignals,
	IntentMoneyManagement:   confidenceMoneyManagement,
	IntentTechnicalAnalysis: confidenceTechnicalAnalysis,
	IntentPsychology:        confidencePsychology,
	IntentStrategies:        confidenceStrategies,
	IntentTechnicalSupport:  confidenceTechnicalSupport,
	IntentContact:           confidenceContact,
	IntentHelp:              confidenceHelp,
	IntentDefault:           confidenceDefault,
}

// HandlerConfidence returns the confidence constant of the handler for intent.
func HandlerConfidence(intent Intent) float64 {
	if c, ok := intentConfidence[intent]; ok {
		return c
	}
	return confidenceDefault
}

// turn is the input of a handler.
type turn struct {
	text string
	sc   *SessionContext
}

type handler func(ctx context.Context, r *Responder, t turn) Response

var handlers = map[Intent]handler{
	IntentGreeting:          handleGreeting,
	IntentGoodbye:           handleGoodbye,
	IntentThanks:            handleThanks,
	IntentContinueLearning:  handleContinueLearning,
	IntentProgress:          handleProgress,
	IntentPropFirm:          handlePropFirm,
	IntentChallenges:        handleChallenges,
	IntentQuests:            handleQuests,
	IntentRewards:           handleRewards,
	IntentSearchContent:     handleSearchContent,
	IntentTrainingContent:   handleTrainingContent,
	IntentLiveSessions:      handleLiveSessions,
	IntentCertificate:       handleCertificate,
	IntentDiscord:           handleDiscord,
	IntentRegistration:      handleRegistration,
	IntentAccount:           handleAccount,
	IntentRefund:            handleRefund,
	IntentPricing:           handlePricing,
	IntentOnboarding:        handleOnboarding,
	IntentFounder:           handleFounder,
	IntentResults:           handleResults,
	IntentSignals:           handleSignals,
	IntentMoneyManagement:   handleMoneyManagement,
	IntentTechnicalAnalysis: handleTechnicalAnalysis,
	IntentPsychology:        handlePsychology,
	IntentStrategies:        handleStrategies,
	IntentTechnicalSupport:  handleTechnicalSupport,
	IntentContact:           handleContact,
	IntentHelp:              handleHelp,
	IntentDefault:           handleDefault,
}

func init() {
	for _, intent := range allIntents {
		if _, ok := handlers[intent]; !ok {
			panic(fmt.Sprintf("assistant: no handler for intent %q", intent))
		}
		if _, ok := intentConfidence[intent]; !ok {
			panic(fmt.Sprintf("assistant: no confidence for intent %q", intent))
		}
	}
}

// Responder renders replies for classified intents.
type Responder struct {
	content ContentSearcher
	logger  *slog.Logger
}

// NewResponder creates a responder. content may be nil, in which case
// content searches report no results.
func NewResponder(content ContentSearcher, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{content: content, logger: logger}
}

// Respond dispatches intent to its handler and returns a valid response:
// non-empty message, non-nil slices and confidence within [0,1].
func (r *Responder) Respond(ctx context.Context, intent Intent, text string, sc *SessionContext) Response {
	if sc == nil {
		sc = &SessionContext{}
	}
	h, ok := handlers[intent]
	if !ok {
		intent = IntentDefault
		h = handleDefault
	}

	resp := h(ctx, r, turn{text: text, sc: sc})
	if strings.TrimSpace(resp.Message) == "" {
		r.logger.Warn("handler produced an empty message, using default reply", "intent", intent)
		intent = IntentDefault
		resp = handleDefault(ctx, r, turn{text: text, sc: sc})
	}
	resp.Intent = intent
	return sanitize(resp)
}

func sanitize(resp Response) Response {
	if resp.Actions == nil {
		resp.Actions = []Action{}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	switch {
	case math.IsNaN(resp.Confidence), resp.Confidence < 0:
		resp.Confidence = 0
	case resp.Confidence > 1:
		resp.Confidence = 1
	}
	return resp
}
