package service

import (
	"context"
	"time"

	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/pkg/logger"
)

// advisoryScorer asks an optional primary scorer and falls back to the rule scorer whenever the
// primary is slow, failing or returns advice that cannot be used.
type advisoryScorer struct {
	primary  orb.Scorer
	fallback orb.Scorer
	timeout  time.Duration
	log      *logger.Logger
}

// NewAdvisoryScorer wraps primary with a timeout and a rule fallback. A nil primary scores by rule only.
func NewAdvisoryScorer(primary orb.Scorer, fallback orb.Scorer, timeout time.Duration, log *logger.Logger) orb.Scorer {
	return &advisoryScorer{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		log:      log,
	}
}

func (s *advisoryScorer) Score(ctx context.Context, snap orb.Snapshot) (orb.Advice, error) {
	if s.primary == nil {
		return s.fallback.Score(ctx, snap)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	advice, err := s.primary.Score(scoreCtx, snap)
	if err != nil {
		s.log.WarnContext(ctx, "Advisory unavailable, using rule levels",
			logger.StringField("symbol", snap.Symbol), logger.ErrorField(err))
		return s.fallback.Score(ctx, snap)
	}
	if err := advice.Validate(snap.Side, snap.Price); err != nil {
		s.log.WarnContext(ctx, "Advisory returned unusable advice, using rule levels",
			logger.StringField("symbol", snap.Symbol), logger.ErrorField(err))
		return s.fallback.Score(ctx, snap)
	}
	return advice, nil
}
