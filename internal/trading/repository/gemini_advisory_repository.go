package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const SourceGemini = "gemini"

// geminiAdvisoryRepository scores breakout candidates with the Google Gemini API.
type geminiAdvisoryRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	metrics        *metrics.Recorder
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAdvisoryRepository creates an orb.Scorer backed by Gemini.
func NewGeminiAdvisoryRepository(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder, genAiClient *genai.Client) orb.Scorer {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	return &geminiAdvisoryRepository{
		cfg:            cfg,
		log:            log,
		metrics:        rec,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		genAiClient:    genAiClient,
	}
}

func (r *geminiAdvisoryRepository) Score(ctx context.Context, snap orb.Snapshot) (orb.Advice, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return orb.Advice{}, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	prompt := BuildBreakoutAdvicePrompt(snap)
	r.log.DebugContext(ctx, "Request Gemini advice", logger.StringField("symbol", snap.Symbol))

	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Gemini.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		r.metrics.RecordProviderError(SourceGemini, "transport")
		return orb.Advice{}, fmt.Errorf("failed to generate content: %w", err)
	}

	advice, err := ParseAdvice(resp.Text())
	if err != nil {
		r.metrics.RecordProviderError(SourceGemini, "parse")
		return orb.Advice{}, err
	}
	advice.Source = SourceGemini
	return advice, nil
}

// ParseAdvice extracts the advice object from a bare or fenced JSON reply.
func ParseAdvice(raw string) (orb.Advice, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return orb.Advice{}, fmt.Errorf("%w: no JSON object in reply", orb.ErrInvalidAdvice)
	}

	var advice orb.Advice
	if err := json.Unmarshal([]byte(raw[start:end+1]), &advice); err != nil {
		return orb.Advice{}, fmt.Errorf("%w: %v", orb.ErrInvalidAdvice, err)
	}
	advice.Action = strings.ToLower(strings.TrimSpace(advice.Action))
	return advice, nil
}
