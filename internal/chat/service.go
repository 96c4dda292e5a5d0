// Package chat answers user questions with an AI provider and falls back to
// a keyword-matched FAQ.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"actms/internal/cache"
)

const systemPrompt = `You are an AI assistant for ACTMS (Anti-Corruption Tender Management System),
a government tender management platform with AI-powered fraud detection.

Key capabilities:
- Tender management and bid submission
- AI-powered anomaly detection using Isolation Forest
- Comprehensive audit logging
- Secure file handling
- Real-time alerts for suspicious activities

Provide helpful, accurate information about the system. Be professional and concise.
If you don't know something specific about the system, acknowledge it and suggest
contacting administrators.`

const (
	SourceFAQ     = "faq"
	SourceNoMatch = "no_match"

	aiConfidence = 0.9
	noMatchReply = "I couldn't find an answer to your question in our knowledge base. " +
		"Please try rephrasing your question or contact support for assistance."
)

type Response struct {
	Message    string  `json:"message"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Stats is the live system snapshot sent along with AI requests.
type Stats struct {
	TotalTenders    int `json:"total_tenders"`
	ActiveBids      int `json:"active_bids"`
	SuspiciousFlags int `json:"suspicious_flags"`
	RecentAlerts    int `json:"recent_alerts"`
}

// StatsStore is the part of db.Storage the live context is read from.
type StatsStore interface {
	CountTenders(ctx context.Context) (int, error)
	CountActiveBids(ctx context.Context) (int, error)
	CountSuspiciousBids(ctx context.Context) (int, error)
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
}

// Recorder observes where replies came from.
type Recorder interface {
	ObserveChatReply(source string)
}

type Options struct {
	RequestsPerMinute int
	Timeout           time.Duration
	CacheTTL          time.Duration
}

type Service struct {
	provider Provider
	faq      *FAQ
	store    StatsStore
	cache    cache.Cache
	limiter  *rate.Limiter
	opts     Options
	log      *zap.Logger
	recorder Recorder
}

// NewService wires a chat service. provider and store may be nil.
func NewService(provider Provider, faq *FAQ, store StatsStore, c cache.Cache, opts Options, log *zap.Logger) *Service {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{
		provider: provider,
		faq:      faq,
		store:    store,
		cache:    c,
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
		log:      log.Named("chat"),
	}
}

func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// ProviderName is the configured AI backend, or "none".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

// AddFAQ teaches the fallback a new answer.
func (s *Service) AddFAQ(question, answer string, confidence float64) {
	s.faq.Add(question, answer, confidence)
	s.log.Info("faq entry added", zap.String("question", normalize(question)))
}

// Reply answers message. It never fails: provider problems fall back to the FAQ.
func (s *Service) Reply(ctx context.Context, message string) Response {
	resp := s.reply(ctx, message)
	if s.recorder != nil {
		s.recorder.ObserveChatReply(resp.Source)
	}
	return resp
}

func (s *Service) reply(ctx context.Context, message string) Response {
	if s.provider != nil {
		text, err := s.ask(ctx, message)
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			return Response{Message: strings.TrimSpace(text), Source: s.provider.Name(), Confidence: aiConfidence}
		case err != nil:
			s.log.Warn("ai provider failed, falling back to faq", zap.String("provider", s.provider.Name()), zap.Error(err))
		default:
			s.log.Warn("ai provider returned an empty reply", zap.String("provider", s.provider.Name()))
		}
	}
	return s.fromFAQ(message)
}

func (s *Service) fromFAQ(message string) Response {
	if s.faq != nil {
		if e, score, ok := s.faq.Match(message); ok {
			return Response{Message: e.Answer, Source: SourceFAQ, Confidence: e.Confidence * score}
		}
	}
	return Response{Message: noMatchReply, Source: SourceNoMatch}
}

var errRateLimited = errors.New("chat rate limit exceeded")

// ask caches replies per system prompt, so a change in the live counters
// it carries is never answered from a stale entry.
func (s *Service) ask(ctx context.Context, message string) (string, error) {
	system := s.systemPrompt(ctx)
	key := cacheKey(s.provider.Name(), system, message)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		return string(raw), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("chat cache read failed", zap.Error(err))
	}

	if !s.limiter.Allow() {
		return "", errRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	text, err := s.provider.Complete(ctx, system, message)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" && s.opts.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, []byte(text), s.opts.CacheTTL); err != nil {
			s.log.Warn("chat cache write failed", zap.Error(err))
		}
	}
	return text, nil
}

func (s *Service) systemPrompt(ctx context.Context) string {
	st, err := s.Stats(ctx)
	if err != nil {
		s.log.Warn("chat context unavailable", zap.Error(err))
		return systemPrompt
	}
	return fmt.Sprintf("%s\n\nCurrent system status:\n- Total tenders: %d\n- Active bids: %d\n- Suspicious flags: %d\n- Alerts in the last 24h: %d",
		systemPrompt, st.TotalTenders, st.ActiveBids, st.SuspiciousFlags, st.RecentAlerts)
}

// Stats reads the live counters included in AI prompts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if s.store == nil {
		return st, errors.New("no stats store")
	}
	var err error
	if st.TotalTenders, err = s.store.CountTenders(ctx); err != nil {
		return st, err
	}
	if st.ActiveBids, err = s.store.CountActiveBids(ctx); err != nil {
		return st, err
	}
	if st.SuspiciousFlags, err = s.store.CountSuspiciousBids(ctx); err != nil {
		return st, err
	}
	if st.RecentAlerts, err = s.store.CountAlertsSince(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		return st, err
	}
	return st, nil
}

func cacheKey(provider, system, message string) string {
	sum := sha256.Sum256([]byte(system + "\x00" + normalize(message)))
	return "chat:" + provider + ":" + hex.EncodeToString(sum[:])
}
