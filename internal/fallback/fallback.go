// Package fallback produces a local reply when no remote provider answers.
package fallback

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ai_chat/internal/models"
)

const (
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 3 * time.Second
)

// category is an ordered keyword rule; the first match wins.
type category struct {
	keywords []string
	reply    string
}

var categories = []category{
	{
		keywords: []string{"hello", "hi"},
		reply:    "Hello! It's great to meet you. I'm here to help with any questions or tasks you might have. What would you like to explore today?",
	},
	{
		keywords: []string{"help"},
		reply:    "I'm here to help! I can assist you with a wide variety of tasks including answering questions, creative writing, problem-solving, coding, analysis, and much more. What specific area would you like assistance with?",
	},
	{
		keywords: []string{"code", "programming"},
		reply:    "I'd be happy to help with coding! I can assist with debugging, explaining concepts, writing code snippets, reviewing code, or discussing best practices. What programming challenge are you working on?",
	},
	{
		keywords: []string{"write", "story"},
		reply:    "Creative writing is one of my favorite areas to help with! I can assist with stories, essays, poems, scripts, or any other form of writing. What kind of writing project are you working on?",
	},
	{
		keywords: []string{"explain", "what is"},
		reply:    "I'd be happy to explain that for you! Let me break it down in a clear and understandable way, providing context and examples where helpful.",
	},
	{
		keywords: []string{"how to"},
		reply:    "Great question! I'll walk you through the process step by step, making sure to cover all the important details and potential considerations.",
	},
}

// GenericReplies is the pool used when no keyword matches.
var GenericReplies = []string{
	"I understand your question. Let me provide you with a comprehensive answer that addresses your specific needs.",
	"That's an interesting point you've raised. Here's my perspective on this topic, along with some additional insights.",
	"I'd be happy to help you with that. Based on what you've shared, here are some suggestions and considerations.",
	"Thank you for your question. This is a complex topic, so let me break it down into manageable parts for you.",
	"I appreciate you bringing this up. Let me share some thoughts and provide you with actionable information.",
	"That's a great question that many people wonder about. Here's what I think would be most helpful for your situation.",
	"I can definitely assist you with this. Let me provide you with a detailed response that covers the key aspects.",
	"This is an area I'm quite familiar with. Here's my analysis and some recommendations for moving forward.",
}

// Rand is the random source used for the delay and the generic pick
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration)

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// lockedRand makes a *rand.Rand safe for concurrent dispatches
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

// NewSeededRand returns a concurrency-safe source. seed 0 seeds from the clock.
func NewSeededRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

// Config configures a Generator
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     Rand
	Sleep    Sleeper
}

// Generator is the local reply generator
type Generator struct {
	minDelay time.Duration
	maxDelay time.Duration
	rnd      Rand
	sleep    Sleeper
}

// NewGenerator creates a Generator. Zero values fall back to the defaults.
func NewGenerator(cfg Config) *Generator {
	g := &Generator{
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
		rnd:      cfg.Rand,
		sleep:    cfg.Sleep,
	}
	if g.minDelay <= 0 && g.maxDelay <= 0 {
		g.minDelay, g.maxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if g.maxDelay < g.minDelay {
		g.maxDelay = g.minDelay
	}
	if g.rnd == nil {
		g.rnd = NewSeededRand(0)
	}
	if g.sleep == nil {
		g.sleep = ContextSleep
	}
	return g
}

// Generate waits a simulated latency in [min, max) and returns a reply for
// message. history does not influence the reply. A done ctx skips the wait.
func (g *Generator) Generate(ctx context.Context, message string, history []models.ChatTurn) string {
	if ctx.Err() == nil {
		g.sleep(ctx, g.delay())
	}
	return g.Reply(message)
}

// Reply classifies message without any delay
func (g *Generator) Reply(message string) string {
	if reply, ok := Classify(message); ok {
		return reply
	}
	return GenericReplies[g.rnd.Intn(len(GenericReplies))]
}

func (g *Generator) delay() time.Duration {
	span := g.maxDelay - g.minDelay
	return g.minDelay + time.Duration(g.rnd.Float64()*float64(span))
}

// Classify returns the canned reply of the first matching keyword category
func Classify(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.reply, true
			}
		}
	}
	return "", false
}
