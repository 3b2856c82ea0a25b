// Package dispatch produces one assistant reply per call by trying the
// configured providers in priority order and falling back to the local
// generator when none of them answers.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ai_chat/internal/auth"
	"ai_chat/internal/logging"
	"ai_chat/internal/models"
	"ai_chat/internal/providers"
)

var errEmptyReply = errors.New("provider returned an empty reply")

// Invoker sends one completion request to a provider
type Invoker interface {
	Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error)
}

// CredentialSource returns the current key for a provider, "" when absent
type CredentialSource interface {
	Credential(ctx context.Context, id models.ProviderID) (string, error)
}

// Replier produces the local reply used when no provider answers
type Replier interface {
	Generate(ctx context.Context, message string, history []models.ChatTurn) string
}

// Recorder receives one record per dispatch
type Recorder interface {
	Record(ctx context.Context, record *models.DispatchRecord) error
}

// Target binds a provider descriptor to the invoker that calls it
type Target struct {
	Provider models.Provider
	Invoker  Invoker
}

// PriorityRank orders targets by their provider's priority
func (t Target) PriorityRank() int {
	return t.Provider.Priority
}

// TargetsFromRegistry returns the registry's adapters as dispatch targets
func TargetsFromRegistry(reg *providers.Registry) []Target {
	entries := reg.Entries()
	targets := make([]Target, len(entries))
	for i, e := range entries {
		targets[i] = Target{Provider: e.Provider, Invoker: e.Adapter}
	}
	return targets
}

// Status describes whether a provider would be tried right now
type Status struct {
	ID        models.ProviderID `json:"id"`
	Name      string            `json:"name"`
	Model     string            `json:"model"`
	Priority  int               `json:"priority"`
	Available bool              `json:"available"`
}

// Dispatcher tries providers one at a time; it holds no per-call state.
// targets are kept sorted by priority.
type Dispatcher struct {
	targets  []Target
	creds    CredentialSource
	fallback Replier
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a Dispatcher. targets are kept in the given order; priority
// ties are broken by that order.
func New(targets []Target, creds CredentialSource, fallback Replier) *Dispatcher {
	copied := make([]Target, len(targets))
	copy(copied, targets)
	models.SortByPriority(copied)

	return &Dispatcher{
		targets:  copied,
		creds:    creds,
		fallback: fallback,
		logger:   logging.NewLogger("dispatch"),
		now:      time.Now,
	}
}

// WithRecorder sets where dispatch records are sent
func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.recorder = r
	return d
}

type candidate struct {
	target     Target
	credential string
}

// GenerateResponse returns exactly one non-empty reply. Provider failures are
// logged and never returned; history is passed unchanged to every attempt.
func (d *Dispatcher) GenerateResponse(ctx context.Context, message string, history []models.ChatTurn) string {
	start := d.now()
	record := &models.DispatchRecord{
		ID:           uuid.New(),
		MessageChars: len([]rune(message)),
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		record.UserID = uuid.NullUUID{UUID: userID, Valid: true}
	}

	reply, answeredBy := d.tryProviders(ctx, message, history, record)
	if answeredBy == "" {
		reply = d.fallback.Generate(ctx, message, history)
		answeredBy = models.FallbackProvider
		d.logger.Info("using fallback reply", "attempts", record.Attempts)
	}

	record.Provider = answeredBy
	record.LatencyMS = d.now().Sub(start).Milliseconds()
	record.CreatedAt = d.now().UTC()
	d.record(ctx, record)

	return reply
}

func (d *Dispatcher) tryProviders(ctx context.Context, message string, history []models.ChatTurn, record *models.DispatchRecord) (string, string) {
	for _, c := range d.available(ctx) {
		p := c.target.Provider
		record.Attempts++

		text, err := c.target.Invoker.Invoke(ctx, history, message, c.credential)
		if err == nil && text == "" {
			err = errEmptyReply
		}
		if err != nil {
			d.logger.Warn("provider failed", "provider", p.Name, "error", err)
			if record.Failures == nil {
				record.Failures = models.JSONB{}
			}
			record.Failures[string(p.ID)] = logging.Redact(err.Error())
			continue
		}

		d.logger.Debug("provider answered", "provider", p.Name, "attempt", record.Attempts)
		return text, string(p.ID)
	}
	return "", ""
}

// available returns the targets holding a non-empty credential, ordered by
// priority. Credentials are read fresh on every call.
func (d *Dispatcher) available(ctx context.Context) []candidate {
	var out []candidate
	for _, t := range d.targets {
		key := d.credential(ctx, t.Provider)
		if key == "" {
			continue
		}
		out = append(out, candidate{target: t, credential: key})
	}
	return out
}

// credential treats a lookup failure as an absent key
func (d *Dispatcher) credential(ctx context.Context, p models.Provider) string {
	key, err := d.creds.Credential(ctx, p.ID)
	if err != nil {
		d.logger.Warn("credential lookup failed", "provider", p.Name, "error", err)
		return ""
	}
	return key
}

// ProviderStatus reports every provider in priority order and whether it
// currently has a credential.
func (d *Dispatcher) ProviderStatus(ctx context.Context) []Status {
	out := make([]Status, 0, len(d.targets))
	for _, t := range d.targets {
		p := t.Provider
		out = append(out, Status{
			ID:        p.ID,
			Name:      p.Name,
			Model:     p.Model,
			Priority:  p.Priority,
			Available: d.credential(ctx, p) != "",
		})
	}
	return out
}

func (d *Dispatcher) record(ctx context.Context, record *models.DispatchRecord) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(context.WithoutCancel(ctx), record); err != nil {
		d.logger.Warn("failed to record dispatch", "dispatch_id", record.ID, "error", err)
	}
}
