package application

import (
	"context"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

// CommentSubject is what the comment generator is told about the target.
type CommentSubject struct {
	Platform domain.Platform
	URL      string
	Title    string
	Text     string
}

// Registry resolves the actions configured for an account and the comment
// texts a comment action needs.
type Registry struct {
	actions   domain.IActionRepository
	generator domain.CommentGenerator
	timeout   time.Duration
}

// NewRegistry accepts a nil generator; AI comment actions then use their
// manual list.
func NewRegistry(actions domain.IActionRepository, generator domain.CommentGenerator, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Registry{actions: actions, generator: generator, timeout: timeout}
}

// ActionsFor returns the active actions of the account in insertion order.
func (r *Registry) ActionsFor(ctx context.Context, accountID string) ([]domain.ActionSpec, error) {
	return r.actions.ListActions(ctx, accountID, true)
}

func (r *Registry) Get(ctx context.Context, actionID string) (domain.ActionSpec, error) {
	return r.actions.GetAction(ctx, actionID)
}

// ResolveComments returns up to count comments for spec. The AI strategy
// runs under its own timeout; any failure there falls back to the manual
// list. nil means the order goes out without custom comments.
func (r *Registry) ResolveComments(ctx context.Context, spec domain.ActionSpec, subject CommentSubject, count int) []string {
	params, ok := spec.Params.(domain.CommentParams)
	if !ok || params.Strategy == domain.CommentNone {
		return nil
	}

	log := logrus.WithFields(logrus.Fields{
		"action_id": spec.ID,
		"strategy":  params.Strategy,
		"count":     count,
	})

	if params.Strategy == domain.CommentAI && r.generator != nil {
		genCtx, cancel := context.WithTimeout(ctx, r.timeout)
		comments, err := r.generator.GenerateComments(genCtx, domain.CommentRequest{
			Platform:     subject.Platform,
			PostURL:      subject.URL,
			PostTitle:    subject.Title,
			PostText:     subject.Text,
			Count:        count,
			Instructions: params.Instructions,
			UseHashtags:  params.UseHashtags,
			UseEmojis:    params.UseEmojis,
		})
		cancel()
		if err == nil && len(comments) > 0 {
			log.WithField("generated", len(comments)).Debug("[REGISTRY] AI comments ready")
			return limit(comments, count)
		}
		log.WithError(err).Warn("[REGISTRY] AI comment generation failed, falling back to manual comments")
	}

	manual := params.ManualComments()
	if len(manual) == 0 {
		return nil
	}
	return limit(manual, count)
}

func limit(comments []string, count int) []string {
	if count > 0 && len(comments) > count {
		return comments[:count]
	}
	return comments
}

// AddAction validates and stores a new action for the account.
func (r *Registry) AddAction(ctx context.Context, spec *domain.ActionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	return r.actions.CreateAction(ctx, spec)
}

func (r *Registry) List(ctx context.Context, accountID string) ([]domain.ActionSpec, error) {
	return r.actions.ListActions(ctx, accountID, false)
}

func (r *Registry) SetActive(ctx context.Context, actionID string, active bool) error {
	return r.actions.SetActive(ctx, actionID, active)
}

func (r *Registry) Delete(ctx context.Context, actionID string) error {
	return r.actions.DeleteAction(ctx, actionID)
}
