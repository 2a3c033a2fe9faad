package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/validations"
	"github.com/sirupsen/logrus"
)

// AccountService contiene la lógica de gestión de cuentas monitoreadas,
// sus feeds, etiquetas y acciones configuradas.
type AccountService struct {
	accounts     domain.IAccountRepository
	feeds        domain.IFeedRepository
	registry     *Registry
	baseline     *BaselineTracker
	fetcher      domain.FeedFetcher
	provisioner  domain.FeedProvisioner
	fetchTimeout time.Duration
}

// NewAccountService builds the service. provisioner may be nil, in which case
// every account must come with its own feed URL.
func NewAccountService(
	accounts domain.IAccountRepository,
	feeds domain.IFeedRepository,
	registry *Registry,
	baseline *BaselineTracker,
	fetcher domain.FeedFetcher,
	provisioner domain.FeedProvisioner,
	fetchTimeout time.Duration,
) *AccountService {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &AccountService{
		accounts:     accounts,
		feeds:        feeds,
		registry:     registry,
		baseline:     baseline,
		fetcher:      fetcher,
		provisioner:  provisioner,
		fetchTimeout: fetchTimeout,
	}
}

// Create registra la cuenta junto con su feed en estado pending. Sin feed_url
// se genera uno en el proveedor; si falla, el feed queda en estado error.
func (s *AccountService) Create(ctx context.Context, req domain.CreateAccountRequest) (domain.AccountDetail, error) {
	if err := validations.ValidateCreateAccount(ctx, req, s.provisioner != nil); err != nil {
		return domain.AccountDetail{}, err
	}

	account := domain.Account{
		Platform:    req.Platform,
		Handle:      req.Handle,
		DisplayName: strings.TrimSpace(req.DisplayName),
		ProfileURL:  strings.TrimSpace(req.ProfileURL),
		Enabled:     true,
	}
	for _, id := range req.TagIDs {
		account.Tags = append(account.Tags, domain.Tag{ID: id})
	}
	feed := domain.Feed{
		FeedRef: strings.TrimSpace(req.FeedRef),
		Status:  domain.FeedStatusPending,
		Enabled: true,
	}

	if err := s.accounts.CreateAccount(ctx, &account, &feed); err != nil {
		return domain.AccountDetail{}, err
	}

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"platform":   account.Platform,
		"handle":     account.Handle,
	}).Info("[ACCOUNTS] Account registered")

	if feed.FeedRef == "" {
		feed = s.provision(ctx, account, feed)
	}
	return domain.AccountDetail{Account: account, Feed: &feed, Actions: []domain.ActionSpec{}}, nil
}

// provision creates a hosted feed for the account and stores it on feed. A
// failure is kept on the feed, not returned.
func (s *AccountService) provision(ctx context.Context, account domain.Account, feed domain.Feed) domain.Feed {
	log := logrus.WithFields(logrus.Fields{"account_id": account.ID, "feed_id": feed.ID})

	created, err := s.provisioner.CreateFeed(ctx, account)
	if err != nil {
		log.WithError(err).Warn("[ACCOUNTS] Feed provisioning failed")
		now := time.Now()
		if markErr := s.feeds.MarkChecked(ctx, feed.ID, domain.FeedStatusError, err.Error(), now); markErr != nil {
			log.WithError(markErr).Warn("[ACCOUNTS] Could not store feed error")
		}
		feed.Status = domain.FeedStatusError
		feed.LastError = err.Error()
		feed.LastCheckedAt = &now
		return feed
	}

	if err := s.feeds.SetFeedSource(ctx, feed.ID, created.FeedRef, created.ExternalID); err != nil {
		log.WithError(err).Error("[ACCOUNTS] Could not store provisioned feed")
		s.dropHostedFeed(ctx, created.ExternalID)
		feed.Status = domain.FeedStatusError
		feed.LastError = err.Error()
		return feed
	}
	feed.FeedRef = created.FeedRef
	feed.ExternalID = created.ExternalID
	feed.LastError = ""

	log.WithField("external_id", created.ExternalID).Info("[ACCOUNTS] Feed provisioned")
	return feed
}

func (s *AccountService) dropHostedFeed(ctx context.Context, externalID string) {
	if s.provisioner == nil || externalID == "" {
		return
	}
	if err := s.provisioner.DeleteFeed(ctx, externalID); err != nil {
		logrus.WithError(err).WithField("external_id", externalID).Warn("[ACCOUNTS] Could not delete hosted feed")
	}
}

// ProvisionFeed genera de nuevo el feed alojado de la cuenta, descarta el
// anterior y olvida la línea base.
func (s *AccountService) ProvisionFeed(ctx context.Context, accountID string) (domain.Feed, error) {
	if s.provisioner == nil {
		return domain.Feed{}, domain.ErrProvisioningDisabled
	}
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Feed{}, err
	}
	feed, err := s.feeds.GetFeedByAccount(ctx, accountID)
	if err != nil {
		return domain.Feed{}, err
	}

	created, err := s.provisioner.CreateFeed(ctx, account)
	if err != nil {
		if markErr := s.feeds.MarkChecked(ctx, feed.ID, domain.FeedStatusError, err.Error(), time.Now()); markErr != nil {
			logrus.WithError(markErr).Warn("[ACCOUNTS] Could not store feed error")
		}
		return domain.Feed{}, err
	}
	if err := s.feeds.SetFeedSource(ctx, feed.ID, created.FeedRef, created.ExternalID); err != nil {
		s.dropHostedFeed(ctx, created.ExternalID)
		return domain.Feed{}, err
	}
	if feed.ExternalID != "" && feed.ExternalID != created.ExternalID {
		s.dropHostedFeed(ctx, feed.ExternalID)
	}
	if err := s.baseline.Reset(ctx, feed.ID); err != nil {
		return domain.Feed{}, err
	}

	logrus.WithFields(logrus.Fields{
		"account_id":  accountID,
		"external_id": created.ExternalID,
	}).Info("[ACCOUNTS] Feed provisioned again")
	return s.feeds.GetFeed(ctx, feed.ID)
}

// SetFeedEnabled pausa o reanuda el monitoreo de un feed sin tocar la cuenta
// ni sus acciones.
func (s *AccountService) SetFeedEnabled(ctx context.Context, feedID string, enabled bool) (domain.Feed, error) {
	if _, err := s.feeds.GetFeed(ctx, feedID); err != nil {
		return domain.Feed{}, err
	}
	if err := s.feeds.SetEnabled(ctx, feedID, enabled); err != nil {
		return domain.Feed{}, err
	}
	logrus.WithFields(logrus.Fields{"feed_id": feedID, "enabled": enabled}).Info("[ACCOUNTS] Feed toggled")
	return s.feeds.GetFeed(ctx, feedID)
}

// Get devuelve la cuenta con su feed y todas sus acciones.
func (s *AccountService) Get(ctx context.Context, id string) (domain.AccountDetail, error) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return domain.AccountDetail{}, err
	}
	detail := domain.AccountDetail{Account: account}

	feed, err := s.feeds.GetFeedByAccount(ctx, id)
	switch {
	case err == nil:
		detail.Feed = &feed
	case !errors.Is(err, domain.ErrFeedNotFound):
		return domain.AccountDetail{}, err
	}

	actions, err := s.registry.List(ctx, id)
	if err != nil {
		return domain.AccountDetail{}, err
	}
	if actions == nil {
		actions = []domain.ActionSpec{}
	}
	detail.Actions = actions
	return detail, nil
}

func (s *AccountService) List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	return s.accounts.ListAccounts(ctx, filter)
}

// Update aplica solo los campos presentes en la petición.
func (s *AccountService) Update(ctx context.Context, id string, req domain.UpdateAccountRequest) (domain.Account, error) {
	if err := validations.ValidateUpdateAccount(ctx, req); err != nil {
		return domain.Account{}, err
	}
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if req.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.ProfileURL != nil {
		account.ProfileURL = strings.TrimSpace(*req.ProfileURL)
	}
	if req.Enabled != nil {
		account.Enabled = *req.Enabled
	}
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}

	if req.FeedRef != nil {
		feed, err := s.feeds.GetFeedByAccount(ctx, id)
		if err != nil {
			return domain.Account{}, err
		}
		if ref := strings.TrimSpace(*req.FeedRef); ref != feed.FeedRef {
			if err := s.feeds.UpdateFeedRef(ctx, feed.ID, ref); err != nil {
				return domain.Account{}, err
			}
			// A different feed means a different post history.
			if err := s.baseline.Reset(ctx, feed.ID); err != nil {
				return domain.Account{}, err
			}
		}
	}

	if req.TagIDs != nil {
		if err := s.accounts.SetAccountTags(ctx, id, req.TagIDs); err != nil {
			return domain.Account{}, err
		}
	}
	return s.accounts.GetAccount(ctx, id)
}

// Delete elimina la cuenta de forma lógica; el feed queda deshabilitado y las
// acciones inactivas. El historial de ejecuciones se conserva.
// El feed alojado en el proveedor se elimina; si falla solo se registra.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	var externalID string
	if feed, err := s.feeds.GetFeedByAccount(ctx, id); err == nil {
		externalID = feed.ExternalID
	}
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		return err
	}
	logrus.WithField("account_id", id).Info("[ACCOUNTS] Account deleted")

	s.dropHostedFeed(ctx, externalID)
	return nil
}

func (s *AccountService) SetTags(ctx context.Context, accountID string, tagIDs []string) error {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return s.accounts.SetAccountTags(ctx, accountID, tagIDs)
}

func (s *AccountService) CreateTag(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if err := validations.ValidateCreateTag(ctx, tag); err != nil {
		return domain.Tag{}, err
	}
	if tag.Color == "" {
		tag.Color = "#6B7280"
	}
	if err := s.accounts.CreateTag(ctx, &tag); err != nil {
		return domain.Tag{}, err
	}
	return tag, nil
}

func (s *AccountService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.accounts.ListTags(ctx)
}

func (s *AccountService) DeleteTag(ctx context.Context, id string) error {
	return s.accounts.DeleteTag(ctx, id)
}

// AddAction decodes, validates and stores a new action for the account.
func (s *AccountService) AddAction(ctx context.Context, accountID string, req domain.CreateActionRequest) (domain.ActionSpec, error) {
	if err := validations.ValidateCreateAction(ctx, req); err != nil {
		return domain.ActionSpec{}, err
	}
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return domain.ActionSpec{}, err
	}
	spec, err := req.ToSpec(accountID)
	if err != nil {
		return domain.ActionSpec{}, err
	}
	if err := s.registry.AddAction(ctx, &spec); err != nil {
		return domain.ActionSpec{}, err
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"action_id":  spec.ID,
		"type":       spec.Type,
		"service_id": spec.ServiceID,
	}).Info("[ACCOUNTS] Action added")
	return spec, nil
}

func (s *AccountService) ListActions(ctx context.Context, accountID string) ([]domain.ActionSpec, error) {
	return s.registry.List(ctx, accountID)
}

func (s *AccountService) SetActionActive(ctx context.Context, actionID string, active bool) error {
	return s.registry.SetActive(ctx, actionID, active)
}

func (s *AccountService) DeleteAction(ctx context.Context, actionID string) error {
	return s.registry.Delete(ctx, actionID)
}

// ActivateFeed fetches the account's feed once and records its baseline,
// moving the feed from pending to active without dispatching anything.
func (s *AccountService) ActivateFeed(ctx context.Context, accountID string) (domain.Baseline, error) {
	feed, err := s.feeds.GetFeedByAccount(ctx, accountID)
	if err != nil {
		return domain.Baseline{}, err
	}
	if feed.FeedRef == "" {
		return domain.Baseline{}, &domain.ConfigError{Field: "feed_url", Reason: "feed has no url yet"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	posts, err := s.fetcher.FetchFeed(fetchCtx, feed.FeedRef)
	cancel()
	if err != nil {
		if markErr := s.feeds.MarkChecked(ctx, feed.ID, domain.FeedStatusError, err.Error(), time.Now()); markErr != nil {
			logrus.WithError(markErr).Warn("[ACCOUNTS] Could not store feed error")
		}
		return domain.Baseline{}, err
	}

	baseline, err := s.baseline.Establish(ctx, feed.ID, posts)
	if err != nil {
		return domain.Baseline{}, err
	}
	if err := s.feeds.MarkChecked(ctx, feed.ID, domain.FeedStatusActive, "", time.Now()); err != nil {
		return domain.Baseline{}, err
	}
	return baseline, nil
}

// ResetFeed forgets the baseline; the next cycle records a new one.
func (s *AccountService) ResetFeed(ctx context.Context, accountID string) error {
	feed, err := s.feeds.GetFeedByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return s.baseline.Reset(ctx, feed.ID)
}
