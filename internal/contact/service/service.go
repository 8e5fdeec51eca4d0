// Package service implements contact reconciliation: resolving an incoming
// (email, phoneNumber) observation against previously seen contacts,
// merging clusters that turn out to be the same person, and attaching new
// information as secondary records.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weld/internal/audit"
	"weld/internal/contact/locker"
	"weld/internal/contact/metrics"
	"weld/internal/contact/models"
	"weld/internal/contact/store"
	pkgerrors "weld/pkg/domain-errors"
	wstrings "weld/pkg/platform/strings"
)

// Service is the reconciler. Every Resolve is a sequence of dependent
// read/modify/write steps against the store, serialized per identity by the
// locker so concurrent observations of the same person cannot fork the
// cluster.
type Service struct {
	store   store.Store
	locks   locker.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
	tracer  trace.Tracer
	now     func() time.Time
}

// New constructs the reconciler. metrics and auditPub may be nil.
func New(st store.Store, locks locker.Locker, logger *slog.Logger, m *metrics.Metrics, auditPub *audit.Publisher) *Service {
	return &Service{
		store:   st,
		locks:   locks,
		logger:  logger,
		metrics: m,
		audit:   auditPub,
		tracer:  otel.Tracer("weld/internal/contact/service"),
		now:     time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve finds every contact related to the observation, merges competing
// primaries down to the oldest one, attaches the observation as a new
// secondary when it carries unseen information, and returns the resulting
// cluster view. At least one of email, phone must be non-empty; violating
// that fails before any store access.
func (s *Service) Resolve(ctx context.Context, email, phone *string) (*models.ClusterView, error) {
	email = normalize(email)
	phone = normalize(phone)
	if email == nil && phone == nil {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "email or phoneNumber is required")
	}

	ctx, span := s.tracer.Start(ctx, "contact.Resolve")
	defer span.End()

	start := s.now()
	view, outcome, err := s.resolveLocked(ctx, email, phone)
	s.metrics.ObserveResolveLatency(s.now().Sub(start))
	if err != nil {
		s.metrics.IncrementResolveOutcome("error")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncrementResolveOutcome(outcome)
	span.SetAttributes(
		attribute.String("resolve.outcome", outcome),
		attribute.Int64("resolve.primary_id", view.PrimaryID),
		attribute.Int("resolve.secondaries", len(view.SecondaryIDs)),
	)
	return view, nil
}

func (s *Service) resolveLocked(ctx context.Context, email, phone *string) (*models.ClusterView, string, error) {
	lockStart := s.now()
	release, err := s.locks.Acquire(ctx, lockKeys(email, phone))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "identity lock not acquired", err)
	}
	defer release()
	s.metrics.ObserveLockWait(s.now().Sub(lockStart))

	// Step 1: direct match lookup.
	matched, err := s.store.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "contact lookup failed", err)
	}

	// No matches: the only path that creates a primary.
	if len(matched) == 0 {
		created, err := s.insert(ctx, models.NewContact{
			Email:          email,
			PhoneNumber:    phone,
			LinkPrecedence: models.LinkPrecedencePrimary,
		})
		if err != nil {
			return nil, "", err
		}
		return buildView(created, nil), "created", nil
	}

	// Step 2: root discovery.
	roots := rootIDs(matched)

	// Step 3: cluster expansion.
	cluster, err := s.store.FindByIDsOrLinkedIDs(ctx, roots)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "cluster expansion failed", err)
	}

	// Step 4: merge resolution.
	primary, merged, err := s.mergePrimaries(ctx, cluster)
	if err != nil {
		return nil, "", err
	}
	if merged {
		cluster, err = s.store.FindByIDsOrLinkedIDs(ctx, []int64{primary.ID})
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "cluster refetch failed", err)
		}
	}

	// Step 5: new-information attachment. The new secondary stores both
	// fields as supplied, including a value the cluster already knows.
	if attached, err := s.attachNewInfo(ctx, cluster, primary.ID, email, phone); err != nil {
		return nil, "", err
	} else if attached {
		cluster, err = s.store.FindByIDsOrLinkedIDs(ctx, []int64{primary.ID})
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "cluster refetch failed", err)
		}
	}

	// Step 6: view construction.
	finalPrimary, secondaries, err := splitCluster(cluster)
	if err != nil {
		s.logger.ErrorContext(ctx, "cluster has no primary",
			"roots", roots,
			"members", len(cluster),
		)
		return nil, "", err
	}
	outcome := "matched"
	if merged {
		outcome = "merged"
	}
	return buildView(finalPrimary, secondaries), outcome, nil
}

// mergePrimaries demotes every primary in the cluster except the most
// senior one. Seniority is createdAt ascending with id ascending as the
// deterministic tie-break. Each demoted primary's former secondaries are
// re-pointed at the surviving primary so linkage never chains.
func (s *Service) mergePrimaries(ctx context.Context, cluster []models.Contact) (models.Contact, bool, error) {
	var primaries []models.Contact
	for _, c := range cluster {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}
	if len(primaries) == 0 {
		return models.Contact{}, false, pkgerrors.New(pkgerrors.CodeInternal, "contact cluster has no primary")
	}
	sort.Slice(primaries, func(i, j int) bool {
		if primaries[i].CreatedAt.Equal(primaries[j].CreatedAt) {
			return primaries[i].ID < primaries[j].ID
		}
		return primaries[i].CreatedAt.Before(primaries[j].CreatedAt)
	})
	truePrimary := primaries[0]
	if len(primaries) == 1 {
		return truePrimary, false, nil
	}

	now := s.now()
	for _, demoted := range primaries[1:] {
		if err := s.store.UpdateLinkage(ctx, demoted.ID, models.LinkPrecedenceSecondary, &truePrimary.ID, now); err != nil {
			return models.Contact{}, false, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "primary demotion failed", err)
		}
		if err := s.store.BulkRelink(ctx, demoted.ID, truePrimary.ID); err != nil {
			return models.Contact{}, false, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "secondary relink failed", err)
		}
		s.metrics.IncrementPrimariesMerged()
		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionPrimaryDemoted,
			ContactID: demoted.ID,
			PrimaryID: truePrimary.ID,
		})
		s.logger.InfoContext(ctx, "merged contact clusters",
			"demoted_id", demoted.ID,
			"primary_id", truePrimary.ID,
		)
	}
	return truePrimary, true, nil
}

// attachNewInfo creates a secondary carrying the observation when it holds
// an email or phone the cluster has not seen.
func (s *Service) attachNewInfo(ctx context.Context, cluster []models.Contact, primaryID int64, email, phone *string) (bool, error) {
	knownEmails := make(map[string]struct{}, len(cluster))
	knownPhones := make(map[string]struct{}, len(cluster))
	for _, c := range cluster {
		if c.Email != nil {
			knownEmails[*c.Email] = struct{}{}
		}
		if c.PhoneNumber != nil {
			knownPhones[*c.PhoneNumber] = struct{}{}
		}
	}
	newEmail := email != nil && !contains(knownEmails, *email)
	newPhone := phone != nil && !contains(knownPhones, *phone)
	if !newEmail && !newPhone {
		return false, nil
	}
	_, err := s.insert(ctx, models.NewContact{
		Email:          email,
		PhoneNumber:    phone,
		LinkedID:       &primaryID,
		LinkPrecedence: models.LinkPrecedenceSecondary,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) insert(ctx context.Context, contact models.NewContact) (models.Contact, error) {
	created, err := s.store.Insert(ctx, contact)
	if err != nil {
		return models.Contact{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "contact insert failed", err)
	}
	s.metrics.IncrementContactsCreated(string(created.LinkPrecedence))
	s.emitAudit(ctx, audit.Event{
		Action:     audit.ActionContactCreated,
		ContactID:  created.ID,
		PrimaryID:  created.RootID(),
		Precedence: string(created.LinkPrecedence),
	})
	s.logger.InfoContext(ctx, "created contact",
		"contact_id", created.ID,
		"precedence", string(created.LinkPrecedence),
	)
	return created, nil
}

// emitAudit records an event without letting audit failures fail the
// resolve.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}

// Cluster returns the view of the cluster containing the given contact id
// without mutating anything. It backs the admin inspection endpoint.
func (s *Service) Cluster(ctx context.Context, id int64) (*models.ClusterView, error) {
	members, err := s.store.FindByIDsOrLinkedIDs(ctx, []int64{id})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "contact lookup failed", err)
	}
	var target *models.Contact
	for i := range members {
		if members[i].ID == id {
			target = &members[i]
			break
		}
	}
	if target == nil {
		return nil, store.ErrNotFound
	}
	root := target.RootID()
	if root != id {
		members, err = s.store.FindByIDsOrLinkedIDs(ctx, []int64{root})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "cluster expansion failed", err)
		}
	}
	primary, secondaries, err := splitCluster(members)
	if err != nil {
		return nil, err
	}
	return buildView(primary, secondaries), nil
}

func splitCluster(cluster []models.Contact) (models.Contact, []models.Contact, error) {
	var primary *models.Contact
	var secondaries []models.Contact
	for i := range cluster {
		if cluster[i].IsPrimary() {
			primary = &cluster[i]
		} else {
			secondaries = append(secondaries, cluster[i])
		}
	}
	if primary == nil {
		return models.Contact{}, nil, pkgerrors.New(pkgerrors.CodeInternal, "contact cluster has no primary")
	}
	return *primary, secondaries, nil
}

// buildView assembles the externally visible cluster shape: email and phone
// lists lead with the primary's values, then each secondary's in store
// order, first-seen deduplicated.
func buildView(primary models.Contact, secondaries []models.Contact) *models.ClusterView {
	view := &models.ClusterView{
		PrimaryID:    primary.ID,
		Emails:       []string{},
		PhoneNumbers: []string{},
		SecondaryIDs: []int64{},
	}
	view.Emails = wstrings.AppendUnique(view.Emails, deref(primary.Email))
	view.PhoneNumbers = wstrings.AppendUnique(view.PhoneNumbers, deref(primary.PhoneNumber))
	for _, c := range secondaries {
		view.Emails = wstrings.AppendUnique(view.Emails, deref(c.Email))
		view.PhoneNumbers = wstrings.AppendUnique(view.PhoneNumbers, deref(c.PhoneNumber))
		view.SecondaryIDs = append(view.SecondaryIDs, c.ID)
	}
	return view
}

func rootIDs(contacts []models.Contact) []int64 {
	seen := make(map[int64]struct{}, len(contacts))
	var roots []int64
	for _, c := range contacts {
		root := c.RootID()
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			roots = append(roots, root)
		}
	}
	return roots
}

// lockKeys derives the identity lock keys for an observation. Prefixes keep
// an email and a phone with the same text from colliding.
func lockKeys(email, phone *string) []string {
	var keys []string
	if email != nil {
		keys = append(keys, "email:"+*email)
	}
	if phone != nil {
		keys = append(keys, "phone:"+*phone)
	}
	return keys
}

// normalize trims an optional field and treats whitespace-only values as
// absent.
func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func contains(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}
