package lifecycle

import (
	"context"
	"testing"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/program"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockIdentityRepository mocks identity.Repository
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Record, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Record), args.Error(1)
}

func (m *MockIdentityRepository) UpsertIntent(ctx context.Context, email string, profile identity.Profile) (*identity.Record, error) {
	args := m.Called(ctx, email, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Record), args.Error(1)
}

func (m *MockIdentityRepository) RecordExternalIDs(ctx context.Context, email string, ids identity.ExternalIDs, status identity.LifecycleStatus) error {
	args := m.Called(ctx, email, ids, status)
	return args.Error(0)
}

func (m *MockIdentityRepository) MarkLost(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockIdentityRepository) Save(ctx context.Context, record *identity.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockCoachingPlatform mocks integration.CoachingPlatform
type MockCoachingPlatform struct {
	mock.Mock
}

func (m *MockCoachingPlatform) CreateOrFindClient(ctx context.Context, client integration.NewClient) (*integration.ClientResult, error) {
	args := m.Called(ctx, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ClientResult), args.Error(1)
}

func (m *MockCoachingPlatform) AssignProgram(ctx context.Context, clientID, programID string) error {
	args := m.Called(ctx, clientID, programID)
	return args.Error(0)
}

func (m *MockCoachingPlatform) DeactivateClient(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

// MockCRM mocks integration.CRM
type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) UpsertContact(ctx context.Context, contact integration.Contact, tags []string) (string, error) {
	args := m.Called(ctx, contact, tags)
	return args.String(0), args.Error(1)
}

func (m *MockCRM) AddTags(ctx context.Context, contactID string, tags []string) error {
	args := m.Called(ctx, contactID, tags)
	return args.Error(0)
}

func (m *MockCRM) RemoveTags(ctx context.Context, contactID string, tags []string) error {
	args := m.Called(ctx, contactID, tags)
	return args.Error(0)
}

func (m *MockCRM) UpsertPipelineStage(ctx context.Context, contactID, stageName string, status integration.OpportunityStatus) error {
	args := m.Called(ctx, contactID, stageName, status)
	return args.Error(0)
}

// MockAttribution mocks integration.Attribution
type MockAttribution struct {
	mock.Mock
}

func (m *MockAttribution) SendEvent(ctx context.Context, eventName string, user integration.AttributionUser, customData map[string]any, dedupeID string) error {
	args := m.Called(ctx, eventName, user, customData, dedupeID)
	return args.Error(0)
}

func testCatalog() *program.Catalog {
	return program.NewCatalog(program.Config{
		DefaultSlug: "foundation",
		PlatformIDs: map[string]string{
			"foundation":    "101",
			"gold-coaching": "202",
		},
		CRMTags: map[string]string{
			"foundation":    "Program: Foundation",
			"gold-coaching": "Program: Gold",
		},
		TierStages:  map[string]string{"gold": "Online Coaching"},
		MemberStage: "Member",
	})
}

type engineMocks struct {
	store       *MockIdentityRepository
	coaching    *MockCoachingPlatform
	crm         *MockCRM
	attribution *MockAttribution
}

func newTestEngine() (*Engine, *engineMocks) {
	m := &engineMocks{
		store:       new(MockIdentityRepository),
		coaching:    new(MockCoachingPlatform),
		crm:         new(MockCRM),
		attribution: new(MockAttribution),
	}
	engine := NewEngine(EngineConfig{
		Store:       m.store,
		Coaching:    m.coaching,
		CRM:         m.crm,
		Attribution: m.attribution,
		Catalog:     testCatalog(),
		Logger:      zap.NewNop(),
	})
	return engine, m
}

func recordWith(email string, mutate func(r *identity.Record)) *identity.Record {
	r, _ := identity.NewRecord(email)
	if mutate != nil {
		mutate(r)
	}
	return r
}

func TestEngine_Handle_IntentCaptured(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("alice@example.com", func(r *identity.Record) {
		r.FirstName = "Alice"
		r.SelectedProgram = "gold-coaching"
	})
	m.store.On("FindByEmail", ctx, "alice@example.com").Return(nil, shared.ErrNotFound)
	m.store.On("UpsertIntent", ctx, "alice@example.com", mock.Anything).Return(record, nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         IntentCaptured,
		SubjectEmail: "Alice@Example.com",
		FirstName:    "Alice",
		Program:      "gold-coaching",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.store.AssertExpectations(t)
	m.coaching.AssertNotCalled(t, "CreateOrFindClient", mock.Anything, mock.Anything)
	m.crm.AssertNotCalled(t, "UpsertContact", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_RejectsMissingEmail(t *testing.T) {
	engine, _ := newTestEngine()

	outcome, err := engine.Handle(context.Background(), &Event{Kind: SubscriptionStarted})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Status)
}

func TestEngine_Handle_SubscriptionStarted_FullSync(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("bob@example.com", func(r *identity.Record) {
		r.FirstName = "Bob"
		r.LastName = "Jones"
		r.SelectedProgram = "gold-coaching"
	})
	m.store.On("FindByEmail", ctx, "bob@example.com").Return(nil, shared.ErrNotFound)
	m.store.On("UpsertIntent", ctx, "bob@example.com", mock.Anything).Return(record, nil)
	m.crm.On("UpsertContact", ctx, mock.Anything, []string{"Trial Community", "Program: Gold"}).Return("crm-1", nil)
	m.crm.On("AddTags", ctx, "crm-1", []string{"Trial Community"}).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-1", "On Trial", integration.OpportunityOpen).Return(nil)
	m.coaching.On("CreateOrFindClient", ctx, integration.NewClient{
		Email:     "bob@example.com",
		FirstName: "Bob",
		LastName:  "Jones",
	}).Return(&integration.ClientResult{ClientID: "tz-9", Created: true}, nil)
	m.coaching.On("AssignProgram", ctx, "tz-9", "202").Return(nil)
	m.attribution.On("SendEvent", ctx, "StartTrial", mock.Anything, mock.Anything, "evt_1").Return(nil)
	m.store.On("RecordExternalIDs", ctx, "bob@example.com",
		identity.ExternalIDs{CoachingClientID: "tz-9", CRMContactID: "crm-1"},
		identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:           SubscriptionStarted,
		SubjectEmail:   "bob@example.com",
		Program:        "gold-coaching",
		IdempotencyKey: "evt_1",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.store.AssertExpectations(t)
	m.coaching.AssertExpectations(t)
	m.crm.AssertExpectations(t)
	m.attribution.AssertExpectations(t)
}

func TestEngine_Handle_SubscriptionStarted_AppliesDefaultProgram(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("carol@example.com", nil)
	m.store.On("FindByEmail", ctx, "carol@example.com").Return(nil, shared.ErrNotFound)
	m.store.On("UpsertIntent", ctx, "carol@example.com", mock.Anything).Return(record, nil)
	m.store.On("Save", ctx, mock.MatchedBy(func(r *identity.Record) bool {
		return r.SelectedProgram == "foundation"
	})).Return(nil)
	m.crm.On("UpsertContact", ctx, mock.MatchedBy(func(c integration.Contact) bool {
		return c.Program == "foundation"
	}), mock.Anything).Return("crm-2", nil)
	m.crm.On("AddTags", ctx, "crm-2", mock.Anything).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-2", "On Trial", integration.OpportunityOpen).Return(nil)
	m.coaching.On("CreateOrFindClient", ctx, mock.Anything).Return(&integration.ClientResult{ClientID: "tz-2", Created: true}, nil)
	m.coaching.On("AssignProgram", ctx, "tz-2", "101").Return(nil)
	m.attribution.On("SendEvent", ctx, "StartTrial", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.store.On("RecordExternalIDs", ctx, "carol@example.com", mock.Anything, identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "carol@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.store.AssertExpectations(t)
	m.coaching.AssertExpectations(t)
}

func TestEngine_Handle_SubscriptionStarted_PartialFailure(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("dan@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
	})
	m.store.On("FindByEmail", ctx, "dan@example.com").Return(nil, shared.ErrNotFound)
	m.store.On("UpsertIntent", ctx, "dan@example.com", mock.Anything).Return(record, nil)
	m.crm.On("UpsertContact", ctx, mock.Anything, mock.Anything).Return("", shared.ErrAdapterUnavailable)
	m.coaching.On("CreateOrFindClient", ctx, mock.Anything).Return(&integration.ClientResult{ClientID: "tz-3", Created: true}, nil)
	m.coaching.On("AssignProgram", ctx, "tz-3", "101").Return(nil)
	m.attribution.On("SendEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	// Coaching ID is persisted even though the CRM side failed
	m.store.On("RecordExternalIDs", ctx, "dan@example.com",
		identity.ExternalIDs{CoachingClientID: "tz-3"},
		identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "dan@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomePartial, outcome.Status)
	assert.Contains(t, outcome.FailedActions, "crm.upsert_contact")
	m.store.AssertExpectations(t)
	m.crm.AssertNotCalled(t, "AddTags", mock.Anything, mock.Anything, mock.Anything)
	m.crm.AssertNotCalled(t, "UpsertPipelineStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_SubscriptionStarted_DuplicateSkipsCreation(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	prior := recordWith("eve@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
		r.CoachingClientID = "tz-7"
		r.CRMContactID = "crm-7"
		r.Status = identity.StatusTrialing
	})
	m.store.On("FindByEmail", ctx, "eve@example.com").Return(prior, nil)
	m.store.On("UpsertIntent", ctx, "eve@example.com", mock.Anything).Return(prior, nil)
	m.crm.On("AddTags", ctx, "crm-7", []string{"Trial Community"}).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-7", "On Trial", integration.OpportunityOpen).Return(nil)
	m.attribution.On("SendEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.store.On("RecordExternalIDs", ctx, "eve@example.com", identity.ExternalIDs{}, identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "eve@example.com",
		Program:      "foundation",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.coaching.AssertNotCalled(t, "CreateOrFindClient", mock.Anything, mock.Anything)
	m.coaching.AssertNotCalled(t, "AssignProgram", mock.Anything, mock.Anything, mock.Anything)
	m.crm.AssertNotCalled(t, "UpsertContact", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_SubscriptionStarted_DuplicateReassignsChangedProgram(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	prior := recordWith("eve@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
		r.CoachingClientID = "tz-7"
		r.CRMContactID = "crm-7"
	})
	merged := recordWith("eve@example.com", func(r *identity.Record) {
		r.SelectedProgram = "gold-coaching"
		r.CoachingClientID = "tz-7"
		r.CRMContactID = "crm-7"
	})
	m.store.On("FindByEmail", ctx, "eve@example.com").Return(prior, nil)
	m.store.On("UpsertIntent", ctx, "eve@example.com", mock.Anything).Return(merged, nil)
	m.crm.On("AddTags", ctx, "crm-7", mock.Anything).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-7", "On Trial", integration.OpportunityOpen).Return(nil)
	m.coaching.On("AssignProgram", ctx, "tz-7", "202").Return(nil)
	m.attribution.On("SendEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.store.On("RecordExternalIDs", ctx, "eve@example.com", identity.ExternalIDs{}, identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "eve@example.com",
		Program:      "gold-coaching",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.coaching.AssertNotCalled(t, "CreateOrFindClient", mock.Anything, mock.Anything)
	m.coaching.AssertExpectations(t)
}

func TestEngine_Handle_SubscriptionConverted(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("frank@example.com", func(r *identity.Record) {
		r.SelectedProgram = "gold-coaching"
		r.CoachingClientID = "tz-5"
		r.CRMContactID = "crm-5"
		r.Status = identity.StatusTrialing
	})
	m.store.On("FindByEmail", ctx, "frank@example.com").Return(record, nil)
	m.store.On("UpsertIntent", ctx, "frank@example.com", mock.Anything).Return(record, nil)
	m.crm.On("RemoveTags", ctx, "crm-5", []string{"Trial Community"}).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-5", "Online Coaching", integration.OpportunityWon).Return(nil)
	m.attribution.On("SendEvent", ctx, "Purchase", mock.Anything, mock.Anything, "evt_9").Return(nil)
	m.store.On("RecordExternalIDs", ctx, "frank@example.com", identity.ExternalIDs{}, identity.StatusActive).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:           SubscriptionConverted,
		SubjectEmail:   "frank@example.com",
		PlanName:       "Gold Membership",
		IdempotencyKey: "evt_9",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.crm.AssertExpectations(t)
	m.crm.AssertNotCalled(t, "UpsertContact", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_SubscriptionConverted_SelfHealsMissingContact(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("gina@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
		r.Status = identity.StatusTrialing
	})
	m.store.On("FindByEmail", ctx, "gina@example.com").Return(record, nil)
	m.store.On("UpsertIntent", ctx, "gina@example.com", mock.Anything).Return(record, nil)
	m.crm.On("UpsertContact", ctx, mock.Anything, mock.Anything).Return("crm-new", nil)
	m.crm.On("RemoveTags", ctx, "crm-new", []string{"Trial Community"}).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-new", "Member", integration.OpportunityWon).Return(nil)
	m.attribution.On("SendEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.store.On("RecordExternalIDs", ctx, "gina@example.com",
		identity.ExternalIDs{CRMContactID: "crm-new"},
		identity.StatusActive).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionConverted,
		SubjectEmail: "gina@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.crm.AssertExpectations(t)
	m.store.AssertExpectations(t)
}

func TestEngine_Handle_Cancelled_DeactivatesAndMarksLost(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("hank@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
		r.CoachingClientID = "tz-8"
		r.CRMContactID = "crm-8"
		r.Status = identity.StatusActive
	})
	m.store.On("FindByEmail", ctx, "hank@example.com").Return(record, nil)
	m.store.On("UpsertIntent", ctx, "hank@example.com", mock.Anything).Return(record, nil)
	m.coaching.On("DeactivateClient", ctx, "tz-8").Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-8", "Lost", integration.OpportunityLost).Return(nil)
	m.crm.On("RemoveTags", ctx, "crm-8", []string{"Trial Community"}).Return(nil)
	m.store.On("MarkLost", ctx, "hank@example.com").Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionCancelled,
		SubjectEmail: "hank@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.coaching.AssertExpectations(t)
	m.crm.AssertExpectations(t)
	m.store.AssertExpectations(t)
}

func TestEngine_Handle_PaymentFailed_KeepsTrialTag(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("ivy@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
		r.CoachingClientID = "tz-4"
		r.CRMContactID = "crm-4"
		r.Status = identity.StatusTrialing
	})
	m.store.On("FindByEmail", ctx, "ivy@example.com").Return(record, nil)
	m.store.On("UpsertIntent", ctx, "ivy@example.com", mock.Anything).Return(record, nil)
	m.coaching.On("DeactivateClient", ctx, "tz-4").Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-4", "Lost", integration.OpportunityLost).Return(nil)
	m.store.On("MarkLost", ctx, "ivy@example.com").Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         PaymentFailed,
		SubjectEmail: "ivy@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.crm.AssertNotCalled(t, "RemoveTags", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_Churn_MissingIDsSkipsDownstream(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("jo@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
	})
	m.store.On("FindByEmail", ctx, "jo@example.com").Return(record, nil)
	m.store.On("UpsertIntent", ctx, "jo@example.com", mock.Anything).Return(record, nil)
	m.store.On("MarkLost", ctx, "jo@example.com").Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionCancelled,
		SubjectEmail: "jo@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
	m.coaching.AssertNotCalled(t, "DeactivateClient", mock.Anything, mock.Anything)
	m.crm.AssertNotCalled(t, "UpsertPipelineStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Handle_AttributionFailureDoesNotDegradeOutcome(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	record := recordWith("kim@example.com", func(r *identity.Record) {
		r.SelectedProgram = "foundation"
	})
	m.store.On("FindByEmail", ctx, "kim@example.com").Return(nil, shared.ErrNotFound)
	m.store.On("UpsertIntent", ctx, "kim@example.com", mock.Anything).Return(record, nil)
	m.crm.On("UpsertContact", ctx, mock.Anything, mock.Anything).Return("crm-9", nil)
	m.crm.On("AddTags", ctx, "crm-9", mock.Anything).Return(nil)
	m.crm.On("UpsertPipelineStage", ctx, "crm-9", "On Trial", integration.OpportunityOpen).Return(nil)
	m.coaching.On("CreateOrFindClient", ctx, mock.Anything).Return(&integration.ClientResult{ClientID: "tz-6", Created: true}, nil)
	m.coaching.On("AssignProgram", ctx, "tz-6", "101").Return(nil)
	m.attribution.On("SendEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(shared.ErrAdapterUnavailable)
	m.store.On("RecordExternalIDs", ctx, "kim@example.com", mock.Anything, identity.StatusTrialing).Return(nil)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "kim@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Status)
}

func TestEngine_Handle_StoreFailurePropagates(t *testing.T) {
	engine, m := newTestEngine()
	ctx := context.Background()

	m.store.On("FindByEmail", ctx, "lee@example.com").Return(nil, assert.AnError)

	outcome, err := engine.Handle(ctx, &Event{
		Kind:         SubscriptionStarted,
		SubjectEmail: "lee@example.com",
	})

	assert.Error(t, err)
	assert.Nil(t, outcome)
}
