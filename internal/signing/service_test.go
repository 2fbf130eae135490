package signing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahub/clahub/internal/approval"
	"github.com/clahub/clahub/internal/clerrors"
	"github.com/clahub/clahub/internal/company"
	"github.com/clahub/clahub/internal/docusign"
	"github.com/clahub/clahub/internal/email"
	"github.com/clahub/clahub/internal/envelope"
	"github.com/clahub/clahub/internal/notifier"
	"github.com/clahub/clahub/internal/project"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/signing"
	"github.com/clahub/clahub/internal/user"
)

// --- Fixtures ---

var (
	projectID   = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	userIDAlice = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	userIDBob   = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000003")
	companyID   = uuid.MustParse("cccccccc-0000-0000-0000-000000000004")
	sigID       = uuid.MustParse("dddddddd-0000-0000-0000-000000000005")
)

func testProject() *project.Project {
	return &project.Project{
		ID:          projectID,
		Name:        "sample-project",
		ICLAEnabled: true,
		CCLAEnabled: true,
		IndividualDocument: &project.Document{
			TemplateID:   "tpl-icla",
			MajorVersion: 2,
			MinorVersion: 0,
		},
		CorporateDocument: &project.Document{
			TemplateID:   "tpl-ccla",
			MajorVersion: 1,
			MinorVersion: 0,
		},
	}
}

func testCompany() *company.Company {
	return &company.Company{ID: companyID, Name: "Acme"}
}

func alice() *user.User {
	return &user.User{
		ID:       userIDAlice,
		Username: "alice",
		Name:     "Alice Adams",
		Emails:   []string{"alice@acme.com"},
	}
}

func bob() *user.User {
	return &user.User{
		ID:       userIDBob,
		Username: "bob",
		Name:     "Bob Brown",
		Emails:   []string{"bob@elsewhere.net"},
	}
}

func activeCCLA() *signature.Signature {
	return &signature.Signature{
		ID:                   sigID,
		ProjectID:            projectID,
		Type:                 signature.TypeCorporate,
		ReferenceType:        signature.ReferenceCompany,
		ReferenceID:          companyID,
		DocumentMajorVersion: 1,
		Signed:               true,
		Approved:             true,
		ACL:                  []string{"alice"},
		ApprovalLists: signature.ApprovalLists{
			Domains: []string{"acme.com"},
		},
	}
}

// --- In-Memory Signature Store ---

// memSigRepo is a map-backed Repository; enough fidelity for exercising the
// lifecycle without a database.
type memSigRepo struct {
	mu   sync.Mutex
	sigs map[uuid.UUID]*signature.Signature

	updateErr error
}

func newMemSigRepo(seed ...*signature.Signature) *memSigRepo {
	r := &memSigRepo{sigs: make(map[uuid.UUID]*signature.Signature)}
	for _, s := range seed {
		cp := *s
		r.sigs[s.ID] = &cp
	}
	return r
}

func (r *memSigRepo) Create(_ context.Context, sig *signature.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sig
	r.sigs[sig.ID] = &cp
	return nil
}

func (r *memSigRepo) GetByID(_ context.Context, id uuid.UUID) (*signature.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sigs[id]
	if !ok {
		return nil, signature.ErrSignatureNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSigRepo) Update(_ context.Context, sig *signature.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.sigs[sig.ID]; !ok {
		return signature.ErrSignatureNotFound
	}
	cp := *sig
	r.sigs[sig.ID] = &cp
	return nil
}

func (r *memSigRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sigs[id]; !ok {
		return signature.ErrSignatureNotFound
	}
	delete(r.sigs, id)
	return nil
}

func (r *memSigRepo) ListByProject(_ context.Context, pid uuid.UUID, filter signature.ListFilter) ([]signature.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []signature.Signature
	for _, s := range r.sigs {
		if s.ProjectID == pid && matchFilter(s, filter) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSigRepo) ListByReference(_ context.Context, refID uuid.UUID, refType signature.ReferenceType, filter signature.ListFilter) ([]signature.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []signature.Signature
	for _, s := range r.sigs {
		if s.ReferenceID == refID && s.ReferenceType == refType && matchFilter(s, filter) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func matchFilter(s *signature.Signature, f signature.ListFilter) bool {
	if f.Type != nil && s.Type != *f.Type {
		return false
	}
	if f.ReferenceType != nil && s.ReferenceType != *f.ReferenceType {
		return false
	}
	if f.Signed != nil && s.Signed != *f.Signed {
		return false
	}
	if f.Approved != nil && s.Approved != *f.Approved {
		return false
	}
	return true
}

func (r *memSigRepo) GetActiveCCLA(_ context.Context, cid, pid uuid.UUID) (*signature.Signature, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*signature.Signature
	for _, s := range r.sigs {
		if s.ReferenceID == cid && s.ProjectID == pid && s.IsCorporate() && s.Signed && s.Approved {
			found = append(found, s)
		}
	}
	if len(found) == 0 {
		return nil, 0, signature.ErrSignatureNotFound
	}
	cp := *found[0]
	return &cp, len(found), nil
}

func (r *memSigRepo) GetLatestUnsignedCorporate(_ context.Context, cid, pid uuid.UUID) (*signature.Signature, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*signature.Signature
	for _, s := range r.sigs {
		if s.ReferenceID == cid && s.ProjectID == pid && s.IsCorporate() && !s.Signed {
			found = append(found, s)
		}
	}
	if len(found) == 0 {
		return nil, 0, signature.ErrSignatureNotFound
	}
	cp := *found[0]
	return &cp, len(found), nil
}

func (r *memSigRepo) GetEmployeeSignature(_ context.Context, pid, uid, cid uuid.UUID) (*signature.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sigs {
		if s.ProjectID == pid && s.ReferenceID == uid && s.ReferenceType == signature.ReferenceUser &&
			s.Type == signature.TypeIndividual &&
			s.UserCCLACompanyID != nil && *s.UserCCLACompanyID == cid {
			cp := *s
			return &cp, nil
		}
	}
	return nil, signature.ErrSignatureNotFound
}

func (r *memSigRepo) GetIndividualSignature(_ context.Context, pid, uid uuid.UUID) (*signature.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sigs {
		if s.ProjectID == pid && s.ReferenceID == uid && s.ReferenceType == signature.ReferenceUser &&
			s.Type == signature.TypeIndividual && s.UserCCLACompanyID == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, signature.ErrSignatureNotFound
}

// --- Other Mocks ---

type mockUserRepo struct {
	users    map[uuid.UUID]*user.User
	updateFn func(ctx context.Context, u *user.User) error
}

func newMockUserRepo(seed ...*user.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[uuid.UUID]*user.User)}
	for _, u := range seed {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, u *user.User) error { return nil }
func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, address string) (*user.User, error) {
	for _, u := range m.users {
		if u.HasEmail(address) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByGitHubUsername(ctx context.Context, username string) (*user.User, error) {
	for _, u := range m.users {
		if u.GitHubUsername != nil && *u.GitHubUsername == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) Update(ctx context.Context, u *user.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, u)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}
func (m *mockUserRepo) FindByKeyPrefix(ctx context.Context, prefix string) ([]user.User, error) {
	return nil, nil
}

type mockCompanyRepo struct{}

func (mockCompanyRepo) Create(ctx context.Context, c *company.Company) error { return nil }
func (mockCompanyRepo) GetByID(ctx context.Context, id uuid.UUID) (*company.Company, error) {
	if id == companyID {
		return testCompany(), nil
	}
	return nil, company.ErrCompanyNotFound
}
func (mockCompanyRepo) GetByName(ctx context.Context, name string) (*company.Company, error) {
	return nil, company.ErrCompanyNotFound
}
func (mockCompanyRepo) List(ctx context.Context) ([]company.Company, error) { return nil, nil }

type mockProjectRepo struct {
	project *project.Project
}

func (m *mockProjectRepo) Create(ctx context.Context, p *project.Project) error { return nil }
func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	if m.project != nil && id == m.project.ID {
		cp := *m.project
		return &cp, nil
	}
	return nil, project.ErrProjectNotFound
}
func (m *mockProjectRepo) List(ctx context.Context) ([]project.Project, error) { return nil, nil }

type mockEnvelopes struct {
	populateFn func(ctx context.Context, sig *signature.Signature, req envelope.SignRequest) error
	calls      int
	lastReq    envelope.SignRequest
}

func (m *mockEnvelopes) PopulateSignURL(ctx context.Context, sig *signature.Signature, req envelope.SignRequest) error {
	m.calls++
	m.lastReq = req
	if m.populateFn != nil {
		return m.populateFn(ctx, sig, req)
	}
	url := "https://sign.example.com/session"
	env := "env-1"
	sig.SignURL = &url
	sig.EnvelopeID = &env
	return nil
}

type mockProvider struct {
	getSignedDocumentFn func(ctx context.Context, envelopeID string) ([]byte, error)
	fetches             int
}

func (m *mockProvider) CreateEnvelope(ctx context.Context, req docusign.EnvelopeRequest) (string, error) {
	return "env-1", nil
}
func (m *mockProvider) GetEmbeddedSignURL(ctx context.Context, envelopeID string, signer docusign.Signer, returnURL string) (string, error) {
	return "https://sign.example.com/session", nil
}
func (m *mockProvider) VoidEnvelope(ctx context.Context, envelopeID, reason string) error {
	return nil
}
func (m *mockProvider) GetSignedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	m.fetches++
	if m.getSignedDocumentFn != nil {
		return m.getSignedDocumentFn(ctx, envelopeID)
	}
	return []byte("%PDF-1.4 signed"), nil
}

type mockUpdater struct {
	calls []bool
	err   error
}

func (m *mockUpdater) UpdateChangeRequestStatus(ctx context.Context, installationID, repoID int64, changeRequestID int, authorized bool) error {
	m.calls = append(m.calls, authorized)
	return m.err
}

type mockSender struct {
	sent   []email.Message
	sendFn func(ctx context.Context, msg email.Message) error
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockDocStore struct {
	uploads int
	err     error
}

func (m *mockDocStore) UploadSignedDocument(ctx context.Context, projectID uuid.UUID, sigType signature.Type, referenceID, signatureID uuid.UUID, pdf []byte) error {
	m.uploads++
	return m.err
}

// --- Harness ---

type env struct {
	service   *signing.Service
	sigs      *memSigRepo
	users     *mockUserRepo
	envelopes *mockEnvelopes
	provider  *mockProvider
	updater   *mockUpdater
	sender    *mockSender
	docs      *mockDocStore
}

func newEnv(t *testing.T, seed ...*signature.Signature) *env {
	t.Helper()

	sigs := newMemSigRepo(seed...)
	users := newMockUserRepo(alice(), bob())
	envelopes := &mockEnvelopes{}
	provider := &mockProvider{}
	updater := &mockUpdater{}
	sender := &mockSender{}
	docs := &mockDocStore{}

	e := &env{
		sigs:      sigs,
		users:     users,
		envelopes: envelopes,
		provider:  provider,
		updater:   updater,
		sender:    sender,
		docs:      docs,
	}
	e.service = signing.NewService(signing.Deps{
		Signatures:      sigs,
		Users:           users,
		Companies:       mockCompanyRepo{},
		Projects:        &mockProjectRepo{project: testProject()},
		Matcher:         approval.NewMatcher(nil, nil, users),
		Envelopes:       envelopes,
		Provider:        provider,
		Updater:         updater,
		Sender:          sender,
		Documents:       docs,
		Notifier:        notifier.NewNotifier(users, sender),
		CallbackBaseURL: "https://api.example.com",
	})
	return e
}

func completedCallbackXML(signatureID uuid.UUID, envelopeID string) []byte {
	return []byte(fmt.Sprintf(`<DocuSignEnvelopeInformation>
  <EnvelopeStatus>
    <EnvelopeID>%s</EnvelopeID>
    <Status>Completed</Status>
    <RecipientStatuses>
      <RecipientStatus>
        <ClientUserId>%s</ClientUserId>
        <Status>Completed</Status>
        <UserName>Alice Adams</UserName>
        <Signed>2026-03-14T09:26:53Z</Signed>
      </RecipientStatus>
    </RecipientStatuses>
  </EnvelopeStatus>
</DocuSignEnvelopeInformation>`, envelopeID, signatureID))
}

// --- Individual Flow ---

func TestRequestIndividualSignature_CreatesNew(t *testing.T) {
	e := newEnv(t)

	sig, err := e.service.RequestIndividualSignature(context.Background(), signing.IndividualSignatureRequest{
		ProjectID: projectID,
		UserID:    userIDAlice,
		ReturnURL: "https://app.example.com/done",
	})
	require.NoError(t, err)

	assert.Equal(t, signature.TypeIndividual, sig.Type)
	assert.Equal(t, signature.ReferenceUser, sig.ReferenceType)
	assert.Equal(t, userIDAlice, sig.ReferenceID)
	assert.False(t, sig.Signed)
	assert.Equal(t, []string{"alice"}, sig.ACL)
	assert.NotNil(t, sig.SignURL)
	assert.Equal(t, 1, e.envelopes.calls)
	assert.Contains(t, e.envelopes.lastReq.CallbackURL, "/v1/signed/individual/"+sig.ID.String())

	_, err = e.sigs.GetByID(context.Background(), sig.ID)
	assert.NoError(t, err, "record must be persisted")
}

func TestRequestIndividualSignature_SignedCurrentVersionReturnedAsIs(t *testing.T) {
	existing := &signature.Signature{
		ID:                   sigID,
		ProjectID:            projectID,
		Type:                 signature.TypeIndividual,
		ReferenceType:        signature.ReferenceUser,
		ReferenceID:          userIDAlice,
		DocumentMajorVersion: 2,
		Signed:               true,
	}
	e := newEnv(t, existing)

	sig, err := e.service.RequestIndividualSignature(context.Background(), signing.IndividualSignatureRequest{
		ProjectID: projectID,
		UserID:    userIDAlice,
		ReturnURL: "https://r",
	})
	require.NoError(t, err)
	assert.Equal(t, sigID, sig.ID)
	assert.True(t, sig.Signed)
	assert.Equal(t, 0, e.envelopes.calls, "no new signing session for an already-signed agreement")
}

func TestRequestIndividualSignature_UnsignedCurrentVersionReused(t *testing.T) {
	existing := &signature.Signature{
		ID:                   sigID,
		ProjectID:            projectID,
		Type:                 signature.TypeIndividual,
		ReferenceType:        signature.ReferenceUser,
		ReferenceID:          userIDAlice,
		DocumentMajorVersion: 2,
	}
	e := newEnv(t, existing)

	sig, err := e.service.RequestIndividualSignature(context.Background(), signing.IndividualSignatureRequest{
		ProjectID: projectID,
		UserID:    userIDAlice,
		ReturnURL: "https://r",
	})
	require.NoError(t, err)
	assert.Equal(t, sigID, sig.ID, "same record, fresh session")
	assert.Equal(t, 1, e.envelopes.calls)
}

func TestRequestIndividualSignature_UnsignedStaleVersionReused(t *testing.T) {
	// A record whose envelope creation failed is left on version 0; a
	// retry must pick it up instead of inserting another row.
	existing := &signature.Signature{
		ID:            sigID,
		ProjectID:     projectID,
		Type:          signature.TypeIndividual,
		ReferenceType: signature.ReferenceUser,
		ReferenceID:   userIDAlice,
	}
	e := newEnv(t, existing)

	sig, err := e.service.RequestIndividualSignature(context.Background(), signing.IndividualSignatureRequest{
		ProjectID: projectID,
		UserID:    userIDAlice,
		ReturnURL: "https://r",
	})
	require.NoError(t, err)
	assert.Equal(t, sigID, sig.ID, "stale unsigned record must be reused")
	assert.Equal(t, 1, e.envelopes.calls)

	all, err := e.sigs.ListByProject(context.Background(), projectID, signature.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "retry must not create a duplicate record")
}

func TestRequestIndividualSignature_UnknownProject(t *testing.T) {
	e := newEnv(t)

	_, err := e.service.RequestIndividualSignature(context.Background(), signing.IndividualSignatureRequest{
		ProjectID: uuid.New(),
		UserID:    userIDAlice,
	})
	var notFound *clerrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestHasActiveIndividualSignature(t *testing.T) {
	current := &signature.Signature{
		ID:                   sigID,
		ProjectID:            projectID,
		Type:                 signature.TypeIndividual,
		ReferenceType:        signature.ReferenceUser,
		ReferenceID:          userIDAlice,
		DocumentMajorVersion: 2,
		Signed:               true,
	}
	e := newEnv(t, current)

	active, err := e.service.HasActiveIndividualSignature(context.Background(), projectID, userIDAlice)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = e.service.HasActiveIndividualSignature(context.Background(), projectID, userIDBob)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestHasActiveIndividualSignature_StaleMajorVersion(t *testing.T) {
	stale := &signature.Signature{
		ID:                   sigID,
		ProjectID:            projectID,
		Type:                 signature.TypeIndividual,
		ReferenceType:        signature.ReferenceUser,
		ReferenceID:          userIDAlice,
		DocumentMajorVersion: 1,
		Signed:               true,
	}
	e := newEnv(t, stale)

	active, err := e.service.HasActiveIndividualSignature(context.Background(), projectID, userIDAlice)
	require.NoError(t, err)
	assert.False(t, active, "a signature against an older major version is not active")
}

// --- Corporate Flow ---

func TestRequestCorporateSignature_CreatesNew(t *testing.T) {
	e := newEnv(t)

	sig, err := e.service.RequestCorporateSignature(context.Background(), signing.CorporateSignatureRequest{
		ProjectID:        projectID,
		CompanyID:        companyID,
		RequestingUserID: userIDAlice,
		ReturnURL:        "https://r",
	})
	require.NoError(t, err)

	assert.True(t, sig.IsCorporate())
	assert.Equal(t, []string{"alice"}, sig.ACL, "the requesting CLA manager seeds the ACL")
	assert.Contains(t, e.envelopes.lastReq.CallbackURL,
		fmt.Sprintf("/v1/signed/corporate/%s/%s", projectID, companyID))
	assert.Equal(t, "Acme", e.envelopes.lastReq.DefaultFields["signing_entity_name"])
}

func TestRequestCorporateSignature_AlreadySignedConflict(t *testing.T) {
	e := newEnv(t, activeCCLA())

	_, err := e.service.RequestCorporateSignature(context.Background(), signing.CorporateSignatureRequest{
		ProjectID:        projectID,
		CompanyID:        companyID,
		RequestingUserID: userIDAlice,
	})
	var conflict *clerrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, clerrors.CodeCCLAAlreadySigned, conflict.Code)
	assert.Equal(t, 0, e.envelopes.calls)
}

func TestRequestCorporateSignature_ReusesUnsignedRecord(t *testing.T) {
	unsigned := activeCCLA()
	unsigned.Signed = false
	unsigned.Approved = false
	e := newEnv(t, unsigned)

	sig, err := e.service.RequestCorporateSignature(context.Background(), signing.CorporateSignatureRequest{
		ProjectID:        projectID,
		CompanyID:        companyID,
		RequestingUserID: userIDAlice,
	})
	require.NoError(t, err)
	assert.Equal(t, unsigned.ID, sig.ID)
	assert.Equal(t, 1, e.envelopes.calls)
}

// --- Employee Flow ---

func TestRequestEmployeeSignature_ApprovedUser(t *testing.T) {
	e := newEnv(t, activeCCLA())

	sig, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
		ChangeRequest: &signing.ChangeRequestRef{
			RepositoryID:    8675309,
			ChangeRequestID: 42,
		},
	})
	require.NoError(t, err)

	assert.True(t, sig.Signed, "acknowledgement needs no external signing step")
	assert.True(t, sig.Approved)
	assert.True(t, sig.EmbargoAcked)
	require.NotNil(t, sig.UserCCLACompanyID)
	assert.Equal(t, companyID, *sig.UserCCLACompanyID)
	assert.Equal(t, 1, sig.DocumentMajorVersion, "acknowledgement pins the CCLA's document version")

	require.Len(t, e.updater.calls, 1, "the change request is unblocked")
	assert.True(t, e.updater.calls[0])

	// The user is now associated with the company.
	stored, err := e.users.GetByID(context.Background(), userIDAlice)
	require.NoError(t, err)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, companyID, *stored.CompanyID)
}

func TestRequestEmployeeSignature_NotOnApprovalList(t *testing.T) {
	e := newEnv(t, activeCCLA())

	_, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDBob,
	})
	var precondition *clerrors.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, clerrors.CodeNotOnApprovalList, precondition.Code)
}

func TestRequestEmployeeSignature_NoActiveCCLA(t *testing.T) {
	e := newEnv(t)

	_, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
	})
	var precondition *clerrors.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, clerrors.CodeMissingCCLA, precondition.Code)
}

func TestRequestEmployeeSignature_UnapprovedCCLADoesNotCount(t *testing.T) {
	unapproved := activeCCLA()
	unapproved.Approved = false
	e := newEnv(t, unapproved)

	_, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
	})
	var precondition *clerrors.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, clerrors.CodeMissingCCLA, precondition.Code)
}

func TestRequestEmployeeSignature_CCLARequiresICLABlocksUnblock(t *testing.T) {
	e := newEnv(t, activeCCLA())
	proj := testProject()
	proj.CCLARequiresICLA = true
	e.service = signing.NewService(signing.Deps{
		Signatures:      e.sigs,
		Users:           e.users,
		Companies:       mockCompanyRepo{},
		Projects:        &mockProjectRepo{project: proj},
		Matcher:         approval.NewMatcher(nil, nil, e.users),
		Envelopes:       e.envelopes,
		Provider:        e.provider,
		Updater:         e.updater,
		Sender:          e.sender,
		Documents:       e.docs,
		CallbackBaseURL: "https://api.example.com",
	})

	_, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
		ChangeRequest: &signing.ChangeRequestRef{
			RepositoryID:    8675309,
			ChangeRequestID: 42,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, e.updater.calls, "an ICLA is still required before unblocking")
}

func TestRequestEmployeeSignature_Idempotent(t *testing.T) {
	e := newEnv(t, activeCCLA())

	first, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
	})
	require.NoError(t, err)

	second, err := e.service.RequestEmployeeSignature(context.Background(), signing.EmployeeSignatureRequest{
		ProjectID: projectID,
		CompanyID: companyID,
		UserID:    userIDAlice,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "repeat acknowledgement reuses the record")
}

// --- Callbacks ---

func unsignedIndividual() *signature.Signature {
	env := "env-1"
	return &signature.Signature{
		ID:            sigID,
		ProjectID:     projectID,
		Type:          signature.TypeIndividual,
		ReferenceType: signature.ReferenceUser,
		ReferenceID:   userIDAlice,
		EnvelopeID:    &env,
		ACL:           []string{"alice"},
	}
}

func TestHandleIndividualCallback_Completed(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	err := e.service.HandleIndividualCallback(context.Background(), completedCallbackXML(sigID, "env-1"), sigID)
	require.NoError(t, err)

	stored, err := e.sigs.GetByID(context.Background(), sigID)
	require.NoError(t, err)
	assert.True(t, stored.Signed)
	assert.True(t, stored.EmbargoAcked)
	require.NotNil(t, stored.SignatoryName)
	assert.Equal(t, "Alice Adams", *stored.SignatoryName)
	assert.NotNil(t, stored.SignedOn)
	assert.NotEmpty(t, stored.RawCallback, "raw payload retained for audit")

	assert.Equal(t, 1, e.provider.fetches)
	assert.Equal(t, 1, e.docs.uploads)
	require.Len(t, e.sender.sent, 1)
	assert.Equal(t, []string{"alice@acme.com"}, e.sender.sent[0].To)
	require.NotNil(t, e.sender.sent[0].Attachment)
}

func TestHandleIndividualCallback_DuplicateIsNoop(t *testing.T) {
	e := newEnv(t, unsignedIndividual())
	payload := completedCallbackXML(sigID, "env-1")

	require.NoError(t, e.service.HandleIndividualCallback(context.Background(), payload, sigID))
	require.NoError(t, e.service.HandleIndividualCallback(context.Background(), payload, sigID))

	assert.Equal(t, 1, e.provider.fetches, "signed document fetched exactly once")
	assert.Equal(t, 1, e.docs.uploads, "uploaded exactly once")
	assert.Len(t, e.sender.sent, 1, "emailed exactly once")
}

func TestHandleIndividualCallback_InterimIgnored(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	interim := []byte(fmt.Sprintf(`<DocuSignEnvelopeInformation>
  <EnvelopeStatus>
    <EnvelopeID>env-1</EnvelopeID>
    <Status>Delivered</Status>
    <RecipientStatuses>
      <RecipientStatus>
        <ClientUserId>%s</ClientUserId>
        <Status>Delivered</Status>
      </RecipientStatus>
    </RecipientStatuses>
  </EnvelopeStatus>
</DocuSignEnvelopeInformation>`, sigID))

	require.NoError(t, e.service.HandleIndividualCallback(context.Background(), interim, sigID))

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.False(t, stored.Signed)
	assert.Equal(t, 0, e.provider.fetches)
}

func TestHandleIndividualCallback_RouteMismatch(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	err := e.service.HandleIndividualCallback(context.Background(), completedCallbackXML(sigID, "env-1"), uuid.New())
	assert.Error(t, err)

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.False(t, stored.Signed)
}

func TestHandleCorporateCallback_Completed(t *testing.T) {
	env := "env-1"
	ccla := activeCCLA()
	ccla.Signed = false
	ccla.Approved = false
	ccla.EnvelopeID = &env
	e := newEnv(t, ccla)

	err := e.service.HandleCorporateCallback(context.Background(), completedCallbackXML(sigID, "env-1"), projectID, companyID)
	require.NoError(t, err)

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.True(t, stored.Signed)
	assert.Equal(t, 1, e.docs.uploads)
	assert.Empty(t, e.sender.sent, "no contributor email for company-level signings")
}

func TestHandleCorporateCallback_RouteMismatch(t *testing.T) {
	env := "env-1"
	ccla := activeCCLA()
	ccla.Signed = false
	ccla.EnvelopeID = &env
	e := newEnv(t, ccla)

	err := e.service.HandleCorporateCallback(context.Background(), completedCallbackXML(sigID, "env-1"), projectID, uuid.New())
	assert.Error(t, err)

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.False(t, stored.Signed)
}

func TestHandleIndividualCallback_MalformedPayload(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	err := e.service.HandleIndividualCallback(context.Background(), []byte("not xml"), sigID)
	assert.Error(t, err)
}

func TestProcessCallback_SideEffectFailureDoesNotUnsign(t *testing.T) {
	e := newEnv(t, unsignedIndividual())
	e.provider.getSignedDocumentFn = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("provider down")
	}

	err := e.service.HandleIndividualCallback(context.Background(), completedCallbackXML(sigID, "env-1"), sigID)
	require.NoError(t, err, "delivery failures never surface to the provider")

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.True(t, stored.Signed, "the signed state is committed before side effects run")
	assert.Equal(t, 0, e.docs.uploads)
	assert.Empty(t, e.sender.sent)
}

func TestHandleIndividualCallback_CarriesChangeRequestFields(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	payload := []byte(fmt.Sprintf(`<DocuSignEnvelopeInformation>
  <EnvelopeStatus>
    <EnvelopeID>env-1</EnvelopeID>
    <Status>Completed</Status>
    <RecipientStatuses>
      <RecipientStatus>
        <ClientUserId>%s</ClientUserId>
        <Status>Completed</Status>
        <UserName>Alice Adams</UserName>
        <TabStatuses>
          <TabStatus><TabLabel>scm_installation_id</TabLabel><TabValue>11</TabValue></TabStatus>
          <TabStatus><TabLabel>scm_repository_id</TabLabel><TabValue>8675309</TabValue></TabStatus>
          <TabStatus><TabLabel>scm_change_request_id</TabLabel><TabValue>42</TabValue></TabStatus>
        </TabStatuses>
      </RecipientStatus>
    </RecipientStatuses>
  </EnvelopeStatus>
</DocuSignEnvelopeInformation>`, sigID))

	require.NoError(t, e.service.HandleIndividualCallback(context.Background(), payload, sigID))

	require.Len(t, e.updater.calls, 1, "the change request carried in the envelope fields is unblocked")
	assert.True(t, e.updater.calls[0])
}

// --- Approval ---

func TestSetApproved_EdgeTriggeredEmail(t *testing.T) {
	signed := unsignedIndividual()
	signed.Signed = true
	e := newEnv(t, signed)

	sig, err := e.service.SetApproved(context.Background(), sigID, true)
	require.NoError(t, err)
	assert.True(t, sig.Approved)
	require.Len(t, e.sender.sent, 1)
	assert.Equal(t, []string{"alice@acme.com"}, e.sender.sent[0].To)

	// Repeating the same transition sends nothing further.
	_, err = e.service.SetApproved(context.Background(), sigID, true)
	require.NoError(t, err)
	assert.Len(t, e.sender.sent, 1, "approval email is edge-triggered, exactly once")
}

func TestSetApproved_RevokeSendsNoEmail(t *testing.T) {
	signed := unsignedIndividual()
	signed.Signed = true
	signed.Approved = true
	e := newEnv(t, signed)

	sig, err := e.service.SetApproved(context.Background(), sigID, false)
	require.NoError(t, err)
	assert.False(t, sig.Approved)
	assert.Empty(t, e.sender.sent)
}

func TestUpdateApprovalLists_DiffAndNotify(t *testing.T) {
	e := newEnv(t, activeCCLA())

	sig, err := e.service.UpdateApprovalLists(context.Background(), sigID, signature.ApprovalLists{
		Domains: []string{"acme.com"},
		Emails:  []string{"bob@elsewhere.net"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@elsewhere.net"}, sig.ApprovalLists.Emails)

	// Bob was added by email and resolves to a known user; the CLA manager
	// (alice) receives the summary.
	var recipients []string
	for _, msg := range e.sender.sent {
		recipients = append(recipients, msg.To...)
	}
	assert.Contains(t, recipients, "bob@elsewhere.net")
	assert.Contains(t, recipients, "alice@acme.com")
}

func TestUpdateApprovalLists_NoChangesNoNotifications(t *testing.T) {
	ccla := activeCCLA()
	e := newEnv(t, ccla)

	_, err := e.service.UpdateApprovalLists(context.Background(), sigID, ccla.ApprovalLists)
	require.NoError(t, err)
	assert.Empty(t, e.sender.sent)
}

func TestUpdateApprovalLists_RejectsIndividual(t *testing.T) {
	e := newEnv(t, unsignedIndividual())

	_, err := e.service.UpdateApprovalLists(context.Background(), sigID, signature.ApprovalLists{
		Emails: []string{"x@y.com"},
	})
	var precondition *clerrors.PreconditionError
	assert.ErrorAs(t, err, &precondition)
}

// --- ACL ---

func TestAddACLMember(t *testing.T) {
	e := newEnv(t, activeCCLA())

	sig, err := e.service.AddACLMember(context.Background(), sigID, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, sig.ACL)
}

func TestRemoveACLMember_LastMemberRejected(t *testing.T) {
	e := newEnv(t, activeCCLA())

	_, err := e.service.RemoveACLMember(context.Background(), sigID, "alice")
	var precondition *clerrors.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, clerrors.CodeEmptyACL, precondition.Code)

	stored, _ := e.sigs.GetByID(context.Background(), sigID)
	assert.Equal(t, []string{"alice"}, stored.ACL)
}

func TestRemoveACLMember_Success(t *testing.T) {
	ccla := activeCCLA()
	ccla.ACL = []string{"alice", "carol"}
	e := newEnv(t, ccla)

	sig, err := e.service.RemoveACLMember(context.Background(), sigID, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, sig.ACL)
}

// --- Deletion ---

func TestDeleteSignature(t *testing.T) {
	e := newEnv(t, activeCCLA())

	err := e.service.DeleteSignature(context.Background(), sigID, "admin")
	require.NoError(t, err)

	_, err = e.sigs.GetByID(context.Background(), sigID)
	assert.ErrorIs(t, err, signature.ErrSignatureNotFound)
}

func TestDeleteSignature_NotFound(t *testing.T) {
	e := newEnv(t)

	err := e.service.DeleteSignature(context.Background(), uuid.New(), "admin")
	var notFound *clerrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
