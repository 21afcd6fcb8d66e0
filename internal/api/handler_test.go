package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/orchestrator"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

// === Mocks ===

type mockPipeline struct{ mock.Mock }

func (m *mockPipeline) Register(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error) {
	args := m.Called(ctx, req)
	report, _ := args.Get(0).(*orchestrator.Report)
	return report, args.Error(1)
}

func (m *mockPipeline) Export(ctx context.Context, req orchestrator.Request, w io.Writer) error {
	args := m.Called(ctx, req, w)
	if doc, ok := args.Get(0).(string); ok && doc != "" {
		_, _ = io.WriteString(w, doc)
	}
	return args.Error(1)
}

func (m *mockPipeline) MarkRegistered(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error) {
	args := m.Called(ctx, req)
	report, _ := args.Get(0).(*orchestrator.Report)
	return report, args.Error(1)
}

type mockObjects struct{ mock.Mock }

func (m *mockObjects) Get(ctx context.Context, id string) (*domain.Object, error) {
	args := m.Called(ctx, id)
	obj, _ := args.Get(0).(*domain.Object)
	return obj, args.Error(1)
}

func (m *mockObjects) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Object, error) {
	args := m.Called(ctx, filter)
	objs, _ := args.Get(0).([]*domain.Object)
	return objs, args.Error(1)
}

func (m *mockObjects) Batches(ctx context.Context, objectID string) ([]domain.Batch, error) {
	args := m.Called(ctx, objectID)
	batches, _ := args.Get(0).([]domain.Batch)
	return batches, args.Error(1)
}

type mockMessages struct{ mock.Mock }

func (m *mockMessages) Lookup(ctx context.Context, objectID string) (string, error) {
	args := m.Called(ctx, objectID)
	return args.String(0), args.Error(1)
}

// === Helpers ===

type fixture struct {
	pipeline *mockPipeline
	objects  *mockObjects
	messages *mockMessages
	queue    *notify.Queue
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		pipeline: &mockPipeline{},
		objects:  &mockObjects{},
		messages: &mockMessages{},
		queue:    notify.NewQueue(),
	}
	t.Cleanup(func() {
		f.queue.Close()
		f.pipeline.AssertExpectations(t)
		f.objects.AssertExpectations(t)
		f.messages.AssertExpectations(t)
	})
	h := NewHandler(HandlerConfig{
		Pipeline:       f.pipeline,
		Objects:        f.objects,
		Messages:       f.messages,
		Notifications:  f.queue,
		DefaultContext: "jot",
	})
	h.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	f.handler = h.Routes()
	return f
}

func (f *fixture) post(form url.Values, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/deposits", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) drain(t *testing.T, user string) []NotificationResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.Header.Set(UserHeader, user)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp NotificationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Notifications
}

func article(id string, status domain.Status) *domain.Object {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.ReconstituteObject(id, "jot", domain.KindArticle, domain.Metadata{Title: "Article " + id},
		status, "", "", "", at, at)
}

// === Tests ===

func TestHandler_Deposit_SuccessRedirectsAndQueues(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("Register", mock.Anything, orchestrator.Request{
		ContextID: "jot", Kind: domain.KindArticle, ObjectIDs: []string{"1", "2"},
	}).Return(&orchestrator.Report{}, nil).Once()

	w := f.post(url.Values{
		"action":    {ActionDeposit},
		"objects":   {"1,2"},
		"return_to": {"/issues/5"},
	}, "editor")

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/issues/5", w.Header().Get("Location"))

	got := f.drain(t, "editor")
	require.Len(t, got, 1)
	assert.Equal(t, notify.SeveritySuccess, got[0].Severity)
	assert.Equal(t, "Registration successful!", got[0].Text)
	assert.Empty(t, f.drain(t, "editor"), "drain clears the queue")
}

func TestHandler_Deposit_GenericErrorOnce(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("Register", mock.Anything, mock.Anything).
		Return(&orchestrator.Report{GenericError: true}, nil).Once()

	w := f.post(url.Values{"action": {ActionDeposit}, "objects": {"1", "2", "3"}}, "editor")
	require.Equal(t, http.StatusSeeOther, w.Code)

	got := f.drain(t, "editor")
	require.Len(t, got, 1)
	assert.Equal(t, notify.SeverityError, got[0].Severity)
}

func TestHandler_Deposit_FatalErrorKeepsEntries(t *testing.T) {
	f := newFixture(t)
	report := &orchestrator.Report{Entries: []orchestrator.Entry{
		{ObjectID: "1", Key: notify.KeyDepositWarning, Param: "<warn/>", Severity: notify.SeverityWarning},
	}}
	f.pipeline.On("Register", mock.Anything, mock.Anything).
		Return(report, &domain.SerializationError{FilterKey: "article=>crossref-xml"}).Once()

	w := f.post(url.Values{"action": {ActionDeposit}, "objects": {"1", "2"}}, "editor")
	require.Equal(t, http.StatusSeeOther, w.Code)

	got := f.drain(t, "editor")
	require.Len(t, got, 2)
	assert.Equal(t, notify.KeyDepositWarning, got[0].Key)
	assert.Equal(t, notify.KeyDepositError, got[1].Key)
	assert.NotContains(t, got[1].Text, "article=>crossref-xml", "raw errors are never exposed")
}

func TestHandler_Deposit_NoObjects(t *testing.T) {
	f := newFixture(t)

	w := f.post(url.Values{"action": {ActionDeposit}, "objects": {" , "}}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/objects", w.Header().Get("Location"))

	got := f.drain(t, anonymousUser)
	require.Len(t, got, 1)
	assert.Equal(t, notify.KeyNoObjectsSelected, got[0].Key)
}

func TestHandler_Deposit_InvalidInput(t *testing.T) {
	f := newFixture(t)

	w := f.post(url.Values{"action": {"delete"}, "objects": {"1"}}, "editor")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_action", resp.Code)

	w = f.post(url.Values{"action": {ActionDeposit}, "kind": {"book"}, "objects": {"1"}}, "editor")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_kind", resp.Code)
}

func TestHandler_Deposit_RejectsExternalReturnTo(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("MarkRegistered", mock.Anything, mock.Anything).Return(&orchestrator.Report{}, nil).Once()

	w := f.post(url.Values{
		"action":    {ActionMarkRegistered},
		"objects":   {"1"},
		"return_to": {"//evil.example.com/"},
	}, "editor")

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/objects", w.Header().Get("Location"))
}

func TestHandler_Export_ReturnsXML(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("Export", mock.Anything, orchestrator.Request{
		ContextID: "other", Kind: domain.KindIssue, ObjectIDs: []string{"9"},
	}, mock.Anything).Return("<doi_batch/>", nil).Once()

	w := f.post(url.Values{
		"action":  {ActionExport},
		"kind":    {"issue"},
		"context": {"other"},
		"objects": {"9"},
	}, "editor")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "crossref-issues-20240301-120000.xml")
	assert.Equal(t, "<doi_batch/>", w.Body.String())
	assert.Empty(t, f.drain(t, "editor"))
}

func TestHandler_Export_UnknownObject(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("Export", mock.Anything, mock.Anything, mock.Anything).
		Return("", &domain.ObjectNotFoundError{ID: "42"}).Once()

	w := f.post(url.Values{"action": {ActionExport}, "objects": {"42"}}, "editor")
	require.Equal(t, http.StatusSeeOther, w.Code)

	got := f.drain(t, "editor")
	require.Len(t, got, 1)
	assert.Equal(t, notify.KeyObjectNotFound, got[0].Key)
	assert.Equal(t, "The object 42 was not found.", got[0].Text)
}

func TestHandler_NotificationsArePerUser(t *testing.T) {
	f := newFixture(t)
	f.pipeline.On("MarkRegistered", mock.Anything, mock.Anything).Return(&orchestrator.Report{}, nil).Once()

	f.post(url.Values{"action": {ActionMarkRegistered}, "objects": {"1"}}, "alice")

	assert.Empty(t, f.drain(t, "bob"))
	assert.Len(t, f.drain(t, "alice"), 1)
}

func TestHandler_ListObjects(t *testing.T) {
	f := newFixture(t)
	f.objects.On("List", mock.Anything, domain.ListFilter{
		ContextID: "jot",
		Kind:      domain.KindArticle,
		Statuses:  []domain.Status{domain.StatusFailed},
		Limit:     10,
	}).Return([]*domain.Object{article("1", domain.StatusFailed)}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/objects?context=jot&kind=article&status=failed&limit=10", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ListObjectsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "failed", resp.Objects[0].Status)
	assert.Equal(t, "Failed", resp.Objects[0].StatusLabel)
}

func TestHandler_ListObjects_BadStatus(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/objects?status=lost", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetObject(t *testing.T) {
	f := newFixture(t)
	f.objects.On("Get", mock.Anything, "1").Return(article("1", domain.StatusRegistered), nil).Once()
	f.objects.On("Batches", mock.Anything, "1").Return([]domain.Batch{
		{ObjectID: "1", BatchID: "b-1", Outcome: domain.OutcomeAccepted},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/objects/1", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"batch_id":"b-1"`)
}

func TestHandler_StatusMessage(t *testing.T) {
	f := newFixture(t)
	f.messages.On("Lookup", mock.Anything, "1").Return("<doi_batch_diagnostic/>", nil).Once()
	f.messages.On("Lookup", mock.Anything, "404").Return("", &domain.ObjectNotFoundError{ID: "404"}).Once()
	f.messages.On("Lookup", mock.Anything, "500").Return("", errors.New("disk on fire")).Once()

	req := httptest.NewRequest(http.MethodGet, "/objects/1/status-message", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "<doi_batch_diagnostic/>", resp.Message)

	req = httptest.NewRequest(http.MethodGet, "/objects/404/status-message", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/objects/500/status-message", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestHandler_Health(t *testing.T) {
	f := newFixture(t)
	f.objects.On("List", mock.Anything, domain.ListFilter{Limit: 1}).Return([]*domain.Object{}, nil).Once()
	f.objects.On("List", mock.Anything, domain.ListFilter{Limit: 1}).Return(nil, errors.New("closed")).Once()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_StreamNotifications(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set(UserHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "event: connected")

	require.NoError(t, f.queue.Notify(ctx, "bob", notify.Notification{Key: notify.KeyGenericError}))
	require.NoError(t, f.queue.Notify(ctx, "alice", notify.Notification{Key: notify.KeyRegisterSuccess, Severity: notify.SeveritySuccess}))

	var got strings.Builder
	for !strings.Contains(got.String(), "\n\n") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	require.Contains(t, got.String(), "event: notified")
	require.Contains(t, got.String(), notify.KeyRegisterSuccess)
	require.NotContains(t, got.String(), notify.KeyGenericError, "other users' notifications are filtered")
}

func TestServer_StartStop(t *testing.T) {
	f := newFixture(t)
	server, err := NewServer("127.0.0.1:0", NewHandler(HandlerConfig{Objects: f.objects, Notifications: f.queue}))
	require.NoError(t, err)
	require.NotZero(t, server.Port())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, <-errCh)
}
