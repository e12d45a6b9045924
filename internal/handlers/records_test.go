package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/middleware"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/dimitrije/passkeep/internal/testutil"
	"github.com/dimitrije/passkeep/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordAPITest struct {
	users   *testutil.MockUserService
	records *testutil.MockRecordService
	hub     *testutil.MockHub
	user    *models.User
	client  *testutil.HTTPTestClient
	auth    map[string]string
}

func setupRecordAPITest(t *testing.T) *recordAPITest {
	t.Helper()

	tt := &recordAPITest{
		users:   new(testutil.MockUserService),
		records: new(testutil.MockRecordService),
		hub:     new(testutil.MockHub),
		user:    testUser(),
	}
	tt.users.On("GetByID", mock.Anything, tt.user.ID).Return(tt.user, nil).Maybe()

	handler := NewRecordHandler(tt.records, tt.hub)

	app := drift.New()
	api := app.Group("/api/v1")
	api.Use(driftmw.BodyParser())
	api.Use(middleware.Auth(newTestSessions(tt.users, new(testutil.MockTokenService))))
	api.Get("/records", handler.List)
	api.Post("/records", handler.Create)
	api.Get("/records/:id", handler.Get)
	api.Delete("/records/:id", handler.Delete)

	tt.client = testutil.NewHTTPTestClient(t, app)
	tt.auth = map[string]string{
		"Authorization": testutil.AuthHeader(generateTestToken(t, tt.user.ID, tt.user.Email)),
	}
	return tt
}

func sampleRecord(ownerID uuid.UUID, title, username string, createdAt time.Time) models.Record {
	url := "https://" + title + ".example.com"
	return models.Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		Username:  username,
		Password:  "secret-" + title,
		URL:       &url,
		CreatedAt: createdAt,
	}
}

func TestRecordHandler_List_NewestFirstWithoutPasswords(t *testing.T) {
	tt := setupRecordAPITest(t)

	now := time.Now()
	newer := sampleRecord(tt.user.ID, "bank", "alice", now)
	older := sampleRecord(tt.user.ID, "mail", "alice", now.Add(-time.Hour))
	tt.records.On("List", mock.Anything, tt.user.ID).Return([]models.Record{newer, older}, nil)

	rec := tt.client.GET("/api/v1/records", tt.auth)

	testutil.AssertStatus(t, rec, http.StatusOK)
	assert.NotContains(t, rec.Body.String(), "secret-bank")

	var out []dto.RecordSummary
	testutil.ParseJSON(t, rec, &out)
	require.Len(t, out, 2)
	assert.Equal(t, newer.ID, out[0].ID)
	assert.Equal(t, older.ID, out[1].ID)

	tt.records.AssertExpectations(t)
}

func TestRecordHandler_List_Search(t *testing.T) {
	tt := setupRecordAPITest(t)

	now := time.Now()
	tt.records.On("List", mock.Anything, tt.user.ID).Return([]models.Record{
		sampleRecord(tt.user.ID, "bank", "alice", now),
		sampleRecord(tt.user.ID, "mail", "bob", now.Add(-time.Minute)),
	}, nil)

	rec := tt.client.GET("/api/v1/records?q=BOB", tt.auth)

	testutil.AssertStatus(t, rec, http.StatusOK)

	var out []dto.RecordSummary
	testutil.ParseJSON(t, rec, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "mail", out[0].Title)
}

func TestRecordHandler_List_EmptyIsArray(t *testing.T) {
	tt := setupRecordAPITest(t)
	tt.records.On("List", mock.Anything, tt.user.ID).Return([]models.Record{}, nil)

	rec := tt.client.GET("/api/v1/records?q=x", tt.auth)

	testutil.AssertStatus(t, rec, http.StatusOK)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRecordHandler_List_StoreError(t *testing.T) {
	tt := setupRecordAPITest(t)
	tt.records.On("List", mock.Anything, tt.user.ID).Return(nil, errors.New("connection reset"))

	rec := tt.client.GET("/api/v1/records", tt.auth)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to load records")
}

func TestRecordHandler_List_NotAuthenticated(t *testing.T) {
	tt := setupRecordAPITest(t)

	rec := tt.client.GET("/api/v1/records", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	tt.records.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestRecordHandler_Create_Success(t *testing.T) {
	tt := setupRecordAPITest(t)

	fields := models.RecordFields{Title: "Bank", Username: "alice", Password: "p1"}
	created := &models.Record{
		ID:        uuid.New(),
		OwnerID:   tt.user.ID,
		Title:     "Bank",
		Username:  "alice",
		Password:  "p1",
		CreatedAt: time.Now(),
	}
	tt.records.On("Insert", mock.Anything, tt.user.ID, fields).Return(created, nil)
	tt.hub.On("BroadcastRecordCreated", tt.user.ID, created.ID, "Bank", created.CreatedAt).Return()

	rec := tt.client.POST("/api/v1/records", dto.CreateRecordRequest{
		Title:    " Bank ",
		Username: "alice",
		Password: "p1",
	}, tt.auth)

	testutil.AssertStatus(t, rec, http.StatusCreated)

	var out dto.RecordResponse
	testutil.ParseJSON(t, rec, &out)
	assert.Equal(t, created.ID, out.ID)
	assert.Equal(t, "p1", out.Password)
	assert.Nil(t, out.URL)

	tt.records.AssertExpectations(t)
	tt.hub.AssertExpectations(t)
}

func TestRecordHandler_Create_ValidationError(t *testing.T) {
	tt := setupRecordAPITest(t)

	rec := tt.client.POST("/api/v1/records", dto.CreateRecordRequest{
		Title:    "Bank",
		Username: "alice",
		Password: "p1",
		URL:      "javascript:alert(1)",
	}, tt.auth)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var out map[string]string
	testutil.ParseJSON(t, rec, &out)
	assert.Equal(t, "url", out["field"])

	tt.records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	tt.hub.AssertNotCalled(t, "BroadcastRecordCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordHandler_Create_StoreError(t *testing.T) {
	tt := setupRecordAPITest(t)

	tt.records.On("Insert", mock.Anything, tt.user.ID, mock.Anything).Return(nil, errors.New("disk full"))

	rec := tt.client.POST("/api/v1/records", dto.CreateRecordRequest{
		Title: "Bank", Username: "alice", Password: "p1",
	}, tt.auth)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to save record")
	tt.hub.AssertNotCalled(t, "BroadcastRecordCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordHandler_Get(t *testing.T) {
	tt := setupRecordAPITest(t)

	r := sampleRecord(tt.user.ID, "bank", "alice", time.Now())
	missing := uuid.New()
	tt.records.On("Get", mock.Anything, tt.user.ID, r.ID).Return(&r, nil)
	tt.records.On("Get", mock.Anything, tt.user.ID, missing).Return(nil, records.ErrRecordNotFound)

	rec := tt.client.GET("/api/v1/records/"+r.ID.String(), tt.auth)
	testutil.AssertStatus(t, rec, http.StatusOK)

	var out dto.RecordResponse
	testutil.ParseJSON(t, rec, &out)
	assert.Equal(t, "secret-bank", out.Password)

	rec = tt.client.GET("/api/v1/records/"+missing.String(), tt.auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = tt.client.GET("/api/v1/records/not-a-uuid", tt.auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordHandler_Delete_Success(t *testing.T) {
	tt := setupRecordAPITest(t)

	id := uuid.New()
	tt.records.On("Delete", mock.Anything, tt.user.ID, id).Return(nil)
	tt.hub.On("BroadcastRecordDeleted", tt.user.ID, id).Return()

	rec := tt.client.DELETE("/api/v1/records/"+id.String(), tt.auth)

	testutil.AssertStatus(t, rec, http.StatusOK)
	tt.records.AssertExpectations(t)
	tt.hub.AssertExpectations(t)
}

func TestRecordHandler_Delete_ForeignRecord(t *testing.T) {
	tt := setupRecordAPITest(t)

	id := uuid.New()
	tt.records.On("Delete", mock.Anything, tt.user.ID, id).Return(records.ErrRecordNotFound)

	rec := tt.client.DELETE("/api/v1/records/"+id.String(), tt.auth)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	tt.hub.AssertNotCalled(t, "BroadcastRecordDeleted", mock.Anything, mock.Anything)
}

func TestRecordHandler_Delete_StoreError(t *testing.T) {
	tt := setupRecordAPITest(t)

	id := uuid.New()
	tt.records.On("Delete", mock.Anything, tt.user.ID, id).Return(errors.New("timeout"))

	rec := tt.client.DELETE("/api/v1/records/"+id.String(), tt.auth)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	tt.hub.AssertNotCalled(t, "BroadcastRecordDeleted", mock.Anything, mock.Anything)
}
