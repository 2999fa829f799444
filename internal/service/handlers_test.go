package service

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"itemstore/internal/app"
	"itemstore/internal/config"
	"itemstore/internal/models"
	"itemstore/internal/pkg/auth"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/pkg/metrics"
	"itemstore/internal/storage"
	"itemstore/internal/storage/mocks"
)

const testSecret = "test secret"

const internalErrorBody = "{\"error\":\"Server error\",\"msg\":\"Please contact support\"}\n"

func testRequestWithAuth(t *testing.T, ts *httptest.Server, method, path string, requestBody []byte, token string) (*http.Response, string) {
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func newMockServer(t *testing.T) (*httptest.Server, *mocks.MockStorage, string) {
	t.Helper()
	l, err := logger.CreateLogger(config.LogLevel)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	mockDB := mocks.NewMockStorage(ctrl)

	users := storage.NewUserStore(bcrypt.MinCost)
	require.NoError(t, users.Seed(storage.DemoUsers))
	tokens := auth.NewTokenManager(testSecret)

	appInstance := app.NewApp(mockDB, users, tokens, l)
	service := NewService(appInstance, config.ServerRunAddress, []string{"*"}, metrics.NewMetrics(), l)
	testServer := httptest.NewServer(service.NewRouter())
	t.Cleanup(testServer.Close)

	token, err := tokens.GenerateToken("admin1")
	require.NoError(t, err)
	return testServer, mockDB, token
}

func TestItemsMiddleware_Gomock(t *testing.T) {
	ioErr := errors.New("open data.json: permission denied")
	parseErr := errors.Join(storage.ErrParse, errors.New("invalid character '}' looking for beginning of value"))
	noUnlock := func() {}

	type expectedData struct {
		expectedStatusCode int
		expectedBody       string
	}

	testCases := []struct {
		name        string
		method      string
		path        string
		withToken   bool
		badToken    bool
		requestBody []byte
		setupMock   func(mockDB *mocks.MockStorage)
		expected    expectedData
	}{
		{
			name:   "Ensure fails on read",
			method: http.MethodGet,
			path:   "/items",
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().EnsureExists().Return(ioErr)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:   "Parse fails on read",
			method: http.MethodGet,
			path:   "/items/1",
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return(nil, parseErr)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:        "Ensure fails on write",
			method:      http.MethodPost,
			path:        "/items",
			withToken:   true,
			requestBody: []byte(`{"name": "NewItem"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				gomock.InOrder(
					mockDB.EXPECT().Lock().Return(noUnlock),
					mockDB.EXPECT().EnsureExists().Return(ioErr),
				)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:        "Write without token",
			method:      http.MethodPost,
			path:        "/items",
			requestBody: []byte(`{"name": "NewItem"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{}, nil)
			},
			expected: expectedData{http.StatusUnauthorized, "{\"error\":\"Unauthorized\",\"msg\":\"Missing or invalid token\"}\n"},
		},
		{
			name:      "Delete with invalid token",
			method:    http.MethodDelete,
			path:      "/items/1",
			badToken:  true,
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
			},
			expected: expectedData{http.StatusUnauthorized, "{\"error\":\"Unauthorized\",\"msg\":\"Missing or invalid token\"}\n"},
		},
		{
			name:        "Save fails on create",
			method:      http.MethodPost,
			path:        "/items",
			withToken:   true,
			requestBody: []byte(`{"name": "NewItem"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{}, nil)
				mockDB.EXPECT().Save([]models.Item{{ID: 1, Name: "NewItem"}}).Return(ioErr)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:        "Save fails on update",
			method:      http.MethodPut,
			path:        "/items/1",
			withToken:   true,
			requestBody: []byte(`{"name": "Renamed"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
				mockDB.EXPECT().Save(gomock.Any()).Return(ioErr)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:      "Save fails on delete",
			method:    http.MethodDelete,
			path:      "/items/1",
			withToken: true,
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
				mockDB.EXPECT().Save([]models.Item{}).Return(ioErr)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:        "Duplicate name",
			method:      http.MethodPost,
			path:        "/items",
			withToken:   true,
			requestBody: []byte(`{"name": "Item1"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
			},
			expected: expectedData{http.StatusConflict, "{\"error\":\"Conflict\",\"msg\":\"Item already exists\"}\n"},
		},
		{
			name:        "Item ids exhausted",
			method:      http.MethodPost,
			path:        "/items",
			withToken:   true,
			requestBody: []byte(`{"name": "NewItem"}`),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: math.MaxUint64, Name: "Last"}}, nil)
			},
			expected: expectedData{http.StatusInternalServerError, internalErrorBody},
		},
		{
			name:        "Invalid JSON",
			method:      http.MethodPost,
			path:        "/items",
			withToken:   true,
			requestBody: []byte("some body"),
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{}, nil)
			},
			expected: expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Invalid request body\"}\n"},
		},
		{
			name:   "Invalid id",
			method: http.MethodGet,
			path:   "/items/abc",
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{}, nil)
			},
			expected: expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Invalid item id\"}\n"},
		},
		{
			name:   "Unknown id on get",
			method: http.MethodGet,
			path:   "/items/999",
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
			},
			expected: expectedData{http.StatusNotFound, "{\"error\":\"Not found\",\"msg\":\"Item does not exist\"}\n"},
		},
		{
			name:      "Unknown id on delete",
			method:    http.MethodDelete,
			path:      "/items/999",
			withToken: true,
			setupMock: func(mockDB *mocks.MockStorage) {
				mockDB.EXPECT().Lock().Return(noUnlock)
				mockDB.EXPECT().EnsureExists().Return(nil)
				mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil)
			},
			expected: expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Item doesn't exist\"}\n"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testServer, mockDB, token := newMockServer(t)
			tc.setupMock(mockDB)

			reqToken := ""
			if tc.withToken {
				reqToken = token
			}
			if tc.badToken {
				reqToken = token + "tampered"
			}

			resp, body := testRequestWithAuth(t, testServer, tc.method, tc.path, tc.requestBody, reqToken)
			assert.Equal(t, tc.expected.expectedStatusCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tc.expected.expectedBody, body)
			assert.NotContains(t, body, "data.json")
		})
	}
}

func TestWriteReleasesLock_Gomock(t *testing.T) {
	testServer, mockDB, token := newMockServer(t)

	unlocked := false
	gomock.InOrder(
		mockDB.EXPECT().Lock().Return(func() { unlocked = true }),
		mockDB.EXPECT().EnsureExists().Return(nil),
		mockDB.EXPECT().Load().Return([]models.Item{{ID: 1, Name: "Item1"}}, nil),
	)

	resp, body := testRequestWithAuth(t, testServer, http.MethodPut, "/items/1", []byte(`{"name": "Item1"}`), token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "{\"id\":1,\"name\":\"Item1\"}", body)
	assert.True(t, unlocked)
}

func TestUsersHandlers(t *testing.T) {
	testServer, _, _ := newMockServer(t)

	type expectedData struct {
		expectedStatusCode int
		expectedBody       string
	}

	testCases := []struct {
		name        string
		path        string
		requestBody []byte
		expected    expectedData
	}{
		{
			name:        "Signup invalid JSON",
			path:        "/users/signup",
			requestBody: []byte("some body"),
			expected:    expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Invalid request body\"}\n"},
		},
		{
			name:        "Signup missing password",
			path:        "/users/signup",
			requestBody: []byte(`{"name": "someone", "pass": ""}`),
			expected:    expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Missing name or password\"}\n"},
		},
		{
			name:        "Signup existing user",
			path:        "/users/signup",
			requestBody: []byte(`{"name": "admin1", "pass": "whatever"}`),
			expected:    expectedData{http.StatusConflict, "{\"error\":\"User already exists\",\"msg\":\"Please use different credentials\"}\n"},
		},
		{
			name:        "Signup new user",
			path:        "/users/signup",
			requestBody: []byte(`{"name": "new_user", "pass": "secret"}`),
			expected:    expectedData{http.StatusOK, "{\"msg\":\"Successfully signed up\"}"},
		},
		{
			name:        "Login unknown user",
			path:        "/users/login",
			requestBody: []byte(`{"name": "ghost", "pass": "secret"}`),
			expected:    expectedData{http.StatusUnauthorized, "{\"error\":\"User not found\",\"msg\":\"The user doesn't exist\"}\n"},
		},
		{
			name:        "Login wrong password",
			path:        "/users/login",
			requestBody: []byte(`{"name": "admin1", "pass": "wrong"}`),
			expected:    expectedData{http.StatusUnauthorized, "{\"error\":\"Invalid credentials\",\"msg\":\"Wrong username or password\"}\n"},
		},
		{
			name:        "Login missing name",
			path:        "/users/login",
			requestBody: []byte(`{"pass": "admin1"}`),
			expected:    expectedData{http.StatusBadRequest, "{\"error\":\"Bad request\",\"msg\":\"Missing name or password\"}\n"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := testRequestWithAuth(t, testServer, http.MethodPost, tc.path, tc.requestBody, "")
			assert.Equal(t, tc.expected.expectedStatusCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tc.expected.expectedBody, body)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	testServer, _, _ := newMockServer(t)

	resp, body := testRequestWithAuth(t, testServer, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "{\"msg\":\"ok\"}", body)

	resp, body = testRequestWithAuth(t, testServer, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `itemstore_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
