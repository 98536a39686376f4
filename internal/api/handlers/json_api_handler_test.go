package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/api/handlers"
	"luxemap/estates/internal/api/middleware"
	"luxemap/estates/internal/auth"
	"luxemap/estates/internal/chat"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
)

const testVisitor = "visitor-test-0001"

type testEnv struct {
	router     *gin.Engine
	cfg        *config.Config
	enquiry    *MockEnquiryService
	newsletter *MockNewsletterService
	sessions   *site.Store
	chat       *chat.Loop
	saved      services.ISavedService
}

// setupTestRouter wires the real catalog, session store, chat loop and
// in-memory services. Only the enquiry and newsletter services are mocked.
func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	return setupTestRouterWithIdleTTL(t, time.Hour)
}

func setupTestRouterWithIdleTTL(t *testing.T, idleTTL time.Duration) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JwtSecret: "testsecret"}
	catalog := fixtures.MustDefault()
	sessions := site.NewStore(catalog, idleTTL)

	loop := chat.NewLoop(catalog, chat.Delays{
		Topic:    5 * time.Millisecond,
		Question: 5 * time.Millisecond,
		Handoff:  5 * time.Millisecond,
		Reply:    5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	propertySvc := services.NewPropertyService(cfg, catalog, services.NewImageOverrides(nil))
	savedSvc := services.NewSavedService(catalog, nil, time.Hour)
	enquirySvc := new(MockEnquiryService)
	newsletterSvc := new(MockNewsletterService)

	handler := handlers.NewJsonApiHandler(cfg, sessions, loop, propertySvc, savedSvc, enquirySvc, newsletterSvc)
	r := gin.New()
	r.Use(middleware.VisitorMiddleware())
	r.POST("/v1/api", handler.HandleRequest)

	return &testEnv{router: r, cfg: cfg, enquiry: enquirySvc, newsletter: newsletterSvc, sessions: sessions, chat: loop, saved: savedSvc}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) callWithHeaders(t *testing.T, headers map[string]string, method string, args ...interface{}) apiResponse {
	t.Helper()
	reqBody := handlers.JsonApiRequest{Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		reqBody.Arguments = raw
	}
	jsonBody, _ := json.Marshal(reqBody)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/api", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SPA", testVisitor)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) call(t *testing.T, method string, args ...interface{}) apiResponse {
	t.Helper()
	return e.callWithHeaders(t, nil, method, args...)
}

func (e *testEnv) callRaw(t *testing.T, body string) apiResponse {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/api", bytes.NewBufferString(body))
	req.Header.Set("X-SPA", testVisitor)
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// --- Tests ---

func TestJsonApiHandler_Ping(t *testing.T) {
	env := setupTestRouter(t)
	resp := env.call(t, "ping")
	assert.True(t, resp.Success)
	assert.Equal(t, "pong", decode[string](t, resp.Data))
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_RequestErrors(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.callRaw(t, `{not json`)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid JSON request format", resp.Error)

	resp = env.callRaw(t, `{"method":"doesNotExist"}`)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown method: doesNotExist", resp.Error)

	resp = env.callRaw(t, `{"method":"navigate"}`)
	assert.Equal(t, "Missing 'arguments' field; expected a JSON array with one argument.", resp.Error)

	resp = env.callRaw(t, `{"method":"navigate","arguments":{"fragment":"#/"}}`)
	assert.Equal(t, "Invalid 'arguments': expected a JSON array.", resp.Error)

	resp = env.callRaw(t, `{"method":"navigate","arguments":[]}`)
	assert.Equal(t, "Invalid 'arguments': array is empty, but one argument is expected.", resp.Error)

	resp = env.callRaw(t, `{"method":"navigate","arguments":[42]}`)
	assert.Equal(t, "Invalid format for argument: the first element in 'arguments' array has unexpected structure.", resp.Error)
}

func TestJsonApiHandler_NavigateAndScroll(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "setScroll", 420.5)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 420.5, decode[site.Snapshot](t, resp.Data).ScrollTop)

	resp = env.call(t, "navigate", "#/agents")
	require.True(t, resp.Success, resp.Error)
	data := decode[map[string]interface{}](t, resp.Data)
	assert.Equal(t, "agents", data["route"])
	assert.Equal(t, "#/agents", data["fragment"])
	assert.Equal(t, 0.0, data["scroll_top"])

	resp = env.call(t, "navigate", "#/nowhere")
	data = decode[map[string]interface{}](t, resp.Data)
	assert.Equal(t, "landing", data["route"])
	assert.Equal(t, "#/", data["fragment"])

	resp = env.call(t, "setScroll", -1)
	assert.False(t, resp.Success)
	assert.Equal(t, "Scroll offset must not be negative", resp.Error)
}

type filterData struct {
	Filters    models.FilterState `json:"filters"`
	Properties []models.Property  `json:"properties"`
	Count      int                `json:"count"`
}

func titles(props []models.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Title
	}
	return out
}

func TestJsonApiHandler_SetFilters(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "setFilters", map[string]interface{}{"search": "malibu"})
	require.True(t, resp.Success, resp.Error)
	data := decode[filterData](t, resp.Data)
	assert.Equal(t, []string{"Azure Villa"}, titles(data.Properties))
	assert.Equal(t, 1, data.Count)
	assert.Equal(t, models.DefaultMaxPrice, data.Filters.MaxPrice, "omitted fields keep their defaults")

	resp = env.call(t, "setFilters", map[string]interface{}{"type": "Penthouse", "beds": "4"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []string{"Skyline Penthouse"}, titles(decode[filterData](t, resp.Data).Properties))

	// The session keeps the last accepted filter
	assert.Equal(t, "Penthouse", env.sessions.Session(testVisitor).Filters().Type)

	resp = env.call(t, "setFilters", map[string]interface{}{"beds": "three"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Invalid filter")
	assert.Equal(t, "Penthouse", env.sessions.Session(testVisitor).Filters().Type, "rejected filters are not applied")

	resp = env.call(t, "resetFilters")
	require.True(t, resp.Success, resp.Error)
	data = decode[filterData](t, resp.Data)
	assert.Equal(t, models.DefaultFilterState(), data.Filters)
	assert.Len(t, data.Properties, 9)
}

func TestJsonApiHandler_SetFilters_ScopeFollowsRoute(t *testing.T) {
	env := setupTestRouter(t)
	narrowPrice := map[string]interface{}{"minPrice": 0, "maxPrice": 1}

	// Landing ignores the price range
	resp := env.call(t, "setFilters", narrowPrice)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 9, decode[filterData](t, resp.Data).Count)

	env.call(t, "navigate", "#/properties")
	resp = env.call(t, "setFilters", narrowPrice)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 0, decode[filterData](t, resp.Data).Count)
}

func TestJsonApiHandler_DetailPanel(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "selectProperty", "2")
	require.True(t, resp.Success, resp.Error)
	data := decode[struct {
		Panel  site.Panel                `json:"panel"`
		Detail services.PropertyDetail `json:"detail"`
	}](t, resp.Data)
	assert.Equal(t, "2", data.Panel.SelectedID)
	assert.Equal(t, "Azure Villa", data.Detail.Property.Title)
	assert.NotNil(t, data.Detail.Neighborhood)

	resp = env.call(t, "scrollPanel", 250)
	require.True(t, resp.Success, resp.Error)

	// Selecting another property replaces the selection and resets the scroll
	resp = env.call(t, "selectProperty", "1")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, site.Panel{SelectedID: "1"}, env.sessions.Session(testVisitor).Snapshot().Panel)

	resp = env.call(t, "deselectProperty", "sideways")
	assert.False(t, resp.Success)

	resp = env.call(t, "deselectProperty", "escape")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, site.Panel{}, env.sessions.Session(testVisitor).Snapshot().Panel)

	resp = env.call(t, "scrollPanel", 10)
	assert.False(t, resp.Success)
	assert.Equal(t, "No property is selected", resp.Error)

	resp = env.call(t, "selectProperty", "404")
	assert.False(t, resp.Success)
	assert.Equal(t, "Property not found", resp.Error)
}

func TestJsonApiHandler_SavedAndShare(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "toggleSaved", "3")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, map[string]interface{}{"propertyId": "3", "saved": true}, decode[map[string]interface{}](t, resp.Data))

	resp = env.call(t, "listSaved")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []string{"3"}, decode[struct {
		PropertyIDs []string `json:"propertyIds"`
	}](t, resp.Data).PropertyIDs)

	resp = env.call(t, "getSession")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []string{"3"}, decode[struct {
		Saved []string `json:"saved"`
	}](t, resp.Data).Saved)

	resp = env.call(t, "toggleSaved", "3")
	assert.Equal(t, false, decode[map[string]interface{}](t, resp.Data)["saved"])

	resp = env.call(t, "toggleSaved", "missing")
	assert.False(t, resp.Success)

	resp = env.call(t, "shareProperty", "2")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Check out Azure Villa — $8.9M in Malibu Coast, CA", decode[map[string]string](t, resp.Data)["text"])
}

func TestJsonApiHandler_SendEnquiry(t *testing.T) {
	env := setupTestRouter(t)
	req := services.EnquiryRequest{PropertyID: "2", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Message: "Hello"}

	env.enquiry.On("Submit", mock.Anything, testVisitor, req).
		Return(models.EnquiryAck{Success: true, Message: "Message sent successfully!"}, nil).Once()

	resp := env.call(t, "sendEnquiry", req)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, models.EnquiryAck{Success: true, Message: "Message sent successfully!"}, decode[models.EnquiryAck](t, resp.Data))

	bad := req
	bad.Email = "nope"
	env.enquiry.On("Submit", mock.Anything, testVisitor, bad).
		Return(models.EnquiryAck{Success: false, Message: "Please enter a valid email address."}, nil).Once()

	resp = env.call(t, "sendEnquiry", bad)
	assert.False(t, resp.Success)
	assert.Equal(t, "Please enter a valid email address.", resp.Error)

	env.enquiry.AssertExpectations(t)
}

func TestJsonApiHandler_BookConsultation(t *testing.T) {
	env := setupTestRouter(t)
	req := services.ConsultationRequest{
		AgentID:       "elena",
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		Phone:         "+1 555 0100",
		PreferredTime: "Morning (9 AM – 12 PM)",
	}
	booked := models.EnquiryAck{Success: true, Message: "Consultation requested. We'll confirm within 24 hours."}
	env.enquiry.On("BookConsultation", mock.Anything, testVisitor, req).Return(booked, nil).Once()

	resp := env.call(t, "bookConsultation", req)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, booked, decode[models.EnquiryAck](t, resp.Data))

	unknown := req
	unknown.AgentID = "nobody"
	env.enquiry.On("BookConsultation", mock.Anything, testVisitor, unknown).
		Return(models.EnquiryAck{Success: false, Message: "This agent is no longer available."}, nil).Once()

	resp = env.call(t, "bookConsultation", unknown)
	assert.False(t, resp.Success)
	assert.Equal(t, "This agent is no longer available.", resp.Error)

	resp = env.call(t, "bookConsultation")
	assert.False(t, resp.Success)

	env.enquiry.AssertExpectations(t)
	assert.Equal(t, 1, env.sessions.Len())
}

func TestJsonApiHandler_SubscribeNewsletter(t *testing.T) {
	env := setupTestRouter(t)
	thanks := models.EnquiryAck{Success: true, Message: "Thank you for subscribing with: jane@example.com"}
	env.newsletter.On("Subscribe", mock.Anything, testVisitor, "jane@example.com").Return(thanks, nil).Once()
	env.newsletter.On("Subscribe", mock.Anything, testVisitor, "jane@").
		Return(models.EnquiryAck{Success: false, Message: "Please enter a valid email address."}, nil).Once()

	resp := env.call(t, "subscribeNewsletter", "jane@example.com")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, thanks, decode[models.EnquiryAck](t, resp.Data))

	resp = env.call(t, "subscribeNewsletter", "jane@")
	assert.False(t, resp.Success)
	assert.Equal(t, "Please enter a valid email address.", resp.Error)

	env.newsletter.AssertExpectations(t)
}

func TestJsonApiHandler_ListEnquiries_RequiresAdmin(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "listEnquiries")
	assert.False(t, resp.Success)
	assert.Equal(t, "Authorization header required", resp.Error)

	staff, err := auth.GenerateJWT("agent@luxemap.com", false, env.cfg.JwtSecret, time.Hour)
	require.NoError(t, err)
	resp = env.callWithHeaders(t, map[string]string{"Authorization": "Bearer " + staff}, "listEnquiries")
	assert.Equal(t, "Administrator privileges required", resp.Error)

	admin, err := auth.GenerateJWT("boss@luxemap.com", true, env.cfg.JwtSecret, time.Hour)
	require.NoError(t, err)
	env.enquiry.On("ListRecent", mock.Anything, int64(5)).
		Return([]models.Enquiry{{ID: "e1", PropertyID: "2"}}, nil).Once()

	resp = env.callWithHeaders(t, map[string]string{"Authorization": "Bearer " + admin}, "listEnquiries", 5)
	require.True(t, resp.Success, resp.Error)
	enquiries := decode[[]models.Enquiry](t, resp.Data)
	require.Len(t, enquiries, 1)
	assert.Equal(t, "e1", enquiries[0].ID)

	env.enquiry.On("ListRecent", mock.Anything, int64(0)).Return(nil, services.ErrStorageUnavailable).Once()
	resp = env.callWithHeaders(t, map[string]string{"Authorization": "Bearer " + admin}, "listEnquiries")
	assert.Equal(t, "Enquiries are not stored on this server", resp.Error)
	env.enquiry.AssertExpectations(t)
}

func waitIdle(t *testing.T, env *testEnv) chat.Snapshot {
	t.Helper()
	var snap chat.Snapshot
	require.Eventually(t, func() bool {
		resp := env.call(t, "chatState")
		snap = decode[chat.Snapshot](t, resp.Data)
		return !snap.Typing
	}, time.Second, 5*time.Millisecond)
	return snap
}

func TestJsonApiHandler_ChatFlow(t *testing.T) {
	env := setupTestRouter(t)

	resp := env.call(t, "chatSelectTopic", "Buying & Selling")
	assert.False(t, resp.Success)
	assert.Equal(t, "Chat is closed", resp.Error)

	resp = env.call(t, "chatOpen")
	require.True(t, resp.Success, resp.Error)
	snap := decode[chat.Snapshot](t, resp.Data)
	assert.Equal(t, chat.StateCategories, snap.State)
	require.Len(t, snap.Transcript, 1)

	resp = env.call(t, "chatSelectTopic", "Nope")
	assert.Equal(t, "Unknown topic", resp.Error)

	resp = env.call(t, "chatSelectTopic", "Buying & Selling")
	require.True(t, resp.Success, resp.Error)
	assert.True(t, decode[chat.Snapshot](t, resp.Data).Typing)

	resp = env.call(t, "chatSelectTopic", "Buying & Selling")
	assert.Equal(t, "Please wait for the current reply", resp.Error)

	snap = waitIdle(t, env)
	assert.Equal(t, chat.StateQuestions, snap.State)

	resp = env.call(t, "chatTalkToHuman")
	assert.False(t, resp.Success)

	for i := 0; i < 2; i++ {
		if i > 0 {
			resp = env.call(t, "chatSelectTopic", "Buying & Selling")
			require.True(t, resp.Success, resp.Error)
			waitIdle(t, env)
		}
		resp = env.call(t, "chatSelectQuestion", "How do I schedule a private property viewing?")
		require.True(t, resp.Success, resp.Error)
		snap = waitIdle(t, env)
		assert.Equal(t, chat.StateCategories, snap.State)
	}
	assert.True(t, snap.HandoffAvailable)

	resp = env.call(t, "chatTalkToHuman")
	require.True(t, resp.Success, resp.Error)
	snap = waitIdle(t, env)
	assert.Equal(t, chat.StateHumanMode, snap.State)

	before := len(snap.Transcript)
	resp = env.call(t, "chatSendMessage", "   ")
	assert.Equal(t, "Message is empty", resp.Error)
	snap = waitIdle(t, env)
	assert.Len(t, snap.Transcript, before)

	resp = env.call(t, "chatSendMessage", "Is the villa still available?")
	require.True(t, resp.Success, resp.Error)
	snap = waitIdle(t, env)
	assert.Len(t, snap.Transcript, before+2)

	resp = env.call(t, "chatReset")
	require.True(t, resp.Success, resp.Error)
	snap = decode[chat.Snapshot](t, resp.Data)
	assert.Equal(t, chat.StateCategories, snap.State)
	assert.Len(t, snap.Transcript, 1)

	resp = env.call(t, "chatClose")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, chat.StateClosed, decode[chat.Snapshot](t, resp.Data).State)
}

func TestJsonApiHandler_ChatAndSavedTrackSessionIdleness(t *testing.T) {
	const idleTTL = 300 * time.Millisecond
	env := setupTestRouterWithIdleTTL(t, idleTTL)
	env.sessions.OnEvict(func(ctx context.Context, visitorID string) {
		require.NoError(t, env.chat.Drop(ctx, visitorID))
		require.NoError(t, env.saved.Forget(ctx, visitorID))
	})
	ctx := context.Background()

	// A visitor who only chats and saves still gets a session
	require.True(t, env.call(t, "chatOpen").Success)
	require.True(t, env.call(t, "toggleSaved", "1").Success)
	assert.Equal(t, 1, env.sessions.Len())

	// Chat activity keeps the session alive past the idle TTL
	for i := 0; i < 4; i++ {
		time.Sleep(idleTTL / 3)
		resp := env.call(t, "chatState")
		require.True(t, resp.Success, resp.Error)
		assert.Empty(t, env.sessions.EvictIdle(ctx))
	}
	snap := decode[chat.Snapshot](t, env.call(t, "chatState").Data)
	assert.Len(t, snap.Transcript, 1)

	time.Sleep(idleTTL + 50*time.Millisecond)
	assert.Equal(t, []string{testVisitor}, env.sessions.EvictIdle(ctx))
	assert.Equal(t, 0, env.sessions.Len())

	ids, err := env.saved.List(ctx, testVisitor)
	require.NoError(t, err)
	assert.Empty(t, ids)
	fresh, err := env.chat.State(ctx, testVisitor)
	require.NoError(t, err)
	assert.Equal(t, chat.StateClosed, fresh.State)
	assert.Empty(t, fresh.Transcript)
}
