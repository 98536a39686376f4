package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"luxemap/estates/internal/api/middleware"
	"luxemap/estates/internal/auth"
	"luxemap/estates/internal/chat"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/filter"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/route"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
)

// IChatLoop is the part of chat.Loop the JSON API drives.
type IChatLoop interface {
	State(ctx context.Context, session string) (chat.Snapshot, error)
	Open(ctx context.Context, session string) (chat.Snapshot, error)
	Close(ctx context.Context, session string) (chat.Snapshot, error)
	Reset(ctx context.Context, session string) (chat.Snapshot, error)
	TalkToHuman(ctx context.Context, session string) (chat.Snapshot, error)
	SelectTopic(ctx context.Context, session, topic string) (chat.Snapshot, error)
	SelectQuestion(ctx context.Context, session, question string) (chat.Snapshot, error)
	SendMessage(ctx context.Context, session, text string) (chat.Snapshot, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler serves POST /v1/api. Every method acts on the caller's
// visitor session, identified by the X-SPA header.
type JsonApiHandler struct {
	cfg             *config.Config
	sessions        *site.Store
	chat            IChatLoop
	propertyService services.IPropertyService
	savedService    services.ISavedService
	enquiryService  services.IEnquiryService
	newsletter      services.INewsletterService
	validate        *validator.Validate
	methods         map[string]apiMethodFunc
}

func NewJsonApiHandler(
	cfg *config.Config,
	sessions *site.Store,
	chatLoop IChatLoop,
	propertyService services.IPropertyService,
	savedService services.ISavedService,
	enquiryService services.IEnquiryService,
	newsletter services.INewsletterService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:             cfg,
		sessions:        sessions,
		chat:            chatLoop,
		propertyService: propertyService,
		savedService:    savedService,
		enquiryService:  enquiryService,
		newsletter:      newsletter,
		validate:        validator.New(),
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                h.ping,
		"navigate":            h.navigate,
		"setScroll":           h.setScroll,
		"getSession":          h.getSession,
		"setFilters":          h.setFilters,
		"resetFilters":        h.resetFilters,
		"selectProperty":      h.selectProperty,
		"deselectProperty":    h.deselectProperty,
		"scrollPanel":         h.scrollPanel,
		"toggleSaved":         h.toggleSaved,
		"listSaved":           h.listSaved,
		"shareProperty":       h.shareProperty,
		"sendEnquiry":         h.sendEnquiry,
		"bookConsultation":    h.bookConsultation,
		"subscribeNewsletter": h.subscribeNewsletter,
		"listEnquiries":       h.listEnquiries,
		"chatOpen":            h.chatOpen,
		"chatClose":           h.chatClose,
		"chatState":           h.chatState,
		"chatSelectTopic":     h.chatSelectTopic,
		"chatSelectQuestion":  h.chatSelectQuestion,
		"chatTalkToHuman":     h.chatTalkToHuman,
		"chatSendMessage":     h.chatSendMessage,
		"chatReset":           h.chatReset,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod validates the staff token for admin-only methods.
// Visitor methods need no token.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	if !h.methodRequiresAdmin(method) {
		return nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		logging.Logger.Debugf("Token validation failed for method %s: %v", method, err)
		return NewApiError("Invalid or expired token")
	}
	if !claims.IsAdmin {
		logging.Logger.Debugf("Admin privileges required but not present for method %s", method)
		return NewApiError("Administrator privileges required")
	}

	c.Set(middleware.ContextKeyStaffEmail, claims.Email)
	c.Set(middleware.ContextKeyIsAdmin, true)
	return nil
}

func (h *JsonApiHandler) methodRequiresAdmin(method string) bool {
	switch method {
	case "listEnquiries":
		return true
	default:
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) session(c *gin.Context) *site.Session {
	return h.sessions.Session(middleware.VisitorID(c))
}

// visitorID resolves the caller and marks their session as seen. Chat and
// saved-set methods go through it so idle eviction tracks all activity.
func (h *JsonApiHandler) visitorID(c *gin.Context) string {
	return h.session(c).ID()
}

// scopeFor picks the filter scope of the view the visitor is looking at.
func scopeFor(r route.Route) filter.Scope {
	if r == route.Properties {
		return filter.ScopeListings
	}
	return filter.ScopeLanding
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects it to be a JSON array with at least one element,
// and unmarshals that first element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		// err.Error() can leak type details, keep the message generic.
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// parseOptionalSingleArgFromArray is parseRequiredSingleArgFromArray for
// methods whose only argument may be omitted. It reports whether one was given.
func (h *JsonApiHandler) parseOptionalSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) (bool, *ApiError) {
	if rawArgPayload == nil || string(rawArgPayload) == "null" || string(rawArgPayload) == "[]" {
		return false, nil
	}
	if apiErr := h.parseRequiredSingleArgFromArray(rawArgPayload, targetVarPtr); apiErr != nil {
		return false, apiErr
	}
	return true, nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

func (h *JsonApiHandler) navigate(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var fragment string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &fragment); apiErr != nil {
		return nil, apiErr
	}
	return h.session(c).Navigate(fragment), nil
}

func (h *JsonApiHandler) setScroll(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var offset float64
	if apiErr := h.parseRequiredSingleArgFromArray(args, &offset); apiErr != nil {
		return nil, apiErr
	}
	snap, err := h.session(c).SetScroll(offset)
	if err != nil {
		return nil, NewApiError("Scroll offset must not be negative")
	}
	return snap, nil
}

func (h *JsonApiHandler) getSession(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	snap := h.session(c).Snapshot()
	saved, err := h.savedService.List(c.Request.Context(), snap.VisitorID)
	if err != nil {
		logging.Logger.Errorf("Failed to list saved properties for %s: %v", snap.VisitorID, err)
		return nil, NewApiError("Failed to load saved properties")
	}
	return gin.H{"session": snap, "saved": saved}, nil
}

// filterResult is returned by setFilters and resetFilters.
type filterResult struct {
	Filters    models.FilterState `json:"filters"`
	Properties []models.Property  `json:"properties"`
	Count      int                `json:"count"`
}

func (h *JsonApiHandler) searchFor(c *gin.Context, snap site.Snapshot) (*filterResult, *ApiError) {
	props, err := h.propertyService.Search(c.Request.Context(), snap.Filters, scopeFor(snap.Route), services.SortNone)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilter) {
			return nil, NewApiError("Invalid filter: bedrooms must be a whole number")
		}
		logging.Logger.Errorf("Property search failed: %v", err)
		return nil, NewApiError("Failed to search properties")
	}
	return &filterResult{Filters: snap.Filters, Properties: props, Count: len(props)}, nil
}

func (h *JsonApiHandler) setFilters(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	f := models.DefaultFilterState()
	if apiErr := h.parseRequiredSingleArgFromArray(args, &f); apiErr != nil {
		return nil, apiErr
	}
	if err := h.validate.Struct(f); err != nil {
		return nil, NewApiError("Invalid filter: " + validationSummary(err))
	}
	if _, err := f.MinBeds(); err != nil {
		return nil, NewApiError("Invalid filter: bedrooms must be a whole number")
	}
	return h.searchFor(c, h.session(c).SetFilters(f))
}

func (h *JsonApiHandler) resetFilters(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.searchFor(c, h.session(c).ResetFilters())
}

func (h *JsonApiHandler) selectProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var id string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &id); apiErr != nil {
		return nil, apiErr
	}
	snap, err := h.session(c).Select(id)
	if err != nil {
		return nil, NewApiError("Property not found")
	}
	detail, err := h.propertyService.Detail(c.Request.Context(), id)
	if err != nil {
		logging.Logger.Errorf("Selected property %s has no detail: %v", id, err)
		return nil, NewApiError("Property not found")
	}
	return gin.H{"panel": snap.Panel, "detail": detail}, nil
}

func (h *JsonApiHandler) deselectProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reasonStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reasonStr); apiErr != nil {
		return nil, apiErr
	}
	reason, err := site.ParseDeselectReason(reasonStr)
	if err != nil {
		return nil, NewApiError("Invalid reason: expected close, backdrop or escape")
	}
	snap, err := h.session(c).Deselect(reason)
	if err != nil {
		return nil, NewApiError("No property is selected")
	}
	return gin.H{"panel": snap.Panel}, nil
}

func (h *JsonApiHandler) scrollPanel(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var offset float64
	if apiErr := h.parseRequiredSingleArgFromArray(args, &offset); apiErr != nil {
		return nil, apiErr
	}
	snap, err := h.session(c).ScrollPanel(offset)
	switch {
	case errors.Is(err, site.ErrNothingSelected):
		return nil, NewApiError("No property is selected")
	case errors.Is(err, site.ErrInvalidOffset):
		return nil, NewApiError("Scroll offset must not be negative")
	case err != nil:
		return nil, NewApiError(err.Error())
	}
	return gin.H{"panel": snap.Panel}, nil
}

func (h *JsonApiHandler) toggleSaved(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var id string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &id); apiErr != nil {
		return nil, apiErr
	}
	saved, err := h.savedService.Toggle(c.Request.Context(), h.visitorID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			return nil, NewApiError("Property not found")
		}
		logging.Logger.Errorf("Failed to toggle saved property %s: %v", id, err)
		return nil, NewApiError("Failed to update saved properties")
	}
	return gin.H{"propertyId": id, "saved": saved}, nil
}

func (h *JsonApiHandler) listSaved(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	ids, err := h.savedService.List(c.Request.Context(), h.visitorID(c))
	if err != nil {
		logging.Logger.Errorf("Failed to list saved properties: %v", err)
		return nil, NewApiError("Failed to load saved properties")
	}
	return gin.H{"propertyIds": ids}, nil
}

func (h *JsonApiHandler) shareProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var id string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &id); apiErr != nil {
		return nil, apiErr
	}
	text, err := h.propertyService.ShareText(c.Request.Context(), id)
	if err != nil {
		return nil, NewApiError("Property not found")
	}
	return gin.H{"text": text}, nil
}

// sendEnquiry submits the contact form. A rejected submission comes back as
// an error carrying the form's failure message.
func (h *JsonApiHandler) sendEnquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var req services.EnquiryRequest
	if apiErr := h.parseRequiredSingleArgFromArray(args, &req); apiErr != nil {
		return nil, apiErr
	}
	ack, err := h.enquiryService.Submit(c.Request.Context(), h.visitorID(c), req)
	if err != nil {
		logging.Logger.Warnf("Enquiry submission aborted: %v", err)
		return nil, NewApiError("Request cancelled")
	}
	if !ack.Success {
		return nil, NewApiError(ack.Message)
	}
	return ack, nil
}

// bookConsultation submits an agent card's consultation form. Failures are
// reported like sendEnquiry's.
func (h *JsonApiHandler) bookConsultation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var req services.ConsultationRequest
	if apiErr := h.parseRequiredSingleArgFromArray(args, &req); apiErr != nil {
		return nil, apiErr
	}
	ack, err := h.enquiryService.BookConsultation(c.Request.Context(), h.visitorID(c), req)
	if err != nil {
		logging.Logger.Warnf("Consultation booking aborted: %v", err)
		return nil, NewApiError("Request cancelled")
	}
	if !ack.Success {
		return nil, NewApiError(ack.Message)
	}
	return ack, nil
}

func (h *JsonApiHandler) subscribeNewsletter(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var addr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &addr); apiErr != nil {
		return nil, apiErr
	}
	ack, err := h.newsletter.Subscribe(c.Request.Context(), h.visitorID(c), addr)
	if err != nil {
		logging.Logger.Warnf("Newsletter signup aborted: %v", err)
		return nil, NewApiError("Request cancelled")
	}
	if !ack.Success {
		return nil, NewApiError(ack.Message)
	}
	return ack, nil
}

func (h *JsonApiHandler) listEnquiries(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var limit int64
	if _, apiErr := h.parseOptionalSingleArgFromArray(args, &limit); apiErr != nil {
		return nil, apiErr
	}
	enquiries, err := h.enquiryService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrStorageUnavailable) {
			return nil, NewApiError("Enquiries are not stored on this server")
		}
		logging.Logger.Errorf("Failed to list enquiries: %v", err)
		return nil, NewApiError("Failed to list enquiries")
	}
	return enquiries, nil
}

// --- Chat ---

// chatResult maps chat errors to visitor-facing messages.
func chatResult(snap chat.Snapshot, err error) (interface{}, *ApiError) {
	switch {
	case err == nil:
		return snap, nil
	case errors.Is(err, chat.ErrBusy):
		return nil, NewApiError("Please wait for the current reply")
	case errors.Is(err, chat.ErrClosed):
		return nil, NewApiError("Chat is closed")
	case errors.Is(err, chat.ErrUnknownTopic):
		return nil, NewApiError("Unknown topic")
	case errors.Is(err, chat.ErrUnknownQuestion):
		return nil, NewApiError("Unknown question")
	case errors.Is(err, chat.ErrHandoffUnavailable):
		return nil, NewApiError("Talking to a team member is not available yet")
	case errors.Is(err, chat.ErrEmptyMessage):
		return nil, NewApiError("Message is empty")
	case errors.Is(err, chat.ErrNotAllowed):
		return nil, NewApiError("Action not allowed right now")
	default:
		logging.Logger.Errorf("Chat request failed: %v", err)
		return nil, NewApiError("Chat is unavailable")
	}
}

func (h *JsonApiHandler) chatOpen(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return chatResult(h.chat.Open(c.Request.Context(), h.visitorID(c)))
}

func (h *JsonApiHandler) chatClose(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return chatResult(h.chat.Close(c.Request.Context(), h.visitorID(c)))
}

func (h *JsonApiHandler) chatState(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return chatResult(h.chat.State(c.Request.Context(), h.visitorID(c)))
}

func (h *JsonApiHandler) chatReset(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return chatResult(h.chat.Reset(c.Request.Context(), h.visitorID(c)))
}

func (h *JsonApiHandler) chatTalkToHuman(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return chatResult(h.chat.TalkToHuman(c.Request.Context(), h.visitorID(c)))
}

func (h *JsonApiHandler) chatSelectTopic(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var topic string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &topic); apiErr != nil {
		return nil, apiErr
	}
	return chatResult(h.chat.SelectTopic(c.Request.Context(), h.visitorID(c), topic))
}

func (h *JsonApiHandler) chatSelectQuestion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var question string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &question); apiErr != nil {
		return nil, apiErr
	}
	return chatResult(h.chat.SelectQuestion(c.Request.Context(), h.visitorID(c), question))
}

func (h *JsonApiHandler) chatSendMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var text string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &text); apiErr != nil {
		return nil, apiErr
	}
	return chatResult(h.chat.SendMessage(c.Request.Context(), h.visitorID(c), text))
}
