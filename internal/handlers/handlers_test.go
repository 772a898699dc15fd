package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type testAPI struct {
	router   *chi.Mux
	accounts *memoryAccounts
	messages *messageRepo
	listings *listingRepo
	offers   *offerRepo
	images   *imageBucket
	service  *services.MessageService
}

func newTestAPI() *testAPI {
	accounts := newMemoryAccounts()
	profiles := profileRepo{accounts}
	messages := &messageRepo{}
	listings := newListingRepo()
	offers := newOfferRepo()
	images := &imageBucket{}
	userService := services.NewUserService(userRepo{accounts})
	profileService := services.NewProfileService(profiles, nil)
	messageService := services.NewMessageService(messages, profiles, nil)
	listingService := services.NewListingService(listings, profiles, images)
	offerService := services.NewOfferService(offers, listings, profiles, nil)
	savedService := services.NewSavedService(nil, listings)
	reportService := services.NewReportService(nil, listings, profiles)
	auth := RequireAuth(testSecret)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, profileService, testSecret)
	})
	router.Route("/profiles", func(r chi.Router) {
		ProfileRouter(r, profileService, auth)
	})
	router.Route("/listings", func(r chi.Router) {
		ListingRouter(r, listingService, offerService, savedService, reportService, auth)
	})
	router.Route("/offers", func(r chi.Router) {
		OfferRouter(r, offerService, auth)
	})
	MessageRouter(router, messageService, auth)

	return &testAPI{
		router:   router,
		accounts: accounts,
		messages: messages,
		listings: listings,
		offers:   offers,
		images:   images,
		service:  messageService,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, username string) AuthResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Email:           username + "@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
		Username:        username,
		Name:            "Test " + username,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI()

	rec := api.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Email:           "a@example.com",
		Password:        "password123",
		ConfirmPassword: "password124",
		Username:        "alice",
		Name:            "Alice",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched passwords: expected 400, got %d", rec.Code)
	}

	api.register(t, "alice")
	rec = api.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Email:           "other@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
		Username:        "alice",
		Name:            "Alice Again",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: expected 409, got %d", rec.Code)
	}
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI()
	registered := api.register(t, "alice")

	rec := api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ALICE@example.com", Password: "password123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login AuthResponse
	_ = json.NewDecoder(rec.Body).Decode(&login)

	rec = api.do(t, http.MethodGet, "/auth/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me types.Profile
	_ = json.NewDecoder(rec.Body).Decode(&me)
	if me.ID != registered.User.ID || me.Username != "alice" {
		t.Fatalf("unexpected profile %+v", me)
	}

	if rec := api.do(t, http.MethodGet, "/auth/me", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestBannedUserCannotLogin(t *testing.T) {
	api := newTestAPI()
	alice := api.register(t, "alice")
	_ = profileRepo{api.accounts}.SetBanned(context.Background(), alice.User.ID, true)

	rec := api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "password123"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestMessagingEndpoints(t *testing.T) {
	api := newTestAPI()
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	path := "/messages/" + bob.User.ID.String()
	if rec := api.do(t, http.MethodPost, path, "", SendMessageRequest{Content: "hi"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous send: expected 401, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, path, alice.Token, SendMessageRequest{Content: "   "}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank send: expected 422, got %d", rec.Code)
	}
	if len(api.messages.messages) != 0 {
		t.Fatalf("blank message reached the store")
	}
	if rec := api.do(t, http.MethodPost, "/messages/not-a-uuid", alice.Token, SendMessageRequest{Content: "hi"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, "/messages/"+uuid.NewString(), alice.Token, SendMessageRequest{Content: "hi"}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown receiver: expected 404, got %d", rec.Code)
	}

	rec := api.do(t, http.MethodPost, path, alice.Token, SendMessageRequest{Content: "Is it still available?"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/messages/"+alice.User.ID.String(), bob.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d", rec.Code)
	}
	var transcript []types.Message
	_ = json.NewDecoder(rec.Body).Decode(&transcript)
	if len(transcript) != 1 || transcript[0].SenderID != alice.User.ID {
		t.Fatalf("unexpected transcript %+v", transcript)
	}

	rec = api.do(t, http.MethodGet, "/conversations", bob.Token, nil)
	var summaries []types.ConversationSummary
	_ = json.NewDecoder(rec.Body).Decode(&summaries)
	if len(summaries) != 1 || summaries[0].CounterpartUsername != "alice" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
}

func TestProfileBanRequiresAdmin(t *testing.T) {
	api := newTestAPI()
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	path := "/profiles/" + bob.User.ID.String() + "/ban"
	if rec := api.do(t, http.MethodPost, path, alice.Token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin ban: expected 403, got %d", rec.Code)
	}

	api.accounts.mu.Lock()
	p := api.accounts.profiles[alice.User.ID]
	p.IsAdmin = true
	api.accounts.profiles[alice.User.ID] = p
	api.accounts.mu.Unlock()

	rec := api.do(t, http.MethodPost, path, alice.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin ban: expected 200, got %d", rec.Code)
	}
	var banned types.Profile
	_ = json.NewDecoder(rec.Body).Decode(&banned)
	if !banned.Banned {
		t.Fatalf("expected banned profile")
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, limit, offset, err := parsePagination(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if page != 3 || limit != maxLimit || offset != 2*maxLimit {
		t.Fatalf("unexpected pagination %d %d %d", page, limit, offset)
	}

	req = httptest.NewRequest(http.MethodGet, "/?page=0", nil)
	if _, _, _, err := parsePagination(req); err == nil {
		t.Fatalf("expected error for page 0")
	}
}
