package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
	"github.com/dininghall-ai/menu-search/internal/observability/metrics"
)

type Router struct {
	chat     ports.ChatService
	search   ports.MenuSearchService
	menus    ports.MenuRepository
	profiles ports.ProfileRepository
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	service  string
	topK     int
}

func NewRouter(
	chat ports.ChatService,
	search ports.MenuSearchService,
	menus ports.MenuRepository,
	profiles ports.ProfileRepository,
	queue ports.MessageQueue,
	httpMetrics *metrics.HTTPServerMetrics,
	service string,
	topK int,
) *Router {
	if topK <= 0 {
		topK = 10
	}
	return &Router{
		chat:     chat,
		search:   search,
		menus:    menus,
		profiles: profiles,
		queue:    queue,
		metrics:  httpMetrics,
		service:  service,
		topK:     topK,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatStream)
	mux.HandleFunc("/v1/search", rt.searchRanked)
	mux.HandleFunc("/v1/food/search", rt.searchFood)
	mux.HandleFunc("/v1/food/options", rt.filterOptions)
	mux.HandleFunc("/v1/users/", rt.userSubroutes)
	mux.HandleFunc("/v1/admin/embeddings/backfill", rt.publishBackfill)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type manualFiltersPayload struct {
	DiningHalls []string `json:"dining_halls"`
	Meals       []string `json:"meals"`
}

type chatRequestPayload struct {
	Query    string                `json:"query"`
	Messages []chatMessagePayload  `json:"messages"`
	UserID   string                `json:"user_id"`
	Filters  *manualFiltersPayload `json:"filters"`
}

// chatStream runs retrieval and streams the answer as server-sent events.
func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	query, history := extractQueryAndHistory(req.Messages)
	if query == "" {
		query = strings.TrimSpace(req.Query)
	}
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	searchReq := domain.SearchRequest{
		Query:  query,
		UserID: strings.TrimSpace(req.UserID),
		Limit:  rt.topK,
	}
	if req.Filters != nil {
		searchReq.Manual = domain.ManualFilters{
			DiningHalls: req.Filters.DiningHalls,
			Meals:       req.Filters.Meals,
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	streamErr := rt.chat.StreamAnswer(r.Context(), searchReq, history, func(chunk string) error {
		return writeSSEChunk(w, flusher, chunk)
	})
	if rt.metrics != nil {
		rt.metrics.RecordAnswerStream(rt.service, time.Since(start), streamErr)
	}
	if streamErr != nil {
		// Headers are gone; surface the failure inside the stream.
		_ = writeSSEChunk(w, flusher, "I encountered an error generating a response: "+streamErr.Error())
	}
	writeSSEDone(w, flusher)
}

// searchRanked runs the full hybrid pipeline and returns the ranked items
// without answer synthesis.
func (rt *Router) searchRanked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query   string                `json:"query"`
		UserID  string                `json:"user_id"`
		Filters *manualFiltersPayload `json:"filters"`
		Limit   int                   `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	searchReq := domain.SearchRequest{
		Query:  strings.TrimSpace(req.Query),
		UserID: strings.TrimSpace(req.UserID),
		Limit:  req.Limit,
	}
	if searchReq.Limit <= 0 {
		searchReq.Limit = rt.topK
	}
	if req.Filters != nil {
		searchReq.Manual = domain.ManualFilters{
			DiningHalls: req.Filters.DiningHalls,
			Meals:       req.Filters.Meals,
		}
	}

	start := time.Now()
	items, err := rt.search.Search(r.Context(), searchReq)
	if rt.metrics != nil {
		rt.metrics.RecordSearchDuration(rt.service, "/v1/search", time.Since(start))
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// searchFood is the structured browse endpoint: no model calls, only the
// deterministic filter path.
func (rt *Router) searchFood(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	filters := domain.FilterSet{
		ItemName:          strings.TrimSpace(q.Get("q")),
		RequiredDiets:     domain.NormalizeDiets(q["diets"]),
		ExcludedAllergens: q["allergies"],
	}
	if hall := strings.TrimSpace(q.Get("dining_hall")); hall != "" {
		filters.DiningHalls = []string{capitalize(hall)}
	}
	if meal := strings.TrimSpace(q.Get("meal")); meal != "" {
		filters.Meals = []string{meal}
	}
	if v, err := strconv.ParseFloat(q.Get("min_calories"), 64); err == nil {
		filters.SetBound(domain.BoundMinCalories, v)
	}
	if v, err := strconv.ParseFloat(q.Get("max_calories"), 64); err == nil {
		filters.SetBound(domain.BoundMaxCalories, v)
	}

	limit := 50
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	date := time.Now()
	if v, err := time.Parse("2006-01-02", q.Get("date")); err == nil {
		date = v
	}

	items, err := rt.menus.ListForDate(r.Context(), filters, date, ports.OrderHallThenName, limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) filterOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"dining_halls": domain.KnownDiningHalls,
		"meals":        domain.KnownMealPeriods,
		"diets":        {"Vegan", "Vegetarian", "Halal", "Kosher", "Gluten-Free", "Plant Based"},
	})
}

// userSubroutes dispatches /v1/users/{user_id}/(profile|daily-status|diet-history).
func (rt *Router) userSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	userID, action := parts[0], parts[1]

	switch {
	case action == "profile" && r.Method == http.MethodGet:
		rt.getProfile(w, r, userID)
	case action == "daily-status" && r.Method == http.MethodGet:
		rt.getDailyStatus(w, r, userID)
	case action == "diet-history" && r.Method == http.MethodGet:
		rt.getDietHistory(w, r, userID)
	case action == "diet-history" && r.Method == http.MethodPost:
		rt.logDietEntry(w, r, userID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := rt.profiles.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) getDailyStatus(w http.ResponseWriter, r *http.Request, userID string) {
	targets, err := rt.profiles.GoalTargets(r.Context(), userID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	entries, err := rt.profiles.ListDietHistory(r.Context(), userID, time.Now())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, domain.StatusFor(entries, targets.Calories, targets.ProteinG))
}

func (rt *Router) getDietHistory(w http.ResponseWriter, r *http.Request, userID string) {
	day := time.Now()
	if v, err := time.Parse("2006-01-02", r.URL.Query().Get("date")); err == nil {
		day = v
	}
	entries, err := rt.profiles.ListDietHistory(r.Context(), userID, day)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []domain.DietEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) logDietEntry(w http.ResponseWriter, r *http.Request, userID string) {
	var entry domain.DietEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(entry.Item) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item is required"})
		return
	}
	entry.UserID = userID
	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}

	if err := rt.profiles.AddDietHistory(r.Context(), &entry); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// publishBackfill enqueues every item missing an embedding for today so the
// worker picks them up without waiting for the next sweep.
func (rt *Router) publishBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue is not configured"})
		return
	}

	items, err := rt.menus.ListMissingEmbeddings(r.Context(), time.Now(), 500)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	published := 0
	for _, item := range items {
		if err := rt.queue.PublishEmbeddingPending(r.Context(), item.ID); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
				"error":     err.Error(),
				"published": published,
			})
			return
		}
		published++
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"published": published})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
