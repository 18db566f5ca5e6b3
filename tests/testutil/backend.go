package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie the fake backend hands out.
const SessionCookie = "tb_session"

// RecordedRequest is one request seen by the FakeBackend.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Body          map[string]any
	Authorization string
	HasSession    bool
}

type failure struct {
	method string
	prefix string
	code   int
}

// FakeBackend is an in-memory REST backend served by gin under /api. It
// stores records in their wire (snake_case) shape, records every request,
// and can be told to fail or stall selected routes.
type FakeBackend struct {
	Server *httptest.Server

	mu          sync.Mutex
	records     map[string][]map[string]any
	nextID      int
	requests    []RecordedRequest
	down        bool
	failures    []failure
	gates       map[string]chan struct{}
	currentUser map[string]any
	timer       map[string]any
	report      any
	now         func() time.Time
}

// Resources served with list/create/update/delete routes.
var crudResources = []string{"tasks", "projects", "time-entries", "automation-rules", "notes"}

// NewFakeBackend starts a FakeBackend and closes it when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &FakeBackend{
		records: map[string][]map[string]any{},
		nextID:  100,
		gates:   map[string]chan struct{}{},
		now:     time.Now,
	}

	r := gin.New()
	api := r.Group("/api", b.middleware)
	for _, res := range crudResources {
		api.GET("/"+res, b.list(res))
		api.POST("/"+res, b.create(res))
		api.PUT("/"+res+"/:id", b.update(res))
		api.DELETE("/"+res+"/:id", b.remove(res))
	}
	api.GET("/team-members", b.list("team-members"))
	api.GET("/notifications", b.list("notifications"))
	api.PUT("/notifications/:id/read", b.markRead)
	api.GET("/tasks/:id/comments", b.listComments)
	api.POST("/tasks/:id/comments", b.createComment)
	api.GET("/auth/me", b.me)
	api.POST("/auth/logout", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/timer/start", b.startTimer)
	api.POST("/timer/stop", b.stopTimer)
	api.GET("/timer/active", b.activeTimer)
	api.GET("/reports/time", b.reportHandler)

	b.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		b.mu.Lock()
		for key, gate := range b.gates {
			close(gate)
			delete(b.gates, key)
		}
		b.mu.Unlock()
		b.Server.Close()
	})
	return b
}

// URL returns the API base URL to configure a client with.
func (b *FakeBackend) URL() string {
	return b.Server.URL + "/api"
}

// SetDown makes every request fail with 503 while down is true.
func (b *FakeBackend) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// Fail makes requests whose method matches and whose path (below /api)
// starts with prefix answer with code, until ClearFailures.
func (b *FakeBackend) Fail(method, prefix string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, prefix: prefix, code: code})
}

// ClearFailures removes every Fail rule and brings the backend up.
func (b *FakeBackend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
	b.down = false
}

// Block stalls requests matching method and path prefix until the returned
// release func is called.
func (b *FakeBackend) Block(method, prefix string) (release func()) {
	gate := make(chan struct{})
	key := method + " " + prefix
	b.mu.Lock()
	b.gates[key] = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[key] == gate {
				delete(b.gates, key)
				close(gate)
			}
			b.mu.Unlock()
		})
	}
}

// SetNow overrides the backend clock used by the timer routes.
func (b *FakeBackend) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// SetCurrentUser sets the user returned by /auth/me. nil answers 401.
func (b *FakeBackend) SetCurrentUser(user map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentUser = user
}

// SetReport sets the body returned by /reports/time.
func (b *FakeBackend) SetReport(body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report = body
}

// Seed stores wire-shaped records for resource.
func (b *FakeBackend) Seed(resource string, records ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[resource] = append(b.records[resource], records...)
}

// Records returns a copy of the stored records for resource.
func (b *FakeBackend) Records(resource string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.records[resource]))
	for _, record := range b.records[resource] {
		copied := make(map[string]any, len(record))
		for k, v := range record {
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out
}

// Requests returns every request seen so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// CountRequests counts requests with the given method and exact path
// below /api.
func (b *FakeBackend) CountRequests(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *FakeBackend) middleware(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, "/api")

	var body map[string]any
	if c.Request.Body != nil {
		data, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(data))
		_ = json.Unmarshal(data, &body)
	}
	_, cookieErr := c.Request.Cookie(SessionCookie)

	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method:        c.Request.Method,
		Path:          path,
		Query:         c.Request.URL.RawQuery,
		Body:          body,
		Authorization: c.GetHeader("Authorization"),
		HasSession:    cookieErr == nil,
	})
	var gate chan struct{}
	for key, g := range b.gates {
		method, prefix, _ := strings.Cut(key, " ")
		if method == c.Request.Method && strings.HasPrefix(path, prefix) {
			gate = g
			break
		}
	}
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	down := b.down
	code := 0
	for _, f := range b.failures {
		if f.method == c.Request.Method && strings.HasPrefix(path, f.prefix) {
			code = f.code
		}
	}
	b.mu.Unlock()

	if down {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
		return
	}
	if code != 0 {
		c.AbortWithStatusJSON(code, gin.H{"error": http.StatusText(code)})
		return
	}
	if cookieErr != nil {
		http.SetCookie(c.Writer, &http.Cookie{Name: SessionCookie, Value: "s1", Path: "/"})
	}
	c.Next()
}

func bindBody(c *gin.Context) map[string]any {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		return map[string]any{}
	}
	return body
}

func (b *FakeBackend) allocID() string {
	b.nextID++
	return strconv.Itoa(b.nextID)
}

func (b *FakeBackend) list(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Records(resource))
	}
}

func (b *FakeBackend) create(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		record := bindBody(c)
		b.mu.Lock()
		record["id"] = b.allocID()
		if resource == "notes" {
			stamp := b.now().UTC().Format(time.RFC3339)
			record["created_at"] = stamp
			record["updated_at"] = stamp
		}
		b.records[resource] = append(b.records[resource], record)
		resp := gin.H{}
		for k, v := range record {
			resp[k] = v
		}
		b.mu.Unlock()
		c.JSON(http.StatusCreated, resp)
	}
}

func (b *FakeBackend) update(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch := bindBody(c)
		id := c.Param("id")

		b.mu.Lock()
		defer b.mu.Unlock()
		for _, record := range b.records[resource] {
			if record["id"] == id {
				for k, v := range patch {
					record[k] = v
				}
				c.JSON(http.StatusOK, gin.H(record))
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	}
}

func (b *FakeBackend) remove(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		b.mu.Lock()
		defer b.mu.Unlock()
		kept := b.records[resource][:0]
		found := false
		for _, record := range b.records[resource] {
			if record["id"] == id {
				found = true
				continue
			}
			kept = append(kept, record)
		}
		b.records[resource] = kept
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (b *FakeBackend) markRead(c *gin.Context) {
	id := c.Param("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, record := range b.records["notifications"] {
		if record["id"] == id {
			record["read"] = true
		}
	}
	c.Status(http.StatusNoContent)
}

func (b *FakeBackend) listComments(c *gin.Context) {
	taskID := c.Param("id")
	out := []map[string]any{}
	for _, record := range b.Records("comments") {
		if record["task_id"] == taskID {
			out = append(out, record)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *FakeBackend) createComment(c *gin.Context) {
	record := bindBody(c)
	b.mu.Lock()
	record["id"] = b.allocID()
	record["task_id"] = c.Param("id")
	record["created_at"] = b.now().UTC().Format(time.RFC3339)
	b.records["comments"] = append(b.records["comments"], record)
	b.mu.Unlock()
	c.JSON(http.StatusCreated, record)
}

func (b *FakeBackend) me(c *gin.Context) {
	b.mu.Lock()
	user := b.currentUser
	b.mu.Unlock()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (b *FakeBackend) startTimer(c *gin.Context) {
	body := bindBody(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "timer already running"})
		return
	}
	b.timer = map[string]any{
		"task_id":     body["task_id"],
		"project_id":  body["project_id"],
		"description": body["description"],
		"start_time":  b.now().UTC().Format(time.RFC3339),
	}
	c.JSON(http.StatusOK, b.timer)
}

func (b *FakeBackend) stopTimer(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no timer running"})
		return
	}
	started, _ := time.Parse(time.RFC3339, b.timer["start_time"].(string))
	now := b.now().UTC()
	hours := math.Round(now.Sub(started).Hours()*100) / 100
	entry := map[string]any{
		"id":          b.allocID(),
		"task_id":     b.timer["task_id"],
		"user_id":     "u1",
		"hours":       hours,
		"date":        now.Format("2006-01-02"),
		"description": b.timer["description"],
		"billable":    true,
	}
	b.records["time-entries"] = append(b.records["time-entries"], entry)
	b.timer = nil
	c.JSON(http.StatusOK, gin.H{"time_entry": entry})
}

func (b *FakeBackend) activeTimer(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no timer running"})
		return
	}
	c.JSON(http.StatusOK, b.timer)
}

func (b *FakeBackend) reportHandler(c *gin.Context) {
	b.mu.Lock()
	body := b.report
	b.mu.Unlock()
	if body == nil {
		body = []any{}
	}
	c.JSON(http.StatusOK, body)
}
