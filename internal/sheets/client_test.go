package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRequest is one call seen by the fake Google API server.
type recordedRequest struct {
	Query  map[string][]string
	Body   map[string]any
	Method string
	Path   string
	Auth   string
}

// fakeGoogle serves just enough of the Sheets and Drive APIs for the client.
type fakeGoogle struct {
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	requests []recordedRequest
	mu       sync.Mutex
}

func newFakeGoogle(t *testing.T) (*fakeGoogle, *Client) {
	t.Helper()
	fake := &fakeGoogle{handlers: make(map[string]func(http.ResponseWriter, *http.Request))}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)

	config := DefaultConfig()
	config.SheetsEndpoint = srv.URL + "/"
	config.DriveEndpoint = srv.URL + "/drive/v3/"
	config.Source = "test"
	config.RetryAttempts = 3
	config.RetryDelay = time.Millisecond

	client, err := NewClient(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return fake, client
}

// on registers a handler for "METHOD /decoded/path".
func (f *fakeGoogle) on(route string, handler func(w http.ResponseWriter, r *http.Request)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[route] = handler
}

func (f *fakeGoogle) onJSON(route string, status int, body string) {
	f.on(route, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	req := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Auth:   r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, ok := f.handlers[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"error":{"code":404,"message":"no route for %s %s"}}`, r.Method, r.URL.Path)
		return
	}
	handler(w, r)
}

func (f *fakeGoogle) calls(route string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedRequest
	for _, req := range f.requests {
		if req.Method+" "+req.Path == route {
			out = append(out, req)
		}
	}
	return out
}

func apiError(code int, message string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":%q}}`, code, message)
}

func testRecord() *model.TransactionRecord {
	return model.NewTransaction("rec-1", model.TransactionInput{
		Type:     model.TypeExpense,
		Amount:   decimal.RequireFromString("12.50"),
		Category: "Food",
		Account:  "Cash",
		For:      "Lunch",
		Date:     "2024-03-15T12:30",
		Note:     "[EUR] sandwich",
		Tags:     []string{"work", "trip"},
	}, time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC))
}

func TestClient_AppendRow(t *testing.T) {
	fake, client := newFakeGoogle(t)
	route := "POST /v4/spreadsheets/sheet-1/values/Transactions!A:L:append"
	fake.onJSON(route, 200, `{"updates":{"updatedRange":"Transactions!A7:L7"}}`)

	row, err := client.AppendRow(context.Background(), "tok", "sheet-1", testRecord())
	require.NoError(t, err)
	assert.Equal(t, 7, row)

	calls := fake.calls(route)
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "Bearer tok", call.Auth)
	assert.Equal(t, "USER_ENTERED", call.Query["valueInputOption"][0])
	assert.Equal(t, "INSERT_ROWS", call.Query["insertDataOption"][0])

	values := call.Body["values"].([]any)
	require.Len(t, values, 1)
	assert.Equal(t, []any{
		"2024-03-15T12:30", "expense", "12.5", "Food", "work, trip", "sandwich",
		"2024-03-15T11:30:00Z", "test", "EUR", "Cash", "Lunch", "rec-1",
	}, values[0])
}

func TestClient_AppendRow_UnknownRange(t *testing.T) {
	fake, client := newFakeGoogle(t)
	fake.onJSON("POST /v4/spreadsheets/sheet-1/values/Transactions!A:L:append", 200, `{}`)

	row, err := client.AppendRow(context.Background(), "tok", "sheet-1", testRecord())
	require.NoError(t, err)
	assert.Zero(t, row)
}

func TestClient_AppendRow_IsNotRetried(t *testing.T) {
	fake, client := newFakeGoogle(t)
	route := "POST /v4/spreadsheets/sheet-1/values/Transactions!A:L:append"
	fake.onJSON(route, 503, apiError(503, "backend unavailable"))

	_, err := client.AppendRow(context.Background(), "tok", "sheet-1", testRecord())
	require.Error(t, err)
	assert.True(t, ClassifyError(err).Retryable)
	assert.Len(t, fake.calls(route), 1)
}

func TestClient_DeleteRow(t *testing.T) {
	fake, client := newFakeGoogle(t)
	route := "POST /v4/spreadsheets/sheet-1:batchUpdate"
	fake.onJSON(route, 200, `{"spreadsheetId":"sheet-1"}`)

	t.Run("refuses header row", func(t *testing.T) {
		for _, row := range []int{1, 0, -3} {
			err := client.DeleteRow(context.Background(), "tok", "sheet-1", 0, row)
			assert.ErrorIs(t, err, common.ErrHeaderRow)
		}
		assert.Empty(t, fake.calls(route))
	})

	t.Run("sends tab id zero", func(t *testing.T) {
		require.NoError(t, client.DeleteRow(context.Background(), "tok", "sheet-1", 0, 5))

		calls := fake.calls(route)
		require.Len(t, calls, 1)
		requests := calls[0].Body["requests"].([]any)
		rng := requests[0].(map[string]any)["deleteDimension"].(map[string]any)["range"].(map[string]any)
		assert.Equal(t, float64(0), rng["sheetId"])
		assert.Equal(t, "ROWS", rng["dimension"])
		assert.Equal(t, float64(4), rng["startIndex"])
		assert.Equal(t, float64(5), rng["endIndex"])
	})
}

func TestClient_GetTabID(t *testing.T) {
	fake, client := newFakeGoogle(t)
	fake.onJSON("GET /v4/spreadsheets/sheet-1", 200,
		`{"sheets":[{"properties":{"sheetId":0,"title":"Transactions"}},{"properties":{"sheetId":42,"title":"Account"}}]}`)
	fake.onJSON("GET /v4/spreadsheets/sheet-2", 200,
		`{"sheets":[{"properties":{"sheetId":42,"title":"Account"}}]}`)

	tabID, err := client.GetTabID(context.Background(), "tok", "sheet-1")
	require.NoError(t, err)
	require.NotNil(t, tabID)
	assert.Equal(t, int64(0), *tabID)

	tabID, err = client.GetTabID(context.Background(), "tok", "sheet-2")
	require.NoError(t, err)
	assert.Nil(t, tabID)
}

func TestClient_ReadsRetryTransientFailures(t *testing.T) {
	fake, client := newFakeGoogle(t)
	route := "GET /v4/spreadsheets/sheet-1"
	attempts := 0
	fake.on(route, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, apiError(503, "try again"))
			return
		}
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"sheetId":7,"title":"Transactions"}}]}`)
	})

	tabID, err := client.GetTabID(context.Background(), "tok", "sheet-1")
	require.NoError(t, err)
	require.NotNil(t, tabID)
	assert.Equal(t, int64(7), *tabID)
	assert.Equal(t, 2, attempts)
}

func TestClient_ReadsDoNotRetryAuthFailures(t *testing.T) {
	fake, client := newFakeGoogle(t)
	route := "GET /v4/spreadsheets/sheet-1"
	fake.onJSON(route, 401, apiError(401, "Invalid Credentials"))

	_, err := client.GetTabID(context.Background(), "tok", "sheet-1")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Len(t, fake.calls(route), 1)
}

func TestClient_ReadTransactionIDs(t *testing.T) {
	fake, client := newFakeGoogle(t)
	fake.onJSON("GET /v4/spreadsheets/sheet-1/values/Transactions!L2:L", 200,
		`{"range":"Transactions!L2:L5","values":[["a"],[],["b"],["a"]]}`)

	ids, err := client.ReadTransactionIDs(context.Background(), "tok", "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 4}, ids)
}

func TestClient_ReadConfigBlock(t *testing.T) {
	accountsRoute := "GET /v4/spreadsheets/sheet-1/values/Account!A2:A"
	categoriesRoute := "GET /v4/spreadsheets/sheet-1/values/Category!A2:B"

	t.Run("both sections", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON(accountsRoute, 200, `{"values":[["Cash"],[" cash "],["Bank"],[""]]}`)
		fake.onJSON(categoriesRoute, 200,
			`{"values":[["Expense","Food"],["expense","food"],["income","Salary"],["loan","Nope"],["transfer"]]}`)

		config, err := client.ReadConfigBlock(context.Background(), "tok", "sheet-1")
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, []string{"Cash", "Bank"}, config.Accounts)
		require.NotNil(t, config.Categories)
		assert.Equal(t, []string{"Food"}, config.Categories.Expense)
		assert.Equal(t, []string{"Salary"}, config.Categories.Income)
		assert.Empty(t, config.Categories.Transfer)
	})

	t.Run("missing tab counts as absent", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON(accountsRoute, 200, `{"values":[["Cash"]]}`)
		fake.onJSON(categoriesRoute, 400, apiError(400, "Unable to parse range: Category!A2:B"))

		config, err := client.ReadConfigBlock(context.Background(), "tok", "sheet-1")
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, []string{"Cash"}, config.Accounts)
		assert.Nil(t, config.Categories)
	})

	t.Run("nothing configured", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON(accountsRoute, 200, `{}`)
		fake.onJSON(categoriesRoute, 200, `{}`)

		config, err := client.ReadConfigBlock(context.Background(), "tok", "sheet-1")
		require.NoError(t, err)
		assert.Nil(t, config)
	})

	t.Run("auth failure propagates", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON(accountsRoute, 401, apiError(401, "expired"))

		_, err := client.ReadConfigBlock(context.Background(), "tok", "sheet-1")
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
	})

	t.Run("deleted spreadsheet propagates", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON(accountsRoute, 404, apiError(404, "Requested entity was not found."))
		fake.onJSON(categoriesRoute, 404, apiError(404, "Requested entity was not found."))

		config, err := client.ReadConfigBlock(context.Background(), "tok", "sheet-1")
		require.Error(t, err)
		assert.Nil(t, config)
		verdict := ClassifyError(err)
		assert.Equal(t, http.StatusNotFound, verdict.Status)
		assert.Equal(t, MessageNotFound, verdict.Message)
	})
}

func TestClient_WriteConfigBlock(t *testing.T) {
	fake, client := newFakeGoogle(t)
	fake.onJSON("GET /v4/spreadsheets/sheet-1", 200,
		`{"sheets":[{"properties":{"sheetId":0,"title":"Transactions"}},{"properties":{"sheetId":3,"title":"Category"}}]}`)
	fake.onJSON("POST /v4/spreadsheets/sheet-1:batchUpdate", 200, `{}`)
	fake.onJSON("PUT /v4/spreadsheets/sheet-1/values/Account!A1:A1", 200, `{}`)
	fake.onJSON("PUT /v4/spreadsheets/sheet-1/values/Category!A1:B1", 200, `{}`)
	fake.onJSON("POST /v4/spreadsheets/sheet-1/values/Account!A2:A:clear", 200, `{}`)
	fake.onJSON("POST /v4/spreadsheets/sheet-1/values/Category!A2:B:clear", 200, `{}`)
	fake.onJSON("PUT /v4/spreadsheets/sheet-1/values/Account!A2:A3", 200, `{}`)
	fake.onJSON("PUT /v4/spreadsheets/sheet-1/values/Category!A2:B4", 200, `{}`)

	err := client.WriteConfigBlock(context.Background(), "tok", "sheet-1", model.SheetConfig{
		Accounts: []string{"Cash", " cash", "Bank"},
		Categories: &model.CategoryConfig{
			Expense:  []string{"Food", "FOOD"},
			Income:   []string{"Salary"},
			Transfer: []string{"Savings"},
		},
	})
	require.NoError(t, err)

	// Only the accounts tab was missing.
	adds := fake.calls("POST /v4/spreadsheets/sheet-1:batchUpdate")
	require.Len(t, adds, 1)
	assert.Contains(t, fmt.Sprint(adds[0].Body), "Account")

	accounts := fake.calls("PUT /v4/spreadsheets/sheet-1/values/Account!A2:A3")
	require.Len(t, accounts, 1)
	assert.Equal(t, "RAW", accounts[0].Query["valueInputOption"][0])
	assert.Equal(t, []any{[]any{"Cash"}, []any{"Bank"}}, accounts[0].Body["values"])

	categories := fake.calls("PUT /v4/spreadsheets/sheet-1/values/Category!A2:B4")
	require.Len(t, categories, 1)
	assert.Equal(t, []any{
		[]any{"expense", "Food"},
		[]any{"income", "Salary"},
		[]any{"transfer", "Savings"},
	}, categories[0].Body["values"])
}

func TestClient_WriteConfigBlock_Nothing(t *testing.T) {
	fake, client := newFakeGoogle(t)
	require.NoError(t, client.WriteConfigBlock(context.Background(), "tok", "sheet-1", model.SheetConfig{}))
	assert.Empty(t, fake.requests)
}

func TestClient_EnsureSheet(t *testing.T) {
	t.Run("reuses existing spreadsheet", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON("GET /drive/v3/files", 200, `{"files":[{"id":"existing","name":"SheetLog_DB"}]}`)
		fake.onJSON("PUT /v4/spreadsheets/existing/values/Transactions!A1:L1", 200, `{}`)
		fake.onJSON("GET /v4/spreadsheets/existing", 200,
			`{"sheets":[{"properties":{"sheetId":0,"title":"Transactions"}},{"properties":{"sheetId":1,"title":"Account"}},{"properties":{"sheetId":2,"title":"Category"}}]}`)
		fake.onJSON("PUT /v4/spreadsheets/existing/values/Account!A1:A1", 200, `{}`)
		fake.onJSON("PUT /v4/spreadsheets/existing/values/Category!A1:B1", 200, `{}`)

		id, err := client.EnsureSheet(context.Background(), "tok", "folder-1")
		require.NoError(t, err)
		assert.Equal(t, "existing", id)

		search := fake.calls("GET /drive/v3/files")
		require.Len(t, search, 1)
		q := search[0].Query["q"][0]
		assert.Contains(t, q, "name='SheetLog_DB'")
		assert.Contains(t, q, "trashed=false")
		assert.Contains(t, q, "'folder-1' in parents")

		header := fake.calls("PUT /v4/spreadsheets/existing/values/Transactions!A1:L1")
		require.Len(t, header, 1)
		assert.Equal(t, []any{[]any{
			"Date", "Type", "Amount", "Category", "Tags", "Note",
			"Timestamp", "Source", "Currency", "Account", "For", "Id",
		}}, header[0].Body["values"])
	})

	t.Run("creates and moves into folder", func(t *testing.T) {
		fake, client := newFakeGoogle(t)
		fake.onJSON("GET /drive/v3/files", 200, `{"files":[]}`)
		fake.onJSON("POST /v4/spreadsheets", 200, `{"spreadsheetId":"created","spreadsheetUrl":"https://example.test/created"}`)
		fake.onJSON("PUT /v4/spreadsheets/created/values/Transactions!A1:L1", 200, `{}`)
		fake.onJSON("PUT /v4/spreadsheets/created/values/Account!A1:A1", 200, `{}`)
		fake.onJSON("PUT /v4/spreadsheets/created/values/Category!A1:B1", 200, `{}`)
		fake.onJSON("GET /drive/v3/files/created", 200, `{"parents":["root"]}`)
		fake.onJSON("PATCH /drive/v3/files/created", 200, `{"id":"created","parents":["folder-1"]}`)

		id, err := client.EnsureSheet(context.Background(), "tok", "folder-1")
		require.NoError(t, err)
		assert.Equal(t, "created", id)

		created := fake.calls("POST /v4/spreadsheets")
		require.Len(t, created, 1)
		assert.Contains(t, fmt.Sprint(created[0].Body), "SheetLog_DB")

		moves := fake.calls("PATCH /drive/v3/files/created")
		require.Len(t, moves, 1)
		assert.Equal(t, "folder-1", moves[0].Query["addParents"][0])
		assert.Equal(t, "root", moves[0].Query["removeParents"][0])
	})
}

func TestParseRowFromRange(t *testing.T) {
	tests := []struct {
		rng  string
		want int
	}{
		{rng: "Transactions!A2:L2", want: 2},
		{rng: "Transactions!A153:L153", want: 153},
		{rng: "'My Tab'!A9:K9", want: 9},
		{rng: "Transactions!B2:L2", want: 0},
		{rng: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRowFromRange(tt.rng))
		})
	}
}

func TestLiftCurrency(t *testing.T) {
	tests := []struct {
		name         string
		note         string
		currency     string
		wantNote     string
		wantCurrency string
	}{
		{name: "prefix lifted", note: "[USD] coffee", wantNote: "coffee", wantCurrency: "USD"},
		{name: "explicit currency wins", note: "[USD] coffee", currency: "EUR", wantNote: "[USD] coffee", wantCurrency: "EUR"},
		{name: "lowercase is not a code", note: "[usd] coffee", wantNote: "[usd] coffee"},
		{name: "plain note", note: "coffee", wantNote: "coffee"},
		{name: "empty", note: "", currency: "JPY", wantNote: "", wantCurrency: "JPY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, currency := liftCurrency(tt.note, tt.currency)
			assert.Equal(t, tt.wantNote, note)
			assert.Equal(t, tt.wantCurrency, currency)
		})
	}
}
