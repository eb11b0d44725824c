package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
	"google.golang.org/api/googleapi"
)

// MockClient is an in-memory SheetClient for testing. Each spreadsheet is a
// list of record ids where index 0 stands for the header row.
type MockClient struct {
	// Hooks run before the corresponding call and may return an error to fail it.
	AppendFunc      func(ctx context.Context, record *model.TransactionRecord) error
	DeleteFunc      func(ctx context.Context, tabID int64, row int) error
	GetTabIDFunc    func(ctx context.Context) error
	ReadIDsFunc     func(ctx context.Context) error
	ReadConfigFunc  func(ctx context.Context) error
	WriteConfigFunc func(ctx context.Context, config model.SheetConfig) error

	sheets         map[string]*mockSheet
	AppendCalls    []string
	DeleteCalls    []DeleteCall
	WriteCalls     []model.SheetConfig
	GetTabIDCalls  int
	TabID          int64
	SkipRowInReply bool // AppendRow reports row 0, as when the API omits the range
	mu             sync.Mutex
}

// DeleteCall represents a single call to DeleteRow.
type DeleteCall struct {
	SheetID string
	TabID   int64
	Row     int
}

type mockSheet struct {
	config *model.SheetConfig
	rows   []string
}

var _ service.SheetClient = (*MockClient)(nil)

// NewMockClient creates a mock client whose transactions tab has id 0.
func NewMockClient() *MockClient {
	return &MockClient{sheets: make(map[string]*mockSheet)}
}

func (m *MockClient) sheet(sheetID string) *mockSheet {
	s, ok := m.sheets[sheetID]
	if !ok {
		s = &mockSheet{rows: []string{"header"}}
		m.sheets[sheetID] = s
	}
	return s
}

// EnsureSheet implements service.SheetClient.
func (m *MockClient) EnsureSheet(_ context.Context, _, folderID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "mock-sheet"
	if folderID != "" {
		id += "-" + folderID
	}
	m.sheet(id)
	return id, nil
}

// GetTabID implements service.SheetClient.
func (m *MockClient) GetTabID(ctx context.Context, _, _ string) (*int64, error) {
	m.mu.Lock()
	m.GetTabIDCalls++
	hook := m.GetTabIDFunc
	tabID := m.TabID
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return &tabID, nil
}

// AppendRow implements service.SheetClient.
func (m *MockClient) AppendRow(ctx context.Context, _, sheetID string, record *model.TransactionRecord) (int, error) {
	m.mu.Lock()
	hook := m.AppendFunc
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, record); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, record.ID)
	s := m.sheet(sheetID)
	s.rows = append(s.rows, record.ID)
	if m.SkipRowInReply {
		return 0, nil
	}
	return len(s.rows), nil
}

// DeleteRow implements service.SheetClient.
func (m *MockClient) DeleteRow(ctx context.Context, _, sheetID string, tabID int64, row int) error {
	if row <= 1 {
		return fmt.Errorf("%w: row %d", common.ErrHeaderRow, row)
	}

	m.mu.Lock()
	hook := m.DeleteFunc
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, tabID, row); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{SheetID: sheetID, TabID: tabID, Row: row})
	s := m.sheet(sheetID)
	if row > len(s.rows) {
		return &googleapi.Error{Code: 400, Message: "Invalid requests[0].deleteDimension: range out of bounds"}
	}
	s.rows = append(s.rows[:row-1], s.rows[row:]...)
	return nil
}

// ReadTransactionIDs implements service.SheetClient.
func (m *MockClient) ReadTransactionIDs(ctx context.Context, _, sheetID string) (map[string]int, error) {
	m.mu.Lock()
	hook := m.ReadIDsFunc
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]int)
	for i, id := range m.sheet(sheetID).rows[1:] {
		if _, seen := ids[id]; !seen {
			ids[id] = i + 2
		}
	}
	return ids, nil
}

// ReadConfigBlock implements service.SheetClient.
func (m *MockClient) ReadConfigBlock(ctx context.Context, _, sheetID string) (*model.SheetConfig, error) {
	m.mu.Lock()
	hook := m.ReadConfigFunc
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config := m.sheet(sheetID).config
	if config == nil {
		return nil, nil
	}
	out := cloneSheetConfig(*config)
	return &out, nil
}

// WriteConfigBlock implements service.SheetClient.
func (m *MockClient) WriteConfigBlock(ctx context.Context, _, sheetID string, config model.SheetConfig) error {
	m.mu.Lock()
	hook := m.WriteConfigFunc
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, config); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCalls = append(m.WriteCalls, cloneSheetConfig(config))
	s := m.sheet(sheetID)
	next := model.SheetConfig{}
	if s.config != nil {
		next = *s.config
	}
	if config.Accounts != nil {
		next.Accounts = model.NormalizeStringList(config.Accounts)
	}
	if config.Categories != nil {
		categories := config.Categories.Normalize()
		next.Categories = &categories
	}
	s.config = &next
	return nil
}

// SetConfig seeds the config block of a spreadsheet.
func (m *MockClient) SetConfig(sheetID string, config model.SheetConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := cloneSheetConfig(config)
	m.sheet(sheetID).config = &c
}

// SeedRows appends record ids to a spreadsheet as if earlier passes had synced them.
func (m *MockClient) SeedRows(sheetID string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sheet(sheetID)
	s.rows = append(s.rows, ids...)
}

// Rows returns the record ids in a spreadsheet, header excluded, in row order.
func (m *MockClient) Rows(sheetID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.sheet(sheetID).rows[1:]
	out := make([]string, len(rows))
	copy(out, rows)
	return out
}

// GetAppendCalls returns a copy of the appended record ids.
func (m *MockClient) GetAppendCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]string, len(m.AppendCalls))
	copy(calls, m.AppendCalls)
	return calls
}

// GetDeleteCalls returns a copy of all delete calls.
func (m *MockClient) GetDeleteCalls() []DeleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]DeleteCall, len(m.DeleteCalls))
	copy(calls, m.DeleteCalls)
	return calls
}

// GetWriteCalls returns a copy of all config block writes.
func (m *MockClient) GetWriteCalls() []model.SheetConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]model.SheetConfig, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

func cloneSheetConfig(c model.SheetConfig) model.SheetConfig {
	out := model.SheetConfig{}
	if c.Accounts != nil {
		out.Accounts = append([]string{}, c.Accounts...)
	}
	if c.Categories != nil {
		categories := c.Categories.Clone()
		out.Categories = &categories
	}
	return out
}
