package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_RowsBehaveLikeASheet(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	newRecord := func(id string) *model.TransactionRecord {
		return model.NewTransaction(id, model.TransactionInput{
			Type:     model.TypeIncome,
			Amount:   decimal.NewFromInt(5),
			Category: "Gift",
			Date:     "2024-01-01T00:00",
		}, time.Now())
	}

	row, err := mock.AppendRow(ctx, "tok", "s", newRecord("a"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	row, err = mock.AppendRow(ctx, "tok", "s", newRecord("b"))
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	assert.ErrorIs(t, mock.DeleteRow(ctx, "tok", "s", 0, 1), common.ErrHeaderRow)
	require.NoError(t, mock.DeleteRow(ctx, "tok", "s", 0, 2))
	assert.Equal(t, []string{"b"}, mock.Rows("s"))

	ids, err := mock.ReadTransactionIDs(ctx, "tok", "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2}, ids)
}

func TestMockClient_ConfigBlock(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	config, err := mock.ReadConfigBlock(ctx, "tok", "s")
	require.NoError(t, err)
	assert.Nil(t, config)

	require.NoError(t, mock.WriteConfigBlock(ctx, "tok", "s", model.SheetConfig{Accounts: []string{"Cash", "cash"}}))

	config, err = mock.ReadConfigBlock(ctx, "tok", "s")
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, []string{"Cash"}, config.Accounts)
	assert.Nil(t, config.Categories)
	assert.Len(t, mock.GetWriteCalls(), 1)
}
