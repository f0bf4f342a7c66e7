package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

func sampleData() entity.InvoiceData {
	return entity.InvoiceData{
		InvoiceFieldSet: entity.InvoiceFieldSet{
			InvoiceNumber: "A-1",
			InvoiceDate:   "2024-01-15",
			DueDate:       "2024-02-14",
			VendorName:    "Acme",
			VendorAddress: "1 Road",
			TotalAmount:   99.5,
			Currency:      "USD",
		},
		LineItems:         []entity.LineItem{entity.NewLineItem("Widget", 1, 99.5)},
		ParsingConfidence: constants.ConfidenceFallback,
		ProcessingMethod:  constants.MethodFallback,
		LineItemSource:    constants.LineItemsFromPattern,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key([]byte("abc")), Key([]byte("abc")))
	assert.NotEqual(t, Key([]byte("abc")), Key([]byte("abd")))
	assert.Len(t, Key(nil), 64)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute, 2)
	defer c.Close()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Set(ctx, "k1", sampleData())
	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, sampleData(), got)

	c.Set(ctx, "k2", sampleData())
	c.Set(ctx, "k3", sampleData())
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok, "capacity evicts the oldest entry")
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(20*time.Millisecond, 0)
	defer c.Close()

	c.Set(ctx, "k", sampleData())
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedis_Hit(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	raw, err := json.Marshal(sampleData())
	require.NoError(t, err)

	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "invoice:abc")).
		Return(mock.Result(mock.RedisString(string(raw))))

	r := newRedis(client, RedisConfig{KeyPrefix: "invoice:"}, nil)
	got, ok := r.Get(context.Background(), "abc")
	require.True(t, ok)
	assert.Equal(t, sampleData(), got)
}

func TestRedis_MissAndError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)

	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "broken")).
		Return(mock.ErrorResult(errors.New("connection reset")))

	r := newRedis(client, RedisConfig{}, nil)
	_, ok := r.Get(context.Background(), "missing")
	assert.False(t, ok)
	_, ok = r.Get(context.Background(), "broken")
	assert.False(t, ok)
}

func TestRedis_SetUsesTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)

	client.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return len(cmd) == 5 && cmd[0] == "SET" && cmd[1] == "p:k" && cmd[3] == "EX" && cmd[4] == "600"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	r := newRedis(client, RedisConfig{TTL: 10 * time.Minute, KeyPrefix: "p:"}, nil)
	r.Set(context.Background(), "k", sampleData())
}
