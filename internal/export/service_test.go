package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

type listOnlyRepo struct {
	invs     []*entity.Invoice
	from, to *time.Time
}

func (r *listOnlyRepo) Create(context.Context, *entity.Invoice) error { return nil }
func (r *listOnlyRepo) Get(context.Context, uuid.UUID) (*entity.Invoice, error) {
	return nil, nil
}
func (r *listOnlyRepo) List(_ context.Context, from, to *time.Time) ([]*entity.Invoice, error) {
	r.from, r.to = from, to
	return r.invs, nil
}
func (r *listOnlyRepo) ListWithText(context.Context) ([]*entity.Invoice, error) { return nil, nil }
func (r *listOnlyRepo) Update(context.Context, *entity.Invoice) error            { return nil }
func (r *listOnlyRepo) Delete(context.Context, uuid.UUID) error                  { return nil }
func (r *listOnlyRepo) DeleteByFileURL(context.Context, string) (int64, error)   { return 0, nil }

func TestExportInvoicesXLSX(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	repo := &listOnlyRepo{invs: []*entity.Invoice{
		{
			InvoiceNumber: "A-1",
			InvoiceDate:   &d,
			Vendor:        entity.Party{Name: "Acme"},
			TotalAmount:   450,
			Currency:      "USD",
			LineItems: []entity.LineItem{
				entity.NewLineItem("Widget", 2, 100),
				entity.NewLineItem("Gadget", 1, 250),
			},
		},
		{InvoiceNumber: "B-2", Vendor: entity.Party{Name: "Globex"}, TotalAmount: 10, Currency: "EUR"},
	}}
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC) }

	from := time.Date(2024, 1, 1, 13, 45, 0, 0, time.UTC)
	raw, err := svc.ExportInvoicesXLSX(context.Background(), &from, nil)
	require.NoError(t, err)

	require.NotNil(t, repo.from)
	require.NotNil(t, repo.to)
	assert.Equal(t, "2024-01-01T00:00:00Z", repo.from.Format(time.RFC3339))
	assert.Equal(t, "2024-06-30T00:00:00Z", repo.to.Format(time.RFC3339))

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{InvoicesSheet, LineItemsSheet}, f.GetSheetList())

	rows, err := f.GetRows(InvoicesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "A-1", rows[1][0])
	assert.Equal(t, "2024-03-05", rows[1][1])
	assert.Equal(t, "Acme", rows[1][3])
	assert.Equal(t, "450", rows[1][6])
	assert.Equal(t, "", rows[2][1])

	items, err := f.GetRows(LineItemsSheet)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A-1", "Widget", "2", "100", "200"}, items[1])
	assert.Equal(t, []string{"A-1", "Gadget", "1", "250", "250"}, items[2])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
