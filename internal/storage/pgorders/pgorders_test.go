package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "orderbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/orderbox_test?sslmode=disable"

	// порт слушается раньше, чем postgres готов принимать запросы
	var st *Storage
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func TestPGOrders_DocumentsFlow(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	total := decimal.NewFromInt(50000)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &models.Order{
		ID:          "ord-100",
		Status:      models.OrderStatusConfirmed,
		TotalAmount: &total,
		Labels:      []string{"vip"},
		CreatedAt:   &created,
	}
	require.NoError(t, st.Put(ctx, docstore.Active, o))
	require.NoError(t, st.Put(ctx, docstore.Active, &models.Order{ID: "ord-101", Archived: true}))

	got, err := st.Get(ctx, docstore.Active, "ord-100")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusConfirmed, got.Status)
	require.True(t, got.TotalAmount.Equal(total))
	require.Equal(t, []string{"vip"}, got.Labels)

	_, err = st.Get(ctx, docstore.Deleted, "ord-100")
	require.ErrorIs(t, err, docstore.ErrNotFound)

	visible, err := st.List(ctx, docstore.Active, docstore.Query{ExcludeArchived: true})
	require.NoError(t, err)
	require.Len(t, visible, 1)

	deletedAt := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	retention := deletedAt.Add(models.RetentionPeriod)
	moved := got.Clone()
	moved.DeletedAt = &deletedAt
	moved.RetentionDate = &retention
	require.NoError(t, st.Move(ctx, docstore.Active, "ord-100", docstore.Deleted, moved))

	_, err = st.Get(ctx, docstore.Active, "ord-100")
	require.ErrorIs(t, err, docstore.ErrNotFound)
	inBin, err := st.Get(ctx, docstore.Deleted, "ord-100")
	require.NoError(t, err)
	require.True(t, inBin.RetentionDate.Equal(retention))

	// Move с несуществующим источником откатывает и запись в dst.
	err = st.Move(ctx, docstore.Active, "missing", docstore.Deleted, &models.Order{ID: "missing"})
	require.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = st.Get(ctx, docstore.Deleted, "missing")
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, st.Put(ctx, docstore.Deleted, &models.Order{ID: "rnd-1", OriginalID: "ord-7"}))
	legacy, err := st.List(ctx, docstore.Deleted, docstore.Query{OriginalOrDocID: "ord-7", Limit: 1})
	require.NoError(t, err)
	require.Len(t, legacy, 1)
	require.Equal(t, "rnd-1", legacy[0].ID)

	require.NoError(t, st.Delete(ctx, docstore.Deleted, "rnd-1"))
	require.ErrorIs(t, st.Delete(ctx, docstore.Deleted, "rnd-1"), docstore.ErrNotFound)
}

func TestPGOrders_ListSkipsUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	require.NoError(t, st.Put(ctx, docstore.Deleted, &models.Order{ID: "ord-1"}))
	_, err := st.db.Exec(ctx, `INSERT INTO deleted_orders (id, doc, updated_at) VALUES ('ord-0', '{"id":"ord-0","cartItems":"oops"}', now())`)
	require.NoError(t, err)

	all, err := st.List(ctx, docstore.Deleted, docstore.Query{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "ord-1", all[0].ID)

	_, err = st.Get(ctx, docstore.Deleted, "ord-0")
	require.Error(t, err)
}

func TestPGOrders_SyncTimestamps(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	ts, err := st.SyncTimestamps(ctx)
	require.NoError(t, err)
	require.Nil(t, ts.Products)
	require.Nil(t, ts.WebPhotos)

	require.NoError(t, st.SetSyncTimestamp(ctx, models.SyncTypeProducts, "2024-01-01T00:00:00Z"))
	require.NoError(t, st.SetSyncTimestamp(ctx, models.SyncTypeProducts, "2024-02-01T00:00:00Z"))

	ts, err = st.SyncTimestamps(ctx)
	require.NoError(t, err)
	require.NotNil(t, ts.Products)
	require.Equal(t, "2024-02-01T00:00:00Z", *ts.Products)
	require.Nil(t, ts.WebPhotos)
}
