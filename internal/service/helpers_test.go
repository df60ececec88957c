package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/config"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/metrics"
	"github.com/timmy/shareledger/internal/repository"
	"github.com/timmy/shareledger/internal/storage"
)

const threePositions = `<?xml version="1.0" encoding="UTF-8"?>
<Positions>
  <InsertOne>
    <ClientCode>1001</ClientCode>
    <SecurityCode>ACME</SecurityCode>
    <ISIN>US0378331005</ISIN>
    <Quantity>150</Quantity>
    <TotalCost>12500.75</TotalCost>
    <PositionType>LONG</PositionType>
  </InsertOne>
  <InsertOne>
    <ClientCode>1002</ClientCode>
    <SecurityCode>GLOBX</SecurityCode>
    <ISIN>GB0002634946</ISIN>
    <Quantity>40</Quantity>
    <TotalCost>3300</TotalCost>
    <PositionType>SHORT</PositionType>
  </InsertOne>
  <InsertOne>
    <ClientCode>1003</ClientCode>
    <SecurityCode>INITECH</SecurityCode>
    <ISIN>DE0007164600</ISIN>
    <Quantity>7</Quantity>
    <TotalCost>99.5</TotalCost>
    <PositionType>long</PositionType>
  </InsertOne>
</Positions>`

var badQuantity = strings.Replace(threePositions, "<Quantity>40</Quantity>", "<Quantity>abc</Quantity>", 1)

type harness struct {
	storage   storage.ObjectStorage
	jobs      jobstore.Store
	positions *repository.PositionRepository
	ingest    *IngestService
	queue     *TaskQueue
	uploads   *UploadService
	metrics   *metrics.Metrics
}

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", ServiceName: "test"})
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        ":memory:",
		AutoMigrate: true,
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		storage:   store,
		jobs:      jobstore.NewMemoryStore(time.Hour),
		positions: repository.NewPositionRepository(db, 2),
		metrics:   metrics.New(),
	}
	h.ingest = NewIngestService(h.storage, h.positions, testLogger(), &IngestConfig{MaxBytes: 1 << 20})
	h.queue = NewTaskQueue(h.jobs, h.ingest, h.metrics, testLogger(), QueueConfig{Workers: workers})
	h.uploads = NewUploadService(h.storage, h.jobs, h.queue)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.queue.Stop(ctx)
	})
	return h
}

func (h *harness) submit(t *testing.T, name, body string) *domain.Job {
	t.Helper()
	job, err := h.uploads.Submit(context.Background(), name, strings.NewReader(body), int64(len(body)), "42")
	require.NoError(t, err)
	return job
}

func waitForState(t *testing.T, jobs jobstore.Store, id string, want domain.JobState) *domain.Job {
	t.Helper()
	var last *domain.Job
	require.Eventually(t, func() bool {
		job, err := jobs.Get(context.Background(), id)
		if err != nil {
			return false
		}
		last = job
		return job.State == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
	return last
}

// xmlWithClient builds a one-record document whose client code identifies it.
func xmlWithClient(code int) string {
	return fmt.Sprintf(`<Positions><InsertOne><ClientCode>%d</ClientCode><SecurityCode>S%d</SecurityCode><ISIN>US0378331005</ISIN><Quantity>1</Quantity><TotalCost>1.5</TotalCost><PositionType>LONG</PositionType></InsertOne></Positions>`, code, code)
}
