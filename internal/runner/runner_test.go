package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketops/stock-harvester/internal/delivery"
	"github.com/marketops/stock-harvester/internal/harvest"
	"github.com/marketops/stock-harvester/internal/metrics"
	"github.com/marketops/stock-harvester/internal/sink/csvfile"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeQueue struct {
	ch chan harvest.QueueItem
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{ch: make(chan harvest.QueueItem, 8)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, item harvest.QueueItem) error {
	q.ch <- item
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (harvest.QueueItem, error) {
	select {
	case <-ctx.Done():
		return harvest.QueueItem{}, ctx.Err()
	case item := <-q.ch:
		return item, nil
	}
}

type statusUpdate struct {
	status   harvest.RunStatus
	errText  string
	counters harvest.RunCounters
}

type fakeRunStore struct {
	mu      sync.Mutex
	updates map[string][]statusUpdate
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{updates: make(map[string][]statusUpdate)}
}

func (s *fakeRunStore) CreateRun(ctx context.Context, run harvest.Run) error { return nil }

func (s *fakeRunStore) GetRun(ctx context.Context, runID string) (harvest.Run, error) {
	return harvest.Run{}, errors.New("not found")
}

func (s *fakeRunStore) UpdateRunStatus(ctx context.Context, runID string, status harvest.RunStatus, errText string, counters harvest.RunCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[runID] = append(s.updates[runID], statusUpdate{status, errText, counters})
	return nil
}

func (s *fakeRunStore) last(runID string) (statusUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ups := s.updates[runID]
	if len(ups) == 0 {
		return statusUpdate{}, false
	}
	return ups[len(ups)-1], true
}

type fakeDriver struct {
	rows    [][][]string
	heights []int

	rowCalls    int
	heightCalls int
	closed      bool
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error { return nil }
func (d *fakeDriver) WaitForRows(ctx context.Context) error          { return nil }

func (d *fakeDriver) RowCells(ctx context.Context) ([][]string, error) {
	idx := d.rowCalls
	if idx >= len(d.rows) {
		idx = len(d.rows) - 1
	}
	d.rowCalls++
	return d.rows[idx], nil
}

func (d *fakeDriver) ScrollAdvance(ctx context.Context) error  { return nil }
func (d *fakeDriver) ScrollToBottom(ctx context.Context) error { return nil }

func (d *fakeDriver) PageHeight(ctx context.Context) (int, error) {
	idx := d.heightCalls
	if idx >= len(d.heights) {
		idx = len(d.heights) - 1
	}
	d.heightCalls++
	return d.heights[idx], nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (d *fakeDriver) Close()                                         { d.closed = true }

type fakeFactory struct {
	driver *fakeDriver
	err    error
	calls  int
}

func (f *fakeFactory) NewSession(ctx context.Context) (harvest.PageDriver, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.driver, nil
}

type fakeProber struct {
	err   error
	calls int
}

func (p *fakeProber) Check(ctx context.Context, url string) error {
	p.calls++
	return p.err
}

type fakeNotifier struct {
	mu         sync.Mutex
	attachment []byte
	err        error
	calls      int
}

func (n *fakeNotifier) Send(ctx context.Context, attachment []byte, generatedAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.attachment = attachment
	return n.err
}

func fastLoop(t *testing.T) *harvest.Loop {
	t.Helper()
	return newFastLoop(t, harvest.ConvergenceConfig{
		NoNewRecordLimit:  2,
		StableHeightLimit: 2,
		MaxIterations:     10,
	})
}

func newFastLoop(t *testing.T, conv harvest.ConvergenceConfig) *harvest.Loop {
	t.Helper()
	cfg := harvest.LoopConfig{
		URL:             "https://example.com/stocks",
		InitialSettle:   time.Millisecond,
		ScrollAdvances:  1,
		ScrollSettle:    time.Millisecond,
		BottomSettle:    time.Millisecond,
		WaitRowsTimeout: 100 * time.Millisecond,
		IterationPause:  time.Millisecond,
		Convergence:     conv,
	}
	clock := fakeClock{now: time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)}
	return harvest.NewLoop(cfg, harvest.NewExtractor(clock), nil, nil)
}

func row(name, price string) []string {
	return []string{name, price, "+1.0%", "1000", "50000"}
}

func TestRunnerSuccessEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "stocks.csv")
	sink, err := csvfile.New(csvPath)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	clock := fakeClock{now: time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)}
	pipeline := delivery.New(sink, notifier, clock, nil)

	driver := &fakeDriver{
		rows: [][][]string{
			{row("Alpha Corp", "10.00"), row("Beta Ltd", "20.00")},
			{row("Alpha Corp", "10.00"), row("Gamma Inc", "30.00")},
		},
		heights: []int{100},
	}
	factory := &fakeFactory{driver: driver}
	store := newFakeRunStore()
	queue := newFakeQueue()

	r := New(queue, store, factory, &fakeProber{}, fastLoop(t), pipeline, Config{TargetURL: "https://example.com/stocks"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.NoError(t, queue.Enqueue(ctx, harvest.QueueItem{RunID: "run-1"}))

	require.Eventually(t, func() bool {
		last, ok := store.last("run-1")
		return ok && last.status == harvest.RunStatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	last, ok := store.last("run-1")
	require.True(t, ok)
	require.Equal(t, 3, last.counters.RecordsHarvested)
	require.Zero(t, last.counters.RowsRejected)
	require.False(t, last.counters.Exhausted)
	require.True(t, last.counters.Delivered)
	require.True(t, driver.closed)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "timestamp,name,symbol,price,change_percent,volume,value", lines[0])
	require.Contains(t, lines[1], "Alpha Corp")
	require.Contains(t, lines[3], "Gamma Inc")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, data, notifier.attachment)
}

func TestRunnerProbeFailureSkipsBrowser(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{err: errors.New("target unreachable: status 503")}
	factory := &fakeFactory{driver: &fakeDriver{rows: [][][]string{{}}, heights: []int{0}}}
	store := newFakeRunStore()

	r := New(newFakeQueue(), store, factory, prober, fastLoop(t), failingPipeline{}, Config{TargetURL: "https://example.com"}, nil)
	r.processRun(context.Background(), harvest.QueueItem{RunID: "run-2"})

	last, ok := store.last("run-2")
	require.True(t, ok)
	require.Equal(t, harvest.RunStatusFailed, last.status)
	require.Contains(t, last.errText, "unreachable")
	require.Zero(t, factory.calls)
}

func TestRunnerDriverSetupFailure(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{err: harvest.ErrDriverSetup}
	store := newFakeRunStore()

	r := New(newFakeQueue(), store, factory, nil, fastLoop(t), failingPipeline{}, Config{}, nil)
	r.processRun(context.Background(), harvest.QueueItem{RunID: "run-3"})

	last, ok := store.last("run-3")
	require.True(t, ok)
	require.Equal(t, harvest.RunStatusFailed, last.status)
	require.Contains(t, last.errText, "driver setup")
}

type failingPipeline struct{ err error }

func (p failingPipeline) Deliver(ctx context.Context, records []harvest.StockRecord) error {
	return p.err
}

func TestRunnerNotifyFailureKeepsHarvestCounters(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{
		rows:    [][][]string{{row("Alpha Corp", "10.00")}},
		heights: []int{100},
	}
	store := newFakeRunStore()
	deliverErr := errors.New("smtp send: connection refused")

	r := New(newFakeQueue(), store, &fakeFactory{driver: driver}, nil, fastLoop(t),
		failingPipeline{err: deliverErr}, Config{}, nil)
	r.processRun(context.Background(), harvest.QueueItem{RunID: "run-4"})

	last, ok := store.last("run-4")
	require.True(t, ok)
	require.Equal(t, harvest.RunStatusFailed, last.status)
	require.Contains(t, last.errText, "smtp send")
	require.Equal(t, 1, last.counters.RecordsHarvested)
	require.False(t, last.counters.Delivered)
}

func TestRunnerCanceledRun(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{
		rows:    [][][]string{{row("Alpha Corp", "10.00")}},
		heights: []int{100},
	}
	store := newFakeRunStore()

	r := New(newFakeQueue(), store, &fakeFactory{driver: driver}, nil, fastLoop(t), failingPipeline{}, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.processRun(ctx, harvest.QueueItem{RunID: "run-5"})

	last, ok := store.last("run-5")
	require.True(t, ok)
	require.Equal(t, harvest.RunStatusCanceled, last.status)
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	r := New(newFakeQueue(), newFakeRunStore(), &fakeFactory{}, nil, fastLoop(t), failingPipeline{}, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
