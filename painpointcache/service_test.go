package painpointcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-painpoint/cache"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/goliatone/go-painpoint/store"
)

// mockStore is an in-memory Store that records the calls it receives.
type mockStore struct {
	mu      sync.Mutex
	records map[int32]painpoint.Record
	err     error
	calls   map[string]int
	updates []int32
}

func newMockStore(records ...painpoint.Record) *mockStore {
	m := &mockStore{
		records: make(map[int32]painpoint.Record),
		calls:   make(map[string]int),
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return m
}

func (m *mockStore) record(op string) error {
	m.calls[op]++
	if m.err != nil {
		return fmt.Errorf("%s: %w", op, m.err)
	}
	return nil
}

func (m *mockStore) SelectAll(ctx context.Context) (map[int32]painpoint.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SelectAll"); err != nil {
		return nil, err
	}
	out := make(map[int32]painpoint.Record, len(m.records))
	for id, rec := range m.records {
		out[id] = rec
	}
	return out, nil
}

func (m *mockStore) SelectByID(ctx context.Context, id int32) (painpoint.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SelectByID"); err != nil {
		return painpoint.Record{}, err
	}
	rec, ok := m.records[id]
	if !ok {
		return painpoint.Record{}, fmt.Errorf("select by id: %w", store.ErrNotFound)
	}
	return rec, nil
}

func (m *mockStore) SelectByClassID(ctx context.Context, classID int32) ([]painpoint.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SelectByClassID"); err != nil {
		return nil, err
	}
	out := []painpoint.Record{}
	for _, rec := range m.records {
		if rec.ClassID == classID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockStore) Insert(ctx context.Context, rec painpoint.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Insert"); err != nil {
		return err
	}
	if _, ok := m.records[rec.ID]; ok {
		return errors.New("insert: UNIQUE constraint failed: painpoint.id")
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockStore) UpdateFlag(ctx context.Context, id int32, flagged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateFlag"); err != nil {
		return err
	}
	m.updates = append(m.updates, id)
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("update flag: %w", store.ErrNotFound)
	}
	rec.Flagged = flagged
	m.records[id] = rec
	return nil
}

func (m *mockStore) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockStore) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *mockStore) put(rec painpoint.Record) {
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
}

func (m *mockStore) drop(id int32) {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
}

// pausingStore holds the first call to op after the underlying read until
// release is closed, signalling read once the data has been fetched.
type pausingStore struct {
	*mockStore
	op      string
	held    atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(op string, records ...painpoint.Record) *pausingStore {
	return &pausingStore{
		mockStore: newMockStore(records...),
		op:        op,
		read:      make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (p *pausingStore) hold(op string) {
	if op != p.op || !p.held.CompareAndSwap(false, true) {
		return
	}
	close(p.read)
	<-p.release
}

func (p *pausingStore) SelectAll(ctx context.Context) (map[int32]painpoint.Record, error) {
	records, err := p.mockStore.SelectAll(ctx)
	p.hold("SelectAll")
	return records, err
}

func (p *pausingStore) SelectByID(ctx context.Context, id int32) (painpoint.Record, error) {
	rec, err := p.mockStore.SelectByID(ctx, id)
	p.hold("SelectByID")
	return rec, err
}

// waitBlocked fails t if done closes within a short grace period.
func waitBlocked(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
		t.Fatalf("%s completed while a store read was in flight", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, st Store, opts ...Option) *Service {
	t.Helper()
	return New(st, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestAddOrUpdate_InsertThenUpdateSameRecord(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	if !svc.AddOrUpdate(ctx, 7, "alice", true) {
		t.Fatal("first AddOrUpdate failed")
	}
	if !svc.AddOrUpdate(ctx, 7, "alice", false) {
		t.Fatal("second AddOrUpdate failed")
	}

	if got := st.count("Insert"); got != 1 {
		t.Errorf("expected 1 insert, got %d", got)
	}
	if got := st.count("UpdateFlag"); got != 1 {
		t.Errorf("expected 1 update, got %d", got)
	}

	id := painpoint.DeriveRecordID(7, "alice")
	if len(st.updates) != 1 || st.updates[0] != id {
		t.Errorf("expected update of %d, got %v", id, st.updates)
	}
	if len(st.records) != 1 || st.records[id].Flagged {
		t.Errorf("unexpected store contents: %v", st.records)
	}
}

func TestAddOrUpdate_CaseInsensitiveUser(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	svc.AddOrUpdate(ctx, 7, "Alice", true)
	svc.AddOrUpdate(ctx, 7, "alice", false)

	if len(st.records) != 1 {
		t.Fatalf("expected a single record, got %v", st.records)
	}
	if st.count("Insert") != 1 || st.count("UpdateFlag") != 1 {
		t.Errorf("expected one insert and one update, got %v", st.calls)
	}
}

func TestAddOrUpdate_ReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)
	id := painpoint.DeriveRecordID(7, "alice")

	for _, flagged := range []bool{true, false, true} {
		if !svc.AddOrUpdate(ctx, 7, "alice", flagged) {
			t.Fatalf("AddOrUpdate(%t) failed", flagged)
		}
		rec, ok := svc.GetByID(ctx, true, id)
		if !ok || rec.Flagged != flagged {
			t.Errorf("forced GetByID = %v (ok=%t), want flagged=%t", rec, ok, flagged)
		}
		all := svc.ListAll(ctx, true)
		if all[id].Flagged != flagged {
			t.Errorf("forced ListAll flagged=%t, want %t", all[id].Flagged, flagged)
		}
	}
}

func TestAddOrUpdate_UpdatesLegacyRowByStoredID(t *testing.T) {
	ctx := context.Background()
	legacy := painpoint.Record{ID: 5, ClassID: 7, UserName: "Alice", Flagged: true}
	st := newMockStore(legacy)
	svc := newTestService(t, st)

	if !svc.AddOrUpdate(ctx, 7, "alice", false) {
		t.Fatal("AddOrUpdate failed")
	}

	if st.count("Insert") != 0 {
		t.Errorf("expected no insert, got %d", st.count("Insert"))
	}
	if len(st.updates) != 1 || st.updates[0] != 5 {
		t.Errorf("expected update of stored id 5, got %v", st.updates)
	}
	if rec, _ := svc.Snapshot().Get(5); rec.Flagged {
		t.Error("snapshot not updated")
	}
}

func TestAddOrUpdate_ExactlyOneWriteOnFailedInsert(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)
	svc.ListAll(ctx, true)

	// Another process inserted the row after the snapshot was loaded.
	st.put(painpoint.Record{ID: painpoint.DeriveRecordID(7, "alice"), ClassID: 7, UserName: "alice"})

	if svc.AddOrUpdate(ctx, 7, "alice", true) {
		t.Error("expected duplicate insert to fail")
	}
	if st.count("Insert") != 1 || st.count("UpdateFlag") != 0 {
		t.Errorf("expected exactly one insert, got %v", st.calls)
	}
}

func TestAddOrUpdate_VanishedRecordIsDropped(t *testing.T) {
	ctx := context.Background()
	rec := painpoint.Record{ID: painpoint.DeriveRecordID(7, "alice"), ClassID: 7, UserName: "alice", Flagged: true}
	st := newMockStore(rec)
	svc := newTestService(t, st)
	svc.ListAll(ctx, false)

	st.drop(rec.ID)

	if svc.AddOrUpdate(ctx, 7, "alice", false) {
		t.Error("expected update of a vanished record to fail")
	}
	if _, ok := svc.Snapshot().Get(rec.ID); ok {
		t.Error("vanished record still in snapshot")
	}
	if !svc.AddOrUpdate(ctx, 7, "alice", false) {
		t.Error("expected follow-up AddOrUpdate to insert")
	}
}

func TestAddOrUpdate_PrimesSnapshotOnce(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	svc.AddOrUpdate(ctx, 7, "alice", true)
	svc.AddOrUpdate(ctx, 8, "alice", true)

	if got := st.count("SelectAll"); got != 1 {
		t.Errorf("expected one priming refresh, got %d", got)
	}
}

func TestListAll_RefreshPolicy(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)

	svc.ListAll(ctx, false)
	svc.ListAll(ctx, false)
	if got := st.count("SelectAll"); got != 1 {
		t.Errorf("expected the loaded snapshot to serve, got %d refreshes", got)
	}

	svc.ListAll(ctx, true)
	if got := st.count("SelectAll"); got != 2 {
		t.Errorf("expected forced refresh, got %d refreshes", got)
	}
}

func TestListAll_EmptySnapshotRefreshes(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	svc.ListAll(ctx, false)
	svc.ListAll(ctx, false)

	if got := st.count("SelectAll"); got != 2 {
		t.Errorf("expected an empty snapshot to refresh every call, got %d", got)
	}
}

func TestListAll_ServesSnapshotWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)
	svc.ListAll(ctx, false)

	st.fail(store.ErrUnavailable)

	all := svc.ListAll(ctx, true)
	if len(all) != 1 {
		t.Errorf("expected stale snapshot, got %v", all)
	}
}

func TestDegradedMode(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	st.fail(store.ErrUnavailable)
	svc := newTestService(t, st)

	if all := svc.ListAll(ctx, false); all == nil || len(all) != 0 {
		t.Errorf("expected empty map, got %v", all)
	}
	if svc.AddOrUpdate(ctx, 7, "alice", true) {
		t.Error("expected AddOrUpdate to fail")
	}
	if _, ok := svc.GetByID(ctx, false, 1); ok {
		t.Error("expected absent record")
	}
	if _, ok := svc.GetByID(ctx, true, 1); ok {
		t.Error("expected absent record")
	}
	if got := svc.ListByClassID(ctx, true, 7); got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
	if got := svc.ListByClassID(ctx, false, 7); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
	if svc.HasPainPoint(ctx, 7, "alice") {
		t.Error("expected no pain point")
	}
}

func TestListByClassID_ReadOnlyFilter(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(
		painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true},
		painpoint.Record{ID: 2, ClassID: 7, UserName: "bob", Flagged: false},
		painpoint.Record{ID: 3, ClassID: 9, UserName: "carol", Flagged: true},
	)
	svc := newTestService(t, st)

	first := svc.ListByClassID(ctx, false, 7)
	second := svc.ListByClassID(ctx, false, 7)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 records both times, got %d and %d", len(first), len(second))
	}
	if n := len(svc.ListAll(ctx, false)); n != 3 {
		t.Errorf("filtering shrank the snapshot to %d records", n)
	}
	if got := st.count("SelectAll"); got != 1 {
		t.Errorf("expected one priming refresh, got %d", got)
	}
}

func TestListByClassID_ForcedLeavesSnapshotUntouched(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)
	svc.ListAll(ctx, false)

	st.put(painpoint.Record{ID: 2, ClassID: 7, UserName: "bob", Flagged: true})

	if got := svc.ListByClassID(ctx, true, 7); len(got) != 2 {
		t.Errorf("forced read should see the new record, got %v", got)
	}
	if got := svc.ListByClassID(ctx, false, 7); len(got) != 1 {
		t.Errorf("snapshot should be untouched, got %v", got)
	}
}

func TestGetByID_SnapshotHit(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)
	svc.ListAll(ctx, false)

	rec, ok := svc.GetByID(ctx, false, 1)
	if !ok || rec.UserName != "alice" {
		t.Errorf("unexpected record %v (ok=%t)", rec, ok)
	}
	if st.count("SelectByID") != 0 {
		t.Error("snapshot hit queried the store")
	}
}

func TestGetByID_MissingRecordIsMemoized(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	for i := 0; i < 3; i++ {
		if _, ok := svc.GetByID(ctx, false, 404); ok {
			t.Fatal("expected absent record")
		}
	}
	if got := st.count("SelectByID"); got != 1 {
		t.Errorf("expected one store query, got %d", got)
	}
}

func TestGetByID_FailuresAreNotMemoized(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	st.fail(store.ErrUnavailable)
	svc := newTestService(t, st)

	if _, ok := svc.GetByID(ctx, false, 1); ok {
		t.Fatal("expected absent record while the store is down")
	}

	st.fail(nil)
	if _, ok := svc.GetByID(ctx, false, 1); !ok {
		t.Error("expected record once the store is back")
	}
}

func TestGetByID_ForcedUpsertsAndRemoves(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(painpoint.Record{ID: 1, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)

	if _, ok := svc.GetByID(ctx, true, 1); !ok {
		t.Fatal("expected record")
	}
	if _, ok := svc.Snapshot().Get(1); !ok {
		t.Error("forced read did not upsert into the snapshot")
	}

	st.drop(1)
	if _, ok := svc.GetByID(ctx, true, 1); ok {
		t.Error("expected absent record after delete")
	}
	if _, ok := svc.Snapshot().Get(1); ok {
		t.Error("forced miss left the record in the snapshot")
	}
}

func TestGetByID_WriteDropsMemoizedMiss(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)
	id := painpoint.DeriveRecordID(7, "alice")

	if _, ok := svc.GetByID(ctx, false, id); ok {
		t.Fatal("expected absent record")
	}
	svc.AddOrUpdate(ctx, 7, "alice", true)
	svc.Snapshot().Remove(id)

	if _, ok := svc.GetByID(ctx, false, id); !ok {
		t.Error("memoized miss survived the write")
	}
}

func TestHasPainPointAndCount(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	svc.AddOrUpdate(ctx, 7, "alice", true)
	svc.AddOrUpdate(ctx, 7, "bob", false)
	svc.AddOrUpdate(ctx, 7, "carol", true)

	if !svc.HasPainPoint(ctx, 7, "ALICE") {
		t.Error("expected alice to have a pain point")
	}
	if svc.HasPainPoint(ctx, 7, "bob") {
		t.Error("bob unflagged his pain point")
	}
	if got := svc.CountByClassID(ctx, false, 7); got != 2 {
		t.Errorf("expected 2 flagged records, got %d", got)
	}
	if got := svc.CountByClassID(ctx, true, 7); got != 2 {
		t.Errorf("expected 2 flagged records from the store, got %d", got)
	}
}

func TestWithDeriver(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	java := painpoint.NewDeriver(painpoint.JavaStringHash)
	svc := newTestService(t, st, WithDeriver(java))

	svc.AddOrUpdate(ctx, 7, "alice", true)

	if _, ok := st.records[java.RecordID(7, "alice")]; !ok {
		t.Errorf("record not stored under the java-derived id: %v", st.records)
	}
}

func TestNilLookupServiceKeepsDefaultMemo(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st, WithLookupService(cache.LookupService(nil)))

	svc.GetByID(ctx, false, 404)
	if svc.lookups == nil {
		t.Fatal("expected default memo to be built")
	}
	if st.count("SelectByID") != 1 {
		t.Errorf("expected one store query, got %d", st.count("SelectByID"))
	}
}

func TestConcurrentAddOrUpdate(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	svc := newTestService(t, st)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.AddOrUpdate(ctx, 7, "alice", i%2 == 0)
		}(i)
	}
	wg.Wait()

	if st.count("Insert") != 1 {
		t.Errorf("expected a single insert, got %d", st.count("Insert"))
	}
	if st.count("UpdateFlag") != 9 {
		t.Errorf("expected 9 updates, got %d", st.count("UpdateFlag"))
	}
}

func TestAddOrUpdate_WaitsForInFlightRefresh(t *testing.T) {
	ctx := context.Background()
	st := newPausingStore("SelectAll")
	svc := newTestService(t, st)

	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		svc.ListAll(ctx, true)
	}()
	<-st.read

	written := make(chan struct{})
	var ok bool
	go func() {
		defer close(written)
		ok = svc.AddOrUpdate(ctx, 7, "alice", true)
	}()
	waitBlocked(t, written, "AddOrUpdate")

	close(st.release)
	<-refreshed
	<-written

	if !ok {
		t.Fatal("AddOrUpdate failed")
	}
	id := painpoint.DeriveRecordID(7, "alice")
	if _, found := svc.Snapshot().Get(id); !found {
		t.Fatal("refresh dropped the concurrent write from the snapshot")
	}
	if !svc.AddOrUpdate(ctx, 7, "alice", false) {
		t.Fatal("follow-up AddOrUpdate failed")
	}
	if got := st.count("Insert"); got != 1 {
		t.Errorf("expected 1 insert, got %d", got)
	}
	if got := st.count("UpdateFlag"); got != 1 {
		t.Errorf("expected 1 update, got %d", got)
	}
}

func TestGetByID_ForcedReadWaitsForWriter(t *testing.T) {
	ctx := context.Background()
	id := painpoint.DeriveRecordID(7, "alice")
	st := newPausingStore("SelectByID", painpoint.Record{ID: id, ClassID: 7, UserName: "alice", Flagged: true})
	svc := newTestService(t, st)
	svc.ListAll(ctx, false)

	read := make(chan struct{})
	go func() {
		defer close(read)
		svc.GetByID(ctx, true, id)
	}()
	<-st.read

	written := make(chan struct{})
	go func() {
		defer close(written)
		svc.AddOrUpdate(ctx, 7, "alice", false)
	}()
	waitBlocked(t, written, "AddOrUpdate")

	close(st.release)
	<-read
	<-written

	rec, ok := svc.Snapshot().Get(id)
	if !ok {
		t.Fatal("expected record in snapshot")
	}
	if rec.Flagged {
		t.Error("forced read installed a stale flag over the later write")
	}
	if st.records[id].Flagged {
		t.Error("expected store flag cleared")
	}
}
