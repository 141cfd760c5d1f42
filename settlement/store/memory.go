// Package store provides an in-memory settlement store and in-memory
// collaborators for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements settlement.TxStore, settlement.WorkerDirectory,
// settlement.AppointmentLedger and settlement.SalesLedger.
type Memory struct {
	mu          sync.RWMutex
	settlements map[settlement.SettlementID]settlement.Settlement
	byPeriod    map[periodKey]settlement.SettlementID // uniqueness index

	workers      map[settlement.WorkerID]settlement.Worker
	appointments []settlement.Appointment
	sales        []settlement.Sale
}

type periodKey struct {
	WorkerID settlement.WorkerID
	Start    string
	End      string
}

func keyOf(workerID settlement.WorkerID, p generic.Period) periodKey {
	return periodKey{WorkerID: workerID, Start: p.Start.String(), End: p.End.String()}
}

func NewMemory() *Memory {
	return &Memory{
		settlements: make(map[settlement.SettlementID]settlement.Settlement),
		byPeriod:    make(map[periodKey]settlement.SettlementID),
		workers:     make(map[settlement.WorkerID]settlement.Worker),
	}
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

func (m *Memory) Insert(_ context.Context, s settlement.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(s)
}

func (m *Memory) insertLocked(s settlement.Settlement) error {
	k := keyOf(s.WorkerID, s.Period)
	if existing, ok := m.byPeriod[k]; ok {
		return &settlement.DuplicatePeriodError{WorkerID: s.WorkerID, Period: s.Period, ExistingID: existing}
	}
	m.settlements[s.ID] = s
	m.byPeriod[k] = s.ID
	return nil
}

func (m *Memory) Get(_ context.Context, id settlement.SettlementID) (settlement.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id settlement.SettlementID) (settlement.Settlement, error) {
	s, ok := m.settlements[id]
	if !ok {
		return settlement.Settlement{}, settlement.ErrNotFound
	}
	return s, nil
}

func (m *Memory) FindByPeriod(_ context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(workerID, period), nil
}

func (m *Memory) findLocked(workerID settlement.WorkerID, period generic.Period) []settlement.Settlement {
	id, ok := m.byPeriod[keyOf(workerID, period)]
	if !ok {
		return nil
	}
	return []settlement.Settlement{m.settlements[id]}
}

func (m *Memory) List(_ context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(filter), nil
}

func (m *Memory) listLocked(filter settlement.Filter) []settlement.Settlement {
	result := []settlement.Settlement{}
	for _, s := range m.settlements {
		if filter.Matches(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Period.Start.Equal(b.Period.Start) {
			return a.Period.Start.After(b.Period.Start)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return result
}

func (m *Memory) Update(_ context.Context, s settlement.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(s)
}

func (m *Memory) updateLocked(s settlement.Settlement) error {
	cur, ok := m.settlements[s.ID]
	if !ok {
		return settlement.ErrNotFound
	}
	if cur.State != settlement.StatePending {
		return generic.ErrConcurrentModification
	}
	cur.BaseAmount = s.BaseAmount
	cur.BonusAmount = s.BonusAmount
	cur.AppointmentsTotal = s.AppointmentsTotal
	cur.State = s.State
	cur.PaidAt = s.PaidAt
	cur.UpdatedAt = s.UpdatedAt
	m.settlements[s.ID] = cur
	return nil
}

func (m *Memory) Delete(_ context.Context, id settlement.SettlementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id settlement.SettlementID) error {
	s, ok := m.settlements[id]
	if !ok {
		return settlement.ErrNotFound
	}
	delete(m.byPeriod, keyOf(s.WorkerID, s.Period))
	delete(m.settlements, id)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, serializing check-then-write.
func (m *Memory) WithTx(_ context.Context, fn func(settlement.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	settlements map[settlement.SettlementID]settlement.Settlement
	byPeriod    map[periodKey]settlement.SettlementID
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		settlements: make(map[settlement.SettlementID]settlement.Settlement, len(m.settlements)),
		byPeriod:    make(map[periodKey]settlement.SettlementID, len(m.byPeriod)),
	}
	for k, v := range m.settlements {
		s.settlements[k] = v
	}
	for k, v := range m.byPeriod {
		s.byPeriod[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.settlements = s.settlements
	m.byPeriod = s.byPeriod
}

// txView is the lock-free view handed to WithTx callbacks.
type txView struct {
	parent *Memory
}

func (tv *txView) Insert(_ context.Context, s settlement.Settlement) error {
	return tv.parent.insertLocked(s)
}

func (tv *txView) Get(_ context.Context, id settlement.SettlementID) (settlement.Settlement, error) {
	return tv.parent.getLocked(id)
}

func (tv *txView) FindByPeriod(_ context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	return tv.parent.findLocked(workerID, period), nil
}

func (tv *txView) List(_ context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	return tv.parent.listLocked(filter), nil
}

func (tv *txView) Update(_ context.Context, s settlement.Settlement) error {
	return tv.parent.updateLocked(s)
}

func (tv *txView) Delete(_ context.Context, id settlement.SettlementID) error {
	return tv.parent.deleteLocked(id)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

func (m *Memory) Worker(_ context.Context, id settlement.WorkerID) (settlement.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return settlement.Worker{}, settlement.ErrWorkerNotFound
	}
	return w, nil
}

func (m *Memory) ListCompleted(_ context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []settlement.Appointment
	for _, a := range m.appointments {
		if a.WorkerID == workerID && a.Status == settlement.AppointmentCompleted && period.Contains(a.Date) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

func (m *Memory) ListSettled(_ context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []settlement.Sale
	for _, s := range m.sales {
		if s.WorkerID == workerID && s.Status == settlement.SaleSettled && period.Contains(s.Date()) {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].SoldAt.Before(result[j].SoldAt) })
	return result, nil
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) SaveWorker(_ context.Context, w settlement.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
	return nil
}

func (m *Memory) SaveAppointment(_ context.Context, a settlement.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments = append(m.appointments, a)
	return nil
}

func (m *Memory) SaveSale(_ context.Context, s settlement.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.SoldAt = s.SoldAt.UTC()
	m.sales = append(m.sales, s)
	return nil
}

// Reset clears every table.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements = make(map[settlement.SettlementID]settlement.Settlement)
	m.byPeriod = make(map[periodKey]settlement.SettlementID)
	m.workers = make(map[settlement.WorkerID]settlement.Worker)
	m.appointments = nil
	m.sales = nil
	return nil
}
