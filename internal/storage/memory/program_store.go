package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// ProgramStore is an in-process crawler.Store for development and tests.
type ProgramStore struct {
	mu      sync.RWMutex
	clock   crawler.Clock
	records map[crawler.Key]crawler.ProgramRecord
}

var _ crawler.Store = (*ProgramStore)(nil)

// NewProgramStore constructs an empty store. A nil clock uses the system clock.
func NewProgramStore(clock crawler.Clock) *ProgramStore {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &ProgramStore{clock: clock, records: make(map[crawler.Key]crawler.ProgramRecord)}
}

// Upsert creates or merges a record; absent fields keep their stored values.
func (s *ProgramStore) Upsert(_ context.Context, record crawler.ProgramRecord) (bool, error) {
	if record.Source == "" || record.SourceID == "" {
		return false, fmt.Errorf("source and source id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	key := record.Key()
	existing, ok := s.records[key]
	if !ok {
		record.CreatedAt = now
		record.UpdatedAt = now
		s.records[key] = record
		return true, nil
	}
	if record.URL != "" {
		existing.URL = record.URL
	}
	existing.Overlay(record.Fields)
	existing.LLMProcessed = existing.LLMProcessed || record.LLMProcessed
	existing.UpdatedAt = now
	s.records[key] = existing
	return false, nil
}

// Get returns the record for key or crawler.ErrNotFound.
func (s *ProgramStore) Get(_ context.Context, key crawler.Key) (crawler.ProgramRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return crawler.ProgramRecord{}, crawler.ErrNotFound
	}
	return record, nil
}

// ListForReextract returns unprocessed records (every record when force is set), newest first.
func (s *ProgramStore) ListForReextract(_ context.Context, limit int, force bool) ([]crawler.ProgramRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.ProgramRecord
	for _, record := range s.records {
		if force || !record.LLMProcessed {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key().String() > out[j].Key().String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateEnrichment rewrites the narrative fields of one record.
func (s *ProgramStore) UpdateEnrichment(_ context.Context, key crawler.Key, e crawler.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return crawler.ErrNotFound
	}
	record.AISummary = e.AISummary
	record.TargetDetail = e.TargetDetail
	record.ExclusionDetail = e.ExclusionDetail
	record.LLMProcessed = record.LLMProcessed || e.LLMProcessed
	record.UpdatedAt = s.clock.Now()
	s.records[key] = record
	return nil
}

// Len reports the number of stored records.
func (s *ProgramStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
