package services

import "sync"

// ReportStore keeps the most recent analysis reports in memory. When full,
// the oldest report is evicted.
type ReportStore struct {
	mu       sync.RWMutex
	capacity int
	reports  map[string]*AnalysisReport
	order    []string
}

// NewReportStore creates a store holding at most capacity reports. A capacity
// below one is treated as one.
func NewReportStore(capacity int) *ReportStore {
	if capacity < 1 {
		capacity = 1
	}
	return &ReportStore{
		capacity: capacity,
		reports:  make(map[string]*AnalysisReport, capacity),
	}
}

// Put stores report and returns the ID evicted to make room, if any.
func (s *ReportStore) Put(report *AnalysisReport) (evicted string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		s.reports[report.ID] = report
		return ""
	}

	if len(s.order) >= s.capacity {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.reports, evicted)
	}

	s.reports[report.ID] = report
	s.order = append(s.order, report.ID)
	return evicted
}

// Get returns the report stored under id.
func (s *ReportStore) Get(id string) (*AnalysisReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	return r, ok
}

// List returns report headers, most recently stored first.
func (s *ReportStore) List() []ReportHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	headers := make([]ReportHeader, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		headers = append(headers, s.reports[s.order[i]].Header())
	}
	return headers
}

// Len returns the number of stored reports.
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
