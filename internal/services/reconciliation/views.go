package reconciliation

import (
	"github.com/google/uuid"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/services/rows"
	"receivables-conciliation-backend/internal/workflow"
)

// Page is one page of the results table. Totals always cover the whole
// filtered set, not only the page.
type Page struct {
	rows.View
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

// result returns the stored conciliation payload of id.
func (s *ReconciliationService) result(id uuid.UUID) (*conciliation.Result, workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return nil, workflow.Session{}, err
	}
	session := o.Session()
	if session.Step != workflow.StepShowingResults || session.Result == nil {
		return nil, session, ErrNoResults
	}
	return session.Result, session, nil
}

// View builds the filtered table of id and returns one page of it.
// limit <= 0 returns every row.
func (s *ReconciliationService) View(id uuid.UUID, q rows.Query, cursor string, limit int) (Page, error) {
	res, _, err := s.result(id)
	if err != nil {
		return Page{}, err
	}

	view := rows.Build(res, q)
	page, next, more := rows.Paginate(view.Rows, cursor, limit)
	view.Rows = page

	return Page{View: view, NextCursor: next, HasMore: more}, nil
}

// cachedStats remembers which result the stats were computed from, so an
// entry stored after a reset never answers for a later result.
type cachedStats struct {
	result *conciliation.Result
	stats  rows.StatusStats
}

// Stats counts and sums the rows of id per status.
func (s *ReconciliationService) Stats(id uuid.UUID) (rows.StatusStats, error) {
	res, _, err := s.result(id)
	if err != nil {
		return rows.StatusStats{}, err
	}

	if val, ok := s.statsCache.Load(id); ok {
		if cached := val.(cachedStats); cached.result == res {
			return cached.stats, nil
		}
	}

	stats := rows.Stats(rows.UnifyResult(res))
	s.statsCache.Store(id, cachedStats{result: res, stats: stats})
	return stats, nil
}

// ExportURL is where the CSV export of id's results can be downloaded.
func (s *ReconciliationService) ExportURL(id uuid.UUID) (string, error) {
	_, session, err := s.result(id)
	if err != nil {
		return "", err
	}
	return s.gateway.ExportURL(session.Token), nil
}
