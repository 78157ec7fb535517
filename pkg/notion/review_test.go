package notion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// fakeClient records requests and replays scripted query responses.
type fakeClient struct {
	created     []*notionapi.PageCreateRequest
	updated     map[string]*notionapi.PageUpdateRequest
	queryPages  [][]notionapi.Page
	queryCursor int
	err         error
}

func (f *fakeClient) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.queryCursor
	f.queryCursor++
	resp := &notionapi.DatabaseQueryResponse{Results: f.queryPages[i]}
	if i < len(f.queryPages)-1 {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor("cursor-next")
	}
	_ = req
	return resp, nil
}

func (f *fakeClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "page-1"}, nil
}

func (f *fakeClient) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = make(map[string]*notionapi.PageUpdateRequest)
	}
	f.updated[pageID] = req
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func reviewableRun() *model.Run {
	return &model.Run{
		ID:     "run-abc",
		Scan:   model.Scan{Path: "/scans/ecg_014.png", Source: "ftp"},
		Status: model.RunStatusComplete,
		Result: &model.RobustResult{
			Success:      true,
			AttemptsMade: 3,
			Validation:   &model.ValidationResult{Valid: false, Confidence: 0.42},
			Breakdown:    model.ScoreBreakdown{Total: 61.5},
			Issues: []model.Issue{
				{Type: model.IssueEinthoven, Severity: model.SeverityError, Message: "lead II does not match I + III"},
				{Type: model.IssueAlignment, Severity: model.SeverityWarning, Message: "lead aVF lags by 12 samples"},
			},
		},
	}
}

func TestReviewQueue_QueueRun(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	q := NewReviewQueue(fc, "db-123")

	pageID, err := q.QueueRun(context.Background(), reviewableRun())
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)

	require.Len(t, fc.created, 1)
	req := fc.created[0]
	assert.Equal(t, notionapi.DatabaseID("db-123"), req.Parent.DatabaseID)

	title := req.Properties["Scan"].(notionapi.TitleProperty)
	assert.Equal(t, "/scans/ecg_014.png", title.Title[0].Text.Content)

	status := req.Properties["Status"].(notionapi.StatusProperty)
	assert.Equal(t, StatusNeedsReview, status.Status.Name)

	conf := req.Properties["Confidence"].(notionapi.NumberProperty)
	assert.InDelta(t, 0.42, conf.Number, 1e-9)

	score := req.Properties["Score"].(notionapi.NumberProperty)
	assert.InDelta(t, 61.5, score.Number, 1e-9)

	issues := req.Properties["Issues"].(notionapi.RichTextProperty)
	summary := issues.RichText[0].Text.Content
	assert.Contains(t, summary, "[error] einthoven_violation: lead II does not match I + III")
	assert.Contains(t, summary, "[warning] temporal_misalignment")
}

func TestReviewQueue_QueueRun_NoResult(t *testing.T) {
	t.Parallel()

	q := NewReviewQueue(&fakeClient{}, "db-123")
	_, err := q.QueueRun(context.Background(), &model.Run{ID: "run-x"})
	assert.Error(t, err)
}

func TestReviewQueue_QueueRun_ClientError(t *testing.T) {
	t.Parallel()

	q := NewReviewQueue(&fakeClient{err: errors.New("unauthorized")}, "db-123")
	_, err := q.QueueRun(context.Background(), reviewableRun())
	assert.Error(t, err)
}

func TestReviewQueue_MarkReviewed(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	q := NewReviewQueue(fc, "db-123")

	require.NoError(t, q.MarkReviewed(context.Background(), "page-9"))

	req := fc.updated["page-9"]
	require.NotNil(t, req)
	status := req.Properties["Status"].(notionapi.StatusProperty)
	assert.Equal(t, StatusReviewed, status.Status.Name)
}

func TestReviewQueue_PendingReviews_Paginates(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{queryPages: [][]notionapi.Page{
		{{ID: "p1"}, {ID: "p2"}},
		{{ID: "p3"}},
	}}
	q := NewReviewQueue(fc, "db-123")

	pages, err := q.PendingReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, notionapi.ObjectID("p3"), pages[2].ID)
	assert.Equal(t, 2, fc.queryCursor, "follows the cursor across pages")
}

func TestSummarizeIssues(t *testing.T) {
	t.Parallel()

	assert.Empty(t, summarizeIssues(nil))

	long := model.Issue{
		Type:     model.IssueGoldberger,
		Severity: model.SeverityWarning,
		Message:  strings.Repeat("x", 3000),
	}
	summary := summarizeIssues([]model.Issue{long})
	assert.LessOrEqual(t, len(summary), maxIssueSummary+len("…"))
	assert.True(t, strings.HasSuffix(summary, "…"))
}
