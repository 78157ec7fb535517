package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// Review queue page statuses.
const (
	StatusNeedsReview = "Needs Review"
	StatusReviewed    = "Reviewed"
)

// maxIssueSummary keeps the Issues property under Notion's rich-text limits.
const maxIssueSummary = 1900

// ReviewQueue files low-confidence digitization runs into a Notion database
// for manual review.
type ReviewQueue struct {
	client Client
	dbID   string
}

// NewReviewQueue creates a review queue over the given Notion database.
func NewReviewQueue(client Client, dbID string) *ReviewQueue {
	return &ReviewQueue{client: client, dbID: dbID}
}

// QueueRun creates a review page for the run and returns the page ID.
func (q *ReviewQueue) QueueRun(ctx context.Context, run *model.Run) (string, error) {
	if run.Result == nil {
		return "", eris.New("notion: run has no result to review")
	}

	props := notionapi.Properties{
		"Scan": notionapi.TitleProperty{
			Title: richText(run.Scan.Path),
		},
		"Run ID": notionapi.RichTextProperty{
			RichText: richText(run.ID),
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: StatusNeedsReview},
		},
		"Confidence": notionapi.NumberProperty{
			Number: run.Confidence(),
		},
		"Attempts": notionapi.NumberProperty{
			Number: float64(run.Result.AttemptsMade),
		},
		"Score": notionapi.NumberProperty{
			Number: run.Result.Breakdown.Total,
		},
	}
	if summary := summarizeIssues(run.Result.Issues); summary != "" {
		props["Issues"] = notionapi.RichTextProperty{
			RichText: richText(summary),
		}
	}

	page, err := q.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(q.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: queue run %s", run.ID)
	}
	return string(page.ID), nil
}

// MarkReviewed flips a review page's status to Reviewed.
func (q *ReviewQueue) MarkReviewed(ctx context.Context, pageID string) error {
	_, err := q.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: StatusReviewed},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "notion: mark reviewed %s", pageID)
	}
	return nil
}

// PendingReviews fetches all pages still awaiting review, handling pagination.
func (q *ReviewQueue) PendingReviews(ctx context.Context) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: StatusNeedsReview,
			},
		},
	}

	for {
		resp, err := q.client.QueryDatabase(ctx, q.dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query pending reviews")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}
		req.StartCursor = resp.NextCursor
	}

	return all, nil
}

func summarizeIssues(issues []model.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.Type, issue.Message))
	}
	summary := strings.Join(lines, "\n")
	if len(summary) > maxIssueSummary {
		summary = summary[:maxIssueSummary] + "…"
	}
	return summary
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: s}},
	}
}
