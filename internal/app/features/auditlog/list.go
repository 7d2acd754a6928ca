// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/store/audit"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
)

const pageSize = 50

// ServeList handles GET /api/admin/audit. Filters: category, eventType,
// groupSlug, startDate and endDate (YYYY-MM-DD, inclusive), page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("eventType"))

	var fields []string
	if category != "" && eventTypesForCategory(category) == nil {
		fields = append(fields, "category")
	}
	if eventType != "" && !slices.Contains(eventTypesForCategory(category), eventType) {
		fields = append(fields, "eventType")
	}

	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			fields = append(fields, "page")
		}
		page = n
	}

	filter := audit.QueryFilter{
		GroupSlug: strings.TrimSpace(q.Get("groupSlug")),
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
	}
	if s := strings.TrimSpace(q.Get("startDate")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			fields = append(fields, "startDate")
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("endDate")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			fields = append(fields, "endDate")
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	if len(fields) > 0 {
		uierrors.Validation(w, "Invalid audit log filter.", fields)
		return
	}
	filter.Offset = int64((page - 1) * pageSize)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err, "A database error occurred.")
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events", err, "A database error occurred.")
		return
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	out := listResponse{
		Items:      make([]eventView, 0, len(events)),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}
	for _, e := range events {
		out.Items = append(out.Items, viewOf(e))
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}
