package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/dashboard"
	"github.com/cam3ron2/org-dashboard/internal/report"
	"github.com/cam3ron2/org-dashboard/internal/telemetry"
	"github.com/cam3ron2/org-dashboard/internal/window"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardService is the query surface served by the API.
type DashboardService interface {
	Aggregate(ctx context.Context) (*activity.OrgAggregate, error)
	RefreshWithStatus(ctx context.Context) (*activity.OrgAggregate, dashboard.RefreshStatus, error)
	Location() *time.Location
	Contributors(ctx context.Context, w window.Window) ([]dashboard.ContributorView, error)
	Contributor(ctx context.Context, login string, w window.Window) (dashboard.ContributorDetail, error)
	Summary(ctx context.Context, w window.Window) (dashboard.SummaryView, error)
	Repository(ctx context.Context, name string, w window.Window) (activity.RepoRollup, error)
	Monthly(ctx context.Context, w window.Window) ([]window.MonthBucket, error)
}

type apiHandler struct {
	service DashboardService
	logger  *zap.Logger
}

type refreshResponse struct {
	Status      dashboard.RefreshStatus `json:"status"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// NewAPIHandler returns the JSON API. Every read endpoint accepts optional
// start and end query parameters in YYYY-MM-DD form.
func NewAPIHandler(service DashboardService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &apiHandler{service: service, logger: logger}

	traceMode := telemetry.TraceMode()
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/aggregate", wrapHTTPHandler(traceMode, "aggregate", http.HandlerFunc(api.aggregate)))
	router.Method(http.MethodGet, "/summary", wrapHTTPHandler(traceMode, "summary", http.HandlerFunc(api.summary)))
	router.Method(http.MethodGet, "/contributors", wrapHTTPHandler(traceMode, "contributors", http.HandlerFunc(api.contributors)))
	router.Method(http.MethodGet, "/contributors/{login}", wrapHTTPHandler(traceMode, "contributor", http.HandlerFunc(api.contributor)))
	router.Method(http.MethodGet, "/repositories/{name}", wrapHTTPHandler(traceMode, "repository", http.HandlerFunc(api.repository)))
	router.Method(http.MethodGet, "/monthly", wrapHTTPHandler(traceMode, "monthly", http.HandlerFunc(api.monthly)))
	router.Method(http.MethodGet, "/report.xlsx", wrapHTTPHandler(traceMode, "report", http.HandlerFunc(api.report)))
	router.Method(http.MethodPost, "/refresh", wrapHTTPHandler(traceMode, "refresh", http.HandlerFunc(api.refresh)))
	return router
}

func (a *apiHandler) aggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := a.service.Aggregate(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, agg)
}

func (a *apiHandler) summary(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	summary, err := a.service.Summary(r.Context(), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, summary)
}

func (a *apiHandler) contributors(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	views, err := a.service.Contributors(r.Context(), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, views)
}

func (a *apiHandler) contributor(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	detail, err := a.service.Contributor(r.Context(), chi.URLParam(r, "login"), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, detail)
}

func (a *apiHandler) repository(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	rollup, err := a.service.Repository(r.Context(), chi.URLParam(r, "name"), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, rollup)
}

func (a *apiHandler) monthly(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	buckets, err := a.service.Monthly(r.Context(), win)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, buckets)
}

func (a *apiHandler) report(w http.ResponseWriter, r *http.Request) {
	win, ok := a.parseWindow(w, r)
	if !ok {
		return
	}
	agg, err := a.service.Aggregate(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, agg, win); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+agg.Org+`-contributors.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		a.logger.Debug("write report response", zap.Error(err))
	}
}

func (a *apiHandler) refresh(w http.ResponseWriter, r *http.Request) {
	agg, status, err := a.service.RefreshWithStatus(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, refreshResponse{Status: status, GeneratedAt: agg.GeneratedAt})
}

func (a *apiHandler) parseWindow(w http.ResponseWriter, r *http.Request) (window.Window, bool) {
	query := r.URL.Query()
	win, err := window.Parse(query.Get("start"), query.Get("end"), a.service.Location())
	if err != nil {
		a.writeError(w, r, err)
		return window.Window{}, false
	}
	return win, true
}

func (a *apiHandler) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		a.logger.Debug("write response", zap.Error(err))
	}
}

func (a *apiHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, window.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrNoData):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		a.logger.Warn(
			"api request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, writeErr := w.Write(body); writeErr != nil {
		a.logger.Debug("write error response", zap.Error(writeErr))
	}
}
