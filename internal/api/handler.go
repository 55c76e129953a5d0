package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/filter"
	"github.com/collectline/dunlin/internal/scheduler"
	"github.com/collectline/dunlin/internal/strategy"
)

// BatchSubmitter streams a case file to the dispatch engine.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, kind domain.BatchKind, fileName string, file io.Reader) (string, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	loader    *filter.Loader
	validator *filter.Validator
	policy    filter.IncompletePolicy
	trigger   *strategy.Trigger
	sched     *scheduler.Scheduler
	batches   BatchSubmitter
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, loader *filter.Loader, validator *filter.Validator, policy filter.IncompletePolicy, trigger *strategy.Trigger, sched *scheduler.Scheduler, batches BatchSubmitter, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		loader:    loader,
		validator: validator,
		policy:    policy,
		trigger:   trigger,
		sched:     sched,
		batches:   batches,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListFields returns the filter field catalog with current option lists.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.loader.Load(r.Context())
	if err != nil {
		slog.Error("failed to load field catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load field catalog",
		})
		return
	}

	fields := catalog.Fields()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields": fields,
		"count":  len(fields),
	})
}

// ListMasterData returns all entries of a master data category.
func (h *Handler) ListMasterData(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	entries, err := h.repo.ListMasterData(r.Context(), category)
	if err != nil {
		slog.Error("failed to list master data", "category", category, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list master data",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"entries":  entries,
		"count":    len(entries),
	})
}

// SaveMasterDataEntry upserts one master data entry and invalidates the
// cached option list for its category.
func (h *Handler) SaveMasterDataEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := chi.URLParam(r, "category")

	var entry domain.MasterDataEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	entry.Category = category

	if entry.Code == "" || entry.Value == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "code and value are required",
		})
		return
	}

	if err := h.repo.SaveMasterDataEntry(ctx, &entry); err != nil {
		slog.Error("failed to save master data entry", "category", category, "code", entry.Code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save master data entry",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(ctx, "options:"+category)
	}

	writeJSON(w, http.StatusCreated, entry)
}

// ListTemplates returns the template catalog for a channel.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	channel := domain.Channel(r.URL.Query().Get("channel"))
	if !channel.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "channel query parameter is required",
		})
		return
	}

	templates, err := h.repo.ListTemplates(r.Context(), channel)
	if err != nil {
		slog.Error("failed to list templates", "channel", channel, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list templates",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":   channel,
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate retrieves a template by ID.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "id")

	tpl, err := h.repo.GetTemplate(r.Context(), templateID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "template not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get template", "id", templateID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get template",
		})
		return
	}

	writeJSON(w, http.StatusOK, tpl)
}

// CreateTemplate adds a template to the catalog.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.MessageTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !tpl.Channel.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown channel",
		})
		return
	}
	if tpl.TemplateName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "templateName is required",
		})
		return
	}

	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := h.repo.SaveTemplate(r.Context(), &tpl); err != nil {
		slog.Error("failed to save template", "id", tpl.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save template",
		})
		return
	}

	slog.Info("template created", "id", tpl.ID, "channel", tpl.Channel)
	writeJSON(w, http.StatusCreated, tpl)
}

// ListStrategies returns all strategies.
func (h *Handler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListRules(r.Context())
	if err != nil {
		slog.Error("failed to list strategies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list strategies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": rules,
		"count":      len(rules),
	})
}

// GetStrategy retrieves a strategy by ID.
func (h *Handler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetRule(r.Context(), ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "strategy not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get strategy", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get strategy",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// GetStrategyDraft returns a strategy as an editable draft: stored display
// values resolved back to selection codes against the current field catalog.
func (h *Handler) GetStrategyDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetRule(ctx, ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "strategy not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get strategy", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get strategy",
		})
		return
	}

	catalog, err := h.loader.Load(ctx)
	if err != nil {
		slog.Error("failed to load field catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load field catalog",
		})
		return
	}

	writeJSON(w, http.StatusOK, strategy.Decompile(catalog, rule))
}

// CreateStrategy compiles a draft and persists the resulting rule.
func (h *Handler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var draft strategy.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	draft.ID = ""

	rule, ok := h.compile(ctx, w, &draft)
	if !ok {
		return
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to save strategy", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save strategy",
		})
		return
	}

	h.reschedule(ctx, rule)

	slog.Info("strategy created", "id", rule.ID, "name", rule.Name, "status", rule.Status)
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateStrategy recompiles a draft against an existing rule, preserving its
// creation timestamp and run counters.
func (h *Handler) UpdateStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	existing, err := h.repo.GetRule(ctx, ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "strategy not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get strategy", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get strategy",
		})
		return
	}

	var draft strategy.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	draft.ID = ruleID

	rule, ok := h.compile(ctx, w, &draft)
	if !ok {
		return
	}

	rule.CreatedAt = existing.CreatedAt
	rule.SuccessCount = existing.SuccessCount
	rule.FailureCount = existing.FailureCount
	rule.LastRunAt = existing.LastRunAt

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to update strategy", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update strategy",
		})
		return
	}

	h.reschedule(ctx, rule)

	slog.Info("strategy updated", "id", rule.ID, "status", rule.Status)
	writeJSON(w, http.StatusOK, rule)
}

// DeleteStrategy removes a strategy permanently and drops its schedule.
func (h *Handler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.sched != nil {
		h.sched.Unregister(ruleID)
	}

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "strategy not found",
			})
			return
		}
		slog.Error("failed to delete strategy", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete strategy",
		})
		return
	}

	slog.Info("strategy deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "strategy deleted",
	})
}

// TriggerStrategy starts a manual execution run.
func (h *Handler) TriggerStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	run, err := h.trigger.Run(ctx, ruleID, domain.TriggerManual)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "strategy not found",
		})
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		slog.Error("failed to trigger strategy", "id", ruleID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "failed to trigger execution run",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

// ListStrategyRuns returns a strategy's execution history, most recent
// first.
func (h *Handler) ListStrategyRuns(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	runs, err := h.repo.ListRunsByRule(r.Context(), ruleID)
	if err != nil {
		slog.Error("failed to list runs", "rule_id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun retrieves an execution run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), runID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get run", "id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get run",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// SubmitBatch accepts a multipart case file upload and hands it to the
// dispatch engine untouched.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid multipart request",
		})
		return
	}

	kind := domain.BatchKind(r.FormValue("kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown batch kind",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file is required",
		})
		return
	}
	defer file.Close()

	remoteID, err := h.batches.SubmitBatch(ctx, kind, header.Filename, file)
	if err != nil {
		slog.Error("failed to submit batch", "kind", kind, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "failed to submit batch",
		})
		return
	}

	batch := &domain.BatchJob{
		ID:          uuid.New().String(),
		Kind:        kind,
		RemoteID:    remoteID,
		FileName:    header.Filename,
		Status:      domain.RunInitiated,
		SubmittedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveBatch(ctx, batch); err != nil {
		slog.Error("failed to save batch", "id", batch.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save batch",
		})
		return
	}

	h.publishBatchSubmitted(ctx, batch)

	slog.Info("batch submitted", "id", batch.ID, "kind", kind, "file", batch.FileName)
	writeJSON(w, http.StatusAccepted, batch)
}

// publishBatchSubmitted emits the batch-submitted event so the observer
// worker can begin polling the remote job.
func (h *Handler) publishBatchSubmitted(ctx context.Context, batch *domain.BatchJob) {
	payload, err := json.Marshal(domain.BatchEvent{
		BatchID:  batch.ID,
		RemoteID: batch.RemoteID,
		Kind:     batch.Kind,
	})
	if err != nil {
		slog.Error("failed to marshal batch event", "id", batch.ID, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicBatchSubmitted, payload); err != nil {
		slog.Error("failed to publish batch event", "id", batch.ID, "error", err)
	}
}

// GetBatch retrieves a batch job by ID.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	batch, err := h.repo.GetBatch(r.Context(), batchID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "batch not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get batch", "id", batchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get batch",
		})
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// compile loads the current field catalog and runs the pipeline, writing the
// validation response itself on failure.
func (h *Handler) compile(ctx context.Context, w http.ResponseWriter, draft *strategy.Draft) (*domain.Rule, bool) {
	catalog, err := h.loader.Load(ctx)
	if err != nil {
		slog.Error("failed to load field catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load field catalog",
		})
		return nil, false
	}

	normalizer := filter.NewNormalizer(catalog, h.policy)
	compiler := strategy.NewCompiler(normalizer, h.validator)

	rule, err := compiler.Compile(draft)
	if err != nil {
		var verr *strategy.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": verr.Message,
				"stage": string(verr.Stage),
				"field": verr.Field,
			})
			return nil, false
		}
		slog.Error("strategy compilation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "strategy compilation failed",
		})
		return nil, false
	}

	return rule, true
}

// reschedule keeps the cron entry and persisted next-run time in step with
// the rule's current status.
func (h *Handler) reschedule(ctx context.Context, rule *domain.Rule) {
	if h.sched == nil {
		return
	}

	next, err := h.sched.Register(rule)
	if err != nil {
		slog.Error("failed to schedule strategy", "id", rule.ID, "error", err)
		return
	}

	var at *time.Time
	if !next.IsZero() {
		at = &next
	}
	if err := h.repo.SetNextRun(ctx, rule.ID, at); err != nil {
		slog.Warn("failed to record next run", "id", rule.ID, "error", err)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
