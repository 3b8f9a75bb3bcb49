package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	pkgkafka "MarketSnap/pkg/kafka"
	applogger "MarketSnap/pkg/logger"
	pkgmetrics "MarketSnap/pkg/metrics"
	"MarketSnap/pkg/queue"
	"MarketSnap/pkg/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// RefreshJobType is the queue message type carrying a models.RefreshJob.
const RefreshJobType = "snapshot.refresh"

// Refresh job results recorded in metrics.
const (
	refreshOK    = "ok"
	refreshNoop  = "noop"
	refreshError = "error"
)

// RefreshUseCase turns refresh requests into jobs and hands them to a
// dispatcher without waiting for them to run.
type RefreshUseCase struct {
	dispatcher domsvc.RefreshDispatcher
	watchlist  []string
	now        func() time.Time
	l          *applogger.Logger
}

func NewRefreshUseCase(dispatcher domsvc.RefreshDispatcher, watchlist []string, l *applogger.Logger) *RefreshUseCase {
	if l == nil {
		l = applogger.NewNop()
	}
	return &RefreshUseCase{
		dispatcher: dispatcher,
		watchlist:  util.NormalizeSymbols(watchlist),
		now:        time.Now,
		l:          l,
	}
}

// Request builds one job per (symbol, type). Empty symbols default to the
// watchlist and empty types to both kinds.
func (uc *RefreshUseCase) Request(ctx context.Context, req models.RefreshRequest) (*models.RefreshAck, error) {
	symbols := util.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		symbols = append([]string(nil), uc.watchlist...)
	}
	types, err := refreshTypes(req.Types)
	if err != nil {
		return nil, err
	}

	ack := &models.RefreshAck{
		Status:    models.RefreshStatusStarted,
		RequestID: uuid.NewString(),
		Symbols:   symbols,
		Types:     types,
	}

	now := uc.now().UTC()
	jobs := make([]models.RefreshJob, 0, len(symbols)*len(types))
	for _, sym := range symbols {
		for _, t := range types {
			jobs = append(jobs, models.RefreshJob{
				ID:          uuid.NewString(),
				RequestID:   ack.RequestID,
				Symbol:      sym,
				Type:        t,
				RequestedAt: now,
			})
		}
	}
	if len(jobs) == 0 {
		return ack, nil
	}

	if err := uc.dispatcher.Dispatch(ctx, jobs); err != nil {
		return nil, fmt.Errorf("dispatch refresh via %s: %w", uc.dispatcher.Name(), err)
	}
	uc.l.Info("refresh dispatched",
		applogger.String("request_id", ack.RequestID),
		applogger.String("dispatcher", uc.dispatcher.Name()),
		applogger.Strings("symbols", symbols),
		applogger.Int("jobs", len(jobs)))
	return ack, nil
}

func refreshTypes(raw []string) ([]models.RefreshType, error) {
	if len(raw) == 0 {
		return append([]models.RefreshType(nil), models.AllRefreshTypes...), nil
	}
	out := make([]models.RefreshType, 0, len(raw))
	seen := make(map[models.RefreshType]struct{}, len(raw))
	for _, s := range raw {
		t := models.RefreshType(s)
		if t != models.RefreshFundamental && t != models.RefreshTechnical {
			return nil, fmt.Errorf("unknown refresh type %q", s)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Refresher executes refresh jobs: a forced fetch from the static providers
// followed by an append, bypassing the staleness check.
type Refresher struct {
	fundRepo   domrepo.FundamentalsRepository
	techRepo   domrepo.TechnicalsRepository
	fundSrc    domsvc.FundamentalsProvider
	techSrc    domsvc.TechnicalsProvider
	timeframes domrepo.TimeframePolicy
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

func NewRefresher(
	fundRepo domrepo.FundamentalsRepository,
	techRepo domrepo.TechnicalsRepository,
	fundSrc domsvc.FundamentalsProvider,
	techSrc domsvc.TechnicalsProvider,
	timeframes domrepo.TimeframePolicy,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *Refresher {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &Refresher{
		fundRepo:   fundRepo,
		techRepo:   techRepo,
		fundSrc:    fundSrc,
		techSrc:    techSrc,
		timeframes: timeframes,
		metrics:    metrics,
		l:          l,
	}
}

// Execute runs one job. Unknown symbols complete without writing.
func (r *Refresher) Execute(ctx context.Context, job models.RefreshJob) error {
	sym := util.NormalizeSymbol(job.Symbol)
	log := r.l.With(
		applogger.String("job_id", job.ID),
		applogger.String("request_id", job.RequestID),
		applogger.String("symbol", sym),
		applogger.String("type", string(job.Type)))

	var (
		written int
		err     error
	)
	switch job.Type {
	case models.RefreshFundamental:
		written, err = r.refreshFundamentals(ctx, sym)
	case models.RefreshTechnical:
		written, err = r.refreshTechnicals(ctx, sym)
	default:
		err = fmt.Errorf("unknown refresh type %q", job.Type)
	}

	switch {
	case err != nil:
		r.metrics.RecordRefreshJob(string(job.Type), refreshError)
		log.Error("refresh job failed", applogger.Error(err))
		return err
	case written == 0:
		r.metrics.RecordRefreshJob(string(job.Type), refreshNoop)
		log.Info("refresh job found no source data")
	default:
		r.metrics.RecordRefreshJob(string(job.Type), refreshOK)
		log.Debug("refresh job done", applogger.Int("rows", written))
	}
	return nil
}

func (r *Refresher) refreshFundamentals(ctx context.Context, sym string) (int, error) {
	s, err := r.fundSrc.Fundamentals(ctx, sym)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := r.fundRepo.Append(ctx, s); err != nil {
		return 0, err
	}
	r.metrics.RecordSnapshotWrite(kindFundamentals)
	return 1, nil
}

func (r *Refresher) refreshTechnicals(ctx context.Context, sym string) (int, error) {
	written := 0
	for _, tf := range r.timeframes.Allowed() {
		s, err := r.techSrc.Technicals(ctx, sym, tf)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return written, err
		}
		if err := r.techRepo.Append(ctx, s); err != nil {
			return written, err
		}
		r.metrics.RecordSnapshotWrite(kindTechnicals)
		written++
	}
	return written, nil
}

// QueueDispatcher publishes each job as a queue message. Backs both the
// in-process pool and the Redis queue.
type QueueDispatcher struct {
	name string
	pub  queue.Publisher
}

func NewQueueDispatcher(name string, pub queue.Publisher) *QueueDispatcher {
	return &QueueDispatcher{name: name, pub: pub}
}

func (d *QueueDispatcher) Name() string { return d.name }

// Dispatch enqueues every job and reports all enqueue failures together.
func (d *QueueDispatcher) Dispatch(ctx context.Context, jobs []models.RefreshJob) error {
	var errs []error
	for _, job := range jobs {
		if err := d.pub.PublishMessage(ctx, RefreshJobType, job); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", job.Symbol, job.Type, err))
		}
	}
	return errors.Join(errs...)
}

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaDispatcher writes jobs to a topic keyed by symbol, so jobs for one
// symbol stay on one partition.
type KafkaDispatcher struct {
	pub   batchPublisher
	topic string
}

func NewKafkaDispatcher(pub batchPublisher, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{pub: pub, topic: topic}
}

func (d *KafkaDispatcher) Name() string { return "kafka" }

func (d *KafkaDispatcher) Dispatch(ctx context.Context, jobs []models.RefreshJob) error {
	msgs := make([]pkgkafka.Message, 0, len(jobs))
	for _, job := range jobs {
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(job.Symbol),
			Value:   job,
			Headers: []kafka.Header{{Key: pkgkafka.TraceHeader, Value: []byte(job.RequestID)}},
		})
	}
	return d.pub.PublishBatch(ctx, d.topic, msgs)
}

// RefreshQueueJob adapts Refresher to queue.Job.
type RefreshQueueJob struct {
	refresher *Refresher
}

func NewRefreshQueueJob(r *Refresher) *RefreshQueueJob { return &RefreshQueueJob{refresher: r} }

func (j *RefreshQueueJob) Name() string { return "snapshot-refresh" }
func (j *RefreshQueueJob) Type() string { return RefreshJobType }

func (j *RefreshQueueJob) Handle(ctx context.Context, payload interface{}) error {
	job, err := queue.ParsePayload[models.RefreshJob](payload)
	if err != nil {
		return err
	}
	return j.refresher.Execute(ctx, *job)
}

// RefreshKafkaHandler adapts Refresher to pkg/kafka.MessageHandler.
type RefreshKafkaHandler struct {
	topic     string
	refresher *Refresher
}

func NewRefreshKafkaHandler(topic string, r *Refresher) *RefreshKafkaHandler {
	return &RefreshKafkaHandler{topic: topic, refresher: r}
}

func (h *RefreshKafkaHandler) Topic() string { return h.topic }

func (h *RefreshKafkaHandler) Handle(ctx context.Context, b []byte) error {
	var job models.RefreshJob
	if err := json.Unmarshal(b, &job); err != nil {
		return fmt.Errorf("decode refresh job: %w", err)
	}
	return h.refresher.Execute(ctx, job)
}
