package slacksearch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// FunctionName is the table function name registered with the host engine.
	FunctionName = "search_slack"
	// DefaultBatchSize is the batch capacity used when the host does not choose one.
	DefaultBatchSize = 2048
)

// ScanRecorder observes finished Init calls. err is nil on success.
type ScanRecorder interface {
	RecordScan(rows int, err error)
}

// TableFunction drives the search_slack table function: Bind validates arguments once per
// query, Init fetches and buffers all rows once per scan, Pull drains the buffer.
type TableFunction struct {
	source   Source
	timeout  time.Duration
	logger   *log.Logger
	recorder ScanRecorder
}

// TableOption configures TableFunction.
type TableOption func(*TableFunction)

// WithInitTimeout bounds the fetch performed by Init. Zero or negative disables the bound.
func WithInitTimeout(d time.Duration) TableOption {
	return func(f *TableFunction) {
		f.timeout = d
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) TableOption {
	return func(f *TableFunction) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithScanRecorder registers a recorder notified after every Init.
func WithScanRecorder(r ScanRecorder) TableOption {
	return func(f *TableFunction) {
		f.recorder = r
	}
}

// NewTableFunction constructs a TableFunction reading from source.
func NewTableFunction(source Source, opts ...TableOption) *TableFunction {
	f := &TableFunction{
		source: source,
		logger: log.New(log.Default().Writer(), "slacksearch/table ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BindState is the immutable result of Bind. It is safe to share between concurrent scans.
type BindState struct {
	query string
}

// Query returns the bound search query.
func (b *BindState) Query() string {
	return b.query
}

// Schema returns the output columns declared at bind time.
func (b *BindState) Schema() []Column {
	return Schema()
}

// Bind validates the table function arguments. Exactly one non-null, non-empty string is
// accepted; nil values and nil *string count as null.
func (f *TableFunction) Bind(args ...any) (*BindState, error) {
	if len(args) != 1 {
		return nil, newError(KindArgument,
			"%s expects exactly one argument (search query), got %d", FunctionName, len(args))
	}

	var query string
	switch v := args[0].(type) {
	case nil:
		return nil, newError(KindArgument, "%s query cannot be NULL", FunctionName)
	case *string:
		if v == nil {
			return nil, newError(KindArgument, "%s query cannot be NULL", FunctionName)
		}
		query = *v
	case string:
		query = v
	default:
		return nil, newError(KindType, "%s query must be a string, got %T", FunctionName, args[0])
	}

	if strings.TrimSpace(query) == "" {
		return nil, newError(KindArgument, "%s query cannot be empty", FunctionName)
	}
	return &BindState{query: query}, nil
}

// Init performs the scan's single fetch and buffers every row before any is visible. Source
// failures are returned as KindExecution errors wrapping the original cause.
func (f *TableFunction) Init(ctx context.Context, bind *BindState) (*Scan, error) {
	if bind == nil {
		return nil, newError(KindArgument, "%s has not been bound", FunctionName)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scan := &Scan{id: uuid.NewString()}
	ctx, span := slackSearchTracer.Start(ctx, "slacksearch.table.init")
	defer span.End()
	span.SetAttributes(
		attribute.String("slackscan.scan_id", scan.id),
		attribute.String("slack.query_hash", telemetryFingerprint(bind.query)),
	)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := f.fetchRows(ctx, bind.query)
	elapsed := time.Since(start)
	recordScanMetrics(ctx, len(rows), elapsed, err)
	if f.recorder != nil {
		f.recorder.RecordScan(len(rows), err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "init_failed")
		f.logger.Printf("Scan %s failed after %s: %v", scan.id, elapsed.Round(time.Millisecond), err)
		return nil, err
	}

	scan.rows = rows
	scan.initialized = true
	span.SetAttributes(attribute.Int("slackscan.rows", len(rows)))
	f.logger.Printf("Scan %s buffered %d row(s) in %s", scan.id, len(rows), elapsed.Round(time.Millisecond))
	return scan, nil
}

func (f *TableFunction) fetchRows(ctx context.Context, query string) ([]Row, error) {
	if f.source == nil {
		return nil, wrapExecution(newError(KindConfiguration, "slack search source not configured"))
	}
	records, err := f.source.Fetch(ctx, query)
	if err != nil {
		return nil, wrapExecution(err)
	}
	return MaterializeAll(records), nil
}

// ScanPhase is the lifecycle position of a Scan.
type ScanPhase int

const (
	PhaseUninitialized ScanPhase = iota
	PhaseInitialized
	PhaseDraining
	PhaseDone
)

func (p ScanPhase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return "uninitialized"
	}
}

// Scan holds the buffered rows of one scan and its read offset. A Scan is owned by a single
// consumer and is not safe for concurrent Pull calls.
type Scan struct {
	id          string
	rows        []Row
	offset      int
	pulled      bool
	initialized bool
}

// ID returns the scan identifier used in logs and traces.
func (s *Scan) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Len returns the number of buffered rows.
func (s *Scan) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// Remaining returns the number of rows not yet pulled.
func (s *Scan) Remaining() int {
	if s == nil || !s.initialized {
		return 0
	}
	return len(s.rows) - s.offset
}

// Phase reports where the scan is in its lifecycle.
func (s *Scan) Phase() ScanPhase {
	switch {
	case s == nil || !s.initialized:
		return PhaseUninitialized
	case !s.pulled:
		return PhaseInitialized
	case s.offset >= len(s.rows):
		return PhaseDone
	default:
		return PhaseDraining
	}
}

// Pull copies up to len(dst) rows into dst starting at the current offset and returns how many
// were written. It never blocks or fetches; an exhausted or uninitialized scan yields 0.
func (s *Scan) Pull(dst []Row) int {
	if s == nil || !s.initialized {
		return 0
	}
	s.pulled = true
	n := copy(dst, s.rows[s.offset:])
	s.offset += n
	return n
}

// String implements fmt.Stringer for log output.
func (s *Scan) String() string {
	return fmt.Sprintf("scan %s (%s, %d/%d)", s.ID(), s.Phase(), s.Len()-s.Remaining(), s.Len())
}

// Close releases the buffered rows. Pull returns 0 afterwards.
func (s *Scan) Close() {
	if s == nil {
		return
	}
	s.rows = nil
	s.offset = 0
	s.initialized = false
}
