package transfer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"mediaferry/internal/blobstore"
	"mediaferry/internal/config"
	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/metrics"
	"mediaferry/internal/naming"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
)

// Authenticator resolves a session cookie to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, cookie string) (*media.User, error)
}

// Entities is the entity repository contract.
type Entities interface {
	GetByID(ctx context.Context, id string) (*media.Entity, error)
	GetByIDs(ctx context.Context, ids []string) ([]*media.Entity, error)
	Update(ctx context.Context, entity *media.Entity) error
}

// Enqueuer hands work to the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind queue.Kind, payload queue.Payload, attemptsAllowed int) (*queue.Task, error)
}

// Dependencies are the collaborators a Manager drives.
type Dependencies struct {
	Registry *registry.Registry
	Auth     Authenticator
	Entities Entities
	// Store is the final media store downloads read from and names are
	// allocated in.
	Store blobstore.Store
	// Staging receives uploaded bytes until tasks move them.
	Staging blobstore.Store
	Tasks   Enqueuer
	Metrics *metrics.TransferMetrics
}

// Options tune transfer behavior.
type Options struct {
	ChunkSize      int
	MaxUploadBytes int64
	Overwrite      bool
	Formats        naming.Formats
	Attempts       int
}

// OptionsFromConfig derives Options from the daemon configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChunkSize:      cfg.Server.ChunkSize,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Overwrite:      cfg.Storage.Overwrite,
		Formats: naming.Formats{
			Image: cfg.Encoding.ImageFormat,
			Video: cfg.Encoding.VideoFormat,
		},
		Attempts: cfg.Tasks.Attempts,
	}
}

// Manager runs the transfer state machine for every connection.
type Manager struct {
	deps     Dependencies
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	newKey   func() string

	wg sync.WaitGroup
}

// NewManager constructs a Manager.
func NewManager(deps Dependencies, opts Options, logger *slog.Logger) *Manager {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1 << 20
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "transfer"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newKey:   uuid.NewString,
	}
}

// Wait blocks until every download stream started by the Manager has ended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Disconnect releases every lock held by conn and removes it from the
// registry. It is safe to call more than once.
func (m *Manager) Disconnect(conn *registry.Connection) {
	state := conn.State()
	conn.Reset()
	m.deps.Registry.Remove(conn.ID())
	switch state {
	case registry.StateDownloading:
		m.deps.Metrics.RecordFinish(metrics.DirectionDownload, metrics.OutcomeAborted)
	case registry.StateUploading:
		m.deps.Metrics.RecordFinish(metrics.DirectionUpload, metrics.OutcomeAborted)
	}
	m.connLogger(conn).Debug("connection released", logging.String("state", state.String()))
}

// Reject reports err on conn without touching its state. Transports use it
// for frames that never reach a handler, such as malformed JSON.
func (m *Manager) Reject(conn *registry.Connection, err error) {
	m.emitFailure(conn, err)
}

// fail reports err, returns conn to idle and releases its locks.
func (m *Manager) fail(conn *registry.Connection, direction string, err error) {
	conn.Reset()
	m.report(conn, direction, err)
}

func (m *Manager) report(conn *registry.Connection, direction string, err error) {
	outcome := metrics.OutcomeException
	if IsBadRequest(err) {
		outcome = metrics.OutcomeBadRequest
	}
	m.deps.Metrics.RecordFinish(direction, outcome)
	m.emitFailure(conn, err)
}

func (m *Manager) emitFailure(conn *registry.Connection, err error) {
	logger := m.connLogger(conn)
	var br *BadRequestError
	if errors.As(err, &br) {
		logger.Info("transfer request rejected", logging.String("reason", br.Message))
		m.send(conn, EventBadRequest, Message{Message: br.Message})
		return
	}
	message := msgServerFault
	var exc *exceptionError
	if errors.As(err, &exc) {
		message = exc.message
	}
	logging.ErrorWithContext(logger, "transfer failed", "transfer_exception",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the entity store and blob store"),
	)
	m.send(conn, EventException, Message{Message: message})
}

func (m *Manager) send(conn *registry.Connection, event string, payload any) bool {
	sender := conn.Sender()
	if sender == nil {
		return false
	}
	if err := sender.SendEvent(event, payload); err != nil {
		m.connLogger(conn).Debug("send failed", logging.String(logging.FieldEventType, event), logging.Error(err))
		return false
	}
	return true
}

func (m *Manager) connLogger(conn *registry.Connection) *slog.Logger {
	return m.logger.With(logging.ConnectionID(conn.ID()))
}

// exceptionError carries a client-facing message for the exception channel
// while keeping the underlying cause for logs.
type exceptionError struct {
	message string
	cause   error
}

func (e *exceptionError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *exceptionError) Unwrap() error {
	return e.cause
}

func exception(message string, cause error) error {
	return &exceptionError{message: message, cause: cause}
}
