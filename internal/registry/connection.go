package registry

import (
	"bytes"
	"errors"
	"slices"
	"sync"
	"time"

	"mediaferry/internal/media"
)

// State is a connection's transfer phase.
type State int

const (
	StateIdle State = iota
	StateDownloading
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateUploading:
		return "uploading"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned when a transfer starts on a non-idle connection.
	ErrBusy = errors.New("connection is busy")
	// ErrNotUploading is returned for upload traffic outside an upload.
	ErrNotUploading = errors.New("must initiate upload first")
	// ErrUploadTooLarge is returned when the upload buffer would exceed its limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// Sender delivers outbound events to the client.
type Sender interface {
	// SendEvent queues a named event with a JSON payload (nil for none).
	SendEvent(event string, payload any) error
	// SendChunk queues a binary download chunk.
	SendChunk(data []byte) error
}

// Closer terminates the underlying transport.
type Closer interface {
	Close(reason string)
}

// Upload is the state handed over by TakeUpload.
type Upload struct {
	Target       media.SourceRef
	ExpectedHash string
	Filename     string
	Data         []byte
}

// Info is a point-in-time view of a connection for admin listings.
type Info struct {
	ID            string           `json:"id"`
	RemoteAddr    string           `json:"remoteAddr,omitempty"`
	UserID        string           `json:"userId,omitempty"`
	State         string           `json:"state"`
	ConnectedAt   time.Time        `json:"connectedAt"`
	Downloading   []string         `json:"downloading"`
	Target        *media.SourceRef `json:"target,omitempty"`
	Filename      string           `json:"filename,omitempty"`
	BufferedBytes int              `json:"bufferedBytes"`
}

// Connection is one connected client.
type Connection struct {
	id          string
	remoteAddr  string
	connectedAt time.Time
	sender      Sender
	closer      Closer

	mu           sync.Mutex
	userID       string
	state        State
	epoch        uint64
	downloading  map[string]struct{}
	target       *media.SourceRef
	buffer       bytes.Buffer
	expectedHash string
	filename     string
}

// NewConnection builds an idle connection.
func NewConnection(id, remoteAddr string, sender Sender, closer Closer) *Connection {
	return &Connection{
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now().UTC(),
		sender:      sender,
		closer:      closer,
		downloading: make(map[string]struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// Sender returns the outbound event channel.
func (c *Connection) Sender() Sender {
	return c.sender
}

// State returns the current transfer phase.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin moves an idle connection to next and returns the epoch naming this
// transfer. It fails with ErrBusy otherwise, so a second init on the same
// connection is rejected without side effects.
func (c *Connection) Begin(next State) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return 0, ErrBusy
	}
	c.epoch++
	c.state = next
	return c.epoch, nil
}

// SetUser records the authenticated user for admin listings.
func (c *Connection) SetUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// LockDownloads adds entity ids to the download lock set. It refuses and
// returns false once the download of epoch is no longer running.
func (c *Connection) LockDownloads(epoch uint64, ids []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.downloadingLocked(epoch) {
		return false
	}
	for _, id := range ids {
		c.downloading[id] = struct{}{}
	}
	return true
}

// StillDownloading reports whether the download of epoch may send another
// chunk.
func (c *Connection) StillDownloading(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadingLocked(epoch)
}

// FinishDownload releases the given download locks and returns to idle if
// the download of epoch is still running. Once a newer transfer has begun it
// changes nothing and returns false.
func (c *Connection) FinishDownload(epoch uint64, ids []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	for _, id := range ids {
		delete(c.downloading, id)
	}
	if c.state == StateDownloading {
		c.state = StateIdle
	}
	return true
}

// Append adds an upload chunk. limit <= 0 disables the size check.
func (c *Connection) Append(chunk []byte, limit int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUploading || c.target == nil {
		return ErrNotUploading
	}
	if limit > 0 && int64(c.buffer.Len()+len(chunk)) > limit {
		return ErrUploadTooLarge
	}
	c.buffer.Write(chunk)
	return nil
}

// TakeUpload snapshots the upload, releases the upload target and returns
// the connection to idle in one step.
func (c *Connection) TakeUpload() (Upload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUploading || c.target == nil {
		return Upload{}, ErrNotUploading
	}
	up := Upload{
		Target:       *c.target,
		ExpectedHash: c.expectedHash,
		Filename:     c.filename,
		Data:         bytes.Clone(c.buffer.Bytes()),
	}
	c.clearUploadLocked()
	c.state = StateIdle
	return up, nil
}

// Reset releases every lock the connection holds and returns it to idle.
func (c *Connection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.downloading)
	c.clearUploadLocked()
	c.state = StateIdle
}

// ResetIf is Reset scoped to the transfer of epoch. It returns false and
// leaves a newer transfer alone.
func (c *Connection) ResetIf(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	clear(c.downloading)
	c.clearUploadLocked()
	c.state = StateIdle
	return true
}

// Info returns a snapshot for admin listings.
func (c *Connection) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{
		ID:            c.id,
		RemoteAddr:    c.remoteAddr,
		UserID:        c.userID,
		State:         c.state.String(),
		ConnectedAt:   c.connectedAt,
		Downloading:   c.downloadIDsLocked(),
		Filename:      c.filename,
		BufferedBytes: c.buffer.Len(),
	}
	if c.target != nil {
		target := *c.target
		info.Target = &target
	}
	return info
}

func (c *Connection) close(reason string) {
	if c.closer != nil {
		c.closer.Close(reason)
	}
}

func (c *Connection) setUploadTargetLocked(ref media.SourceRef, hash, filename string) {
	target := ref
	c.target = &target
	c.expectedHash = hash
	c.filename = filename
	c.buffer.Reset()
}

func (c *Connection) clearUploadLocked() {
	c.target = nil
	c.expectedHash = ""
	c.filename = ""
	c.buffer = bytes.Buffer{}
}

func (c *Connection) downloadingLocked(epoch uint64) bool {
	return c.epoch == epoch && c.state == StateDownloading
}

func (c *Connection) downloadIDsLocked() []string {
	ids := make([]string, 0, len(c.downloading))
	for id := range c.downloading {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Connection) uploadEntityLocked() (string, bool) {
	if c.target == nil {
		return "", false
	}
	return c.target.MainID, true
}
