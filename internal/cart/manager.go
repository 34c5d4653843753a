package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/metrics"
)

const (
	defaultMirrorBuffer  = 256
	defaultMirrorTimeout = 5 * time.Second

	// Reconciliation triggers, used for logging and metrics labels.
	TriggerLogin   = "login"
	TriggerRefresh = "refresh"
)

// session pairs a cart cache with the principal bound to it and the
// reconciliation generation counter that serializes remote fetches.
type session struct {
	cache *Cache

	mu         sync.Mutex
	principal  uuid.UUID
	generation uint64
}

type mirrorJob struct {
	sess    *session
	ownerID uuid.UUID
	gen     uint64
	lines   []Line
}

// ManagerParams configures a session cart manager.
type ManagerParams struct {
	Remote        RemoteStore
	Logger        *logger.Logger
	Metrics       *metrics.CheckoutMetrics
	MirrorBuffer  int
	MirrorTimeout time.Duration
}

// Manager owns every live session cart. Mutations apply to the local cache
// synchronously and are mirrored to the remote store by a background worker.
// A successful mirror installs the server's post-write item list back into the
// local cache, so local and remote converge after every round trip; a mirror
// failure is logged and counted but never rolls the local cart back.
type Manager struct {
	remote        RemoteStore
	logg          *logger.Logger
	metrics       *metrics.CheckoutMetrics
	mirrorTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	mirror chan mirrorJob
	wg     sync.WaitGroup
}

// NewManager validates dependencies and starts the mirror worker.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Remote == nil {
		return nil, errors.New("remote cart store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	buffer := params.MirrorBuffer
	if buffer <= 0 {
		buffer = defaultMirrorBuffer
	}
	timeout := params.MirrorTimeout
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}

	m := &Manager{
		remote:        params.Remote,
		logg:          params.Logger,
		metrics:       params.Metrics,
		mirrorTimeout: timeout,
		sessions:      make(map[string]*session),
		mirror:        make(chan mirrorJob, buffer),
	}

	m.wg.Add(1)
	go m.mirrorWorker()

	return m, nil
}

// Close drains the mirror queue and stops the worker.
func (m *Manager) Close() {
	close(m.mirror)
	m.wg.Wait()
}

func (m *Manager) session(sessionID string) *session {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return sess
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		return sess
	}
	sess = &session{cache: NewCache()}
	m.sessions[sessionID] = sess
	return sess
}

// Get returns the current snapshot for the session, creating it when absent.
func (m *Manager) Get(ctx context.Context, sessionID string) Snapshot {
	return m.session(sessionID).cache.Snapshot()
}

// AddItem merges a line into the session cart and mirrors the result.
func (m *Manager) AddItem(ctx context.Context, sessionID string, line Line) (Snapshot, error) {
	sess := m.session(sessionID)
	snapshot, err := sess.cache.Add(line)
	if err != nil {
		return Snapshot{}, err
	}
	m.enqueueMirror(ctx, sess, snapshot)
	return snapshot, nil
}

// SetQuantity pins a line's quantity; zero removes the line.
func (m *Manager) SetQuantity(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) Snapshot {
	sess := m.session(sessionID)
	snapshot := sess.cache.SetQuantity(productID, quantity)
	m.enqueueMirror(ctx, sess, snapshot)
	return snapshot
}

// RemoveItem drops a line from the session cart.
func (m *Manager) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) Snapshot {
	sess := m.session(sessionID)
	snapshot := sess.cache.Remove(productID)
	m.enqueueMirror(ctx, sess, snapshot)
	return snapshot
}

// Clear empties the session cart and mirrors the empty state.
func (m *Manager) Clear(ctx context.Context, sessionID string) Snapshot {
	sess := m.session(sessionID)
	snapshot := sess.cache.Clear()
	m.enqueueMirror(ctx, sess, snapshot)
	return snapshot
}

// ClearLocal empties the session cart without mirroring. Checkout uses this
// after the transaction already cleared the server copy; bumping the
// generation drops any in-flight mirror response from before the clear.
func (m *Manager) ClearLocal(sessionID string) Snapshot {
	sess := m.session(sessionID)
	sess.mu.Lock()
	sess.generation++
	sess.mu.Unlock()
	return sess.cache.Clear()
}

// Principal returns the owner bound to the session, or uuid.Nil.
func (m *Manager) Principal(sessionID string) uuid.UUID {
	sess := m.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.principal
}

// BindPrincipal attaches an authenticated owner to the session and runs a
// login reconciliation, where the server cart overwrites the local one.
func (m *Manager) BindPrincipal(ctx context.Context, sessionID string, ownerID uuid.UUID) (Snapshot, error) {
	sess := m.session(sessionID)
	sess.mu.Lock()
	sess.principal = ownerID
	sess.mu.Unlock()
	return m.Reconcile(ctx, sessionID, TriggerLogin)
}

// UnbindPrincipal detaches the owner and clears the local cart. The server
// copy is left intact for the next login.
func (m *Manager) UnbindPrincipal(ctx context.Context, sessionID string) Snapshot {
	sess := m.session(sessionID)
	sess.mu.Lock()
	sess.principal = uuid.Nil
	sess.generation++
	sess.mu.Unlock()
	return sess.cache.Clear()
}

// Reconcile fetches the server cart and overwrites the local cache with it.
// Triggers are serialized through a per-session generation counter: each call
// claims a new generation before fetching, and a fetch result is discarded if
// a newer trigger claimed the counter in the meantime. Last trigger wins.
func (m *Manager) Reconcile(ctx context.Context, sessionID string, trigger string) (Snapshot, error) {
	sess := m.session(sessionID)

	owner, gen := m.beginReconcile(sess)
	if owner == uuid.Nil {
		return Snapshot{}, apperrors.New(apperrors.CodeUnauthorized, "session has no authenticated principal")
	}

	lines, err := m.remote.Fetch(ctx, owner)
	if err != nil {
		m.metrics.IncReconciliation(trigger, "failure")
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
			"trigger": trigger,
			"owner":   owner.String(),
		}), "cart reconciliation fetch failed, keeping local cart")
		return sess.cache.Snapshot(), apperrors.Wrap(apperrors.CodeDependency, err, "fetching server cart")
	}

	snapshot, applied := m.applyReconcile(sess, gen, lines)
	outcome := "applied"
	if !applied {
		outcome = "stale"
	}
	m.metrics.IncReconciliation(trigger, outcome)
	return snapshot, nil
}

// beginReconcile claims the next generation for the session.
func (m *Manager) beginReconcile(sess *session) (uuid.UUID, uint64) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.generation++
	return sess.principal, sess.generation
}

// applyReconcile overwrites the local cart only if gen is still current.
func (m *Manager) applyReconcile(sess *session, gen uint64, lines []Line) (Snapshot, bool) {
	sess.mu.Lock()
	current := sess.generation
	sess.mu.Unlock()
	if current != gen {
		return sess.cache.Snapshot(), false
	}
	return sess.cache.ReplaceAll(lines), true
}

// enqueueMirror schedules a remote write of the snapshot when the session is
// authenticated. The job captures the session's current generation so the
// response is dropped if a reconciliation or logout lands first. A full queue
// drops the job and counts it as a sync failure; the next mutation carries the
// whole cart state again.
func (m *Manager) enqueueMirror(ctx context.Context, sess *session, snapshot Snapshot) {
	sess.mu.Lock()
	owner := sess.principal
	gen := sess.generation
	sess.mu.Unlock()
	if owner == uuid.Nil {
		return
	}

	select {
	case m.mirror <- mirrorJob{sess: sess, ownerID: owner, gen: gen, lines: snapshot.Lines}:
	default:
		m.metrics.IncSyncFailure()
		m.logg.Warn(m.logg.WithUserID(ctx, owner.String()), "cart mirror queue full, dropping job")
	}
}

func (m *Manager) mirrorWorker() {
	defer m.wg.Done()
	for job := range m.mirror {
		ctx, cancel := context.WithTimeout(context.Background(), m.mirrorTimeout)
		lines, err := m.remote.Replace(ctx, job.ownerID, job.lines)
		cancel()
		if err != nil {
			m.metrics.IncSyncFailure()
			m.logg.Warn(m.logg.WithUserID(context.Background(), job.ownerID.String()),
				"cart mirror write failed, local cart unchanged")
			continue
		}
		// The response is the server's authoritative list; install it through
		// the same generation-checked path login reconciliation uses.
		m.applyReconcile(job.sess, job.gen, lines)
	}
}
