// Package tandem provides primary/replica read-write splitting for SQL
// databases.
//
// Tandem routes each operation to the right backend: writes always hit
// the primary, reads prefer the replica but move back to the primary
// when the replica is down, lagging behind a recent write, or failing
// repeatedly. Routing state is process-local and cheap to consult.
//
// # Key Features
//
//   - Read-Write Splitting: Writes to the primary, reads to the replica
//   - Replication-Lag Awareness: Reads after a tracked write stay on the
//     primary until the replica has plausibly caught up
//   - Throttled Health Probing: Replica liveness checked at most once per
//     interval, with failover and recovery transitions
//   - Bounded Retries: Transient errors retried with linear backoff,
//     permanent replica failures redirected to the primary mid-flight
//   - Driver Agnostic: Works with any database/sql driver via a small
//     adapter interface
//
// # Basic Usage
//
//	primary, _ := sql.Open("pgx", primaryDSN)
//	replica, _ := sql.Open("pgx", replicaDSN)
//
//	client, err := tandem.NewClientFromDB(primary, replica)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Reads route to the replica when it is healthy and caught up
//	balance, err := tandem.Read(ctx, client, true,
//	    func(ctx context.Context, db tandem.DB) (int64, error) {
//	        var b int64
//	        err := db.QueryRowContext(ctx,
//	            "SELECT balance FROM accounts WHERE id = $1", id).Scan(&b)
//	        return b, err
//	    })
//
//	// Writes route to the primary and open a replication window
//	_, err = tandem.Write(ctx, client, true,
//	    func(ctx context.Context, db tandem.DB) (sql.Result, error) {
//	        return db.ExecContext(ctx,
//	            "UPDATE accounts SET balance = balance - $1 WHERE id = $2",
//	            amount, id)
//	    })
//
// # Read-Your-Writes
//
// A tracked write (trackReplication=true) marks the moment replication
// started. Until the configured lag threshold has elapsed, reads with
// fallbackAllowed=true are redirected to the primary so callers observe
// their own writes; reads with fallbackAllowed=false stay on the replica
// and accept staleness.
//
// By default all callers share one mark, so any tracked write redirects
// everyone's reads for the duration of the window. Sessions scope the
// window to one caller:
//
//	ctx, done := client.WithSession(ctx)
//	defer done()
//
//	tandem.Write(ctx, client, true, transferFunds) // marks only this session
//	tandem.Read(ctx, client, true, loadStatement)  // primary, sees the write
//
// Reads outside the session keep using the replica.
//
// # Health and Failover
//
// The replica is probed lazily on the read path, at most once per health
// check interval; between probes routing uses the cached state. One
// failed probe fails the replica over to the primary, one successful
// probe recovers it. Probes run detached from caller deadlines under
// their own timeout, and concurrent checks share a single probe.
//
// Observe transitions through the event channel or a callback:
//
//	go func() {
//	    for tr := range client.Events() {
//	        log.Printf("replica %s -> %s", tr.From, tr.To)
//	    }
//	}()
//
// WithBackgroundProbing moves probing off the read path entirely.
//
// # Error Handling
//
// Operation errors are classified as transient or permanent. Transient
// errors (connection resets, timeouts, deadlocks) are retried with
// linear backoff and absorbed unless attempts run out. Permanent errors
// on a replica read trigger one immediate retry against the primary;
// permanent errors on a write or on the primary propagate as-is, so a
// non-idempotent write is never silently re-applied.
//
// When attempts run out, a types.ExhaustedError carries the last
// underlying error:
//
//	var exhausted *types.ExhaustedError
//	if errors.As(err, &exhausted) {
//	    log.Printf("%d attempts on %s: %v",
//	        exhausted.Attempts, exhausted.Target, exhausted.Err)
//	}
//
// Cancellation mid-retry surfaces a types.CancelledError wrapping the
// context's error.
//
// # Sentinel Errors
//
// Tandem defines several sentinel errors for specific scenarios:
//
//   - types.ErrClosed: Operation attempted on a closed client
//   - types.ErrNilPrimary: Client constructed without a primary handle
//   - types.ErrNilOperation: RunRead/RunWrite called with a nil operation
//   - types.ErrNoReplica: Replica-specific call in primary-only mode
//   - types.ErrInvalidConfig: Negative configuration value
//   - types.ErrAttemptsExhausted: Matched by ExhaustedError via errors.Is
//   - types.ErrCancelled: Matched by CancelledError via errors.Is
//
// Check for sentinel errors using errors.Is:
//
//	if errors.Is(err, types.ErrAttemptsExhausted) {
//	    // All attempts failed; the last error is wrapped inside
//	}
//
// # Context and Timeouts
//
// Every operation takes a context and respects its cancellation during
// backoff sleeps and the database call itself. The replica health probe
// is the one exception: it detaches from the caller's context and runs
// under the configured probe timeout, so one impatient caller cannot
// fail the replica over for everyone else.
//
// # Transactions
//
// A transaction opened with BeginTx binds to the backend chosen when the
// operation started; it never spans a routing change. Run transactional
// work inside a single RunWrite so every statement lands on the primary.
package tandem
