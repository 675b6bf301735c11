package tandem

import "context"

// Read runs a typed read operation through the client.
//
// This is a thin generic wrapper over [Client.RunRead] that spares the
// caller the result type assertion:
//
//	balance, err := tandem.Read(ctx, client, true,
//	    func(ctx context.Context, db tandem.DB) (int64, error) {
//	        var b int64
//	        err := db.QueryRowContext(ctx,
//	            "SELECT balance FROM accounts WHERE id = $1", id).Scan(&b)
//	        return b, err
//	    })
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - c: The routing client
//   - fallbackAllowed: Whether lagging replicas redirect the read to primary
//   - fn: The typed database call to run
//
// Returns:
//   - T: The operation's result, zero on error
//   - error: Same contract as [Client.RunRead]
func Read[T any](ctx context.Context, c *Client, fallbackAllowed bool, fn func(ctx context.Context, db DB) (T, error)) (T, error) {
	result, err := c.RunRead(ctx, fallbackAllowed, func(ctx context.Context, db DB) (any, error) {
		return fn(ctx, db)
	})
	if err != nil {
		var zero T

		return zero, err
	}

	typed, _ := result.(T)

	return typed, nil
}

// Write runs a typed write operation through the client.
//
// This is a thin generic wrapper over [Client.RunWrite] that spares the
// caller the result type assertion.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - c: The routing client
//   - trackReplication: Whether the write starts a replication window
//   - fn: The typed database call to run
//
// Returns:
//   - T: The operation's result, zero on error
//   - error: Same contract as [Client.RunWrite]
func Write[T any](ctx context.Context, c *Client, trackReplication bool, fn func(ctx context.Context, db DB) (T, error)) (T, error) {
	result, err := c.RunWrite(ctx, trackReplication, func(ctx context.Context, db DB) (any, error) {
		return fn(ctx, db)
	})
	if err != nil {
		var zero T

		return zero, err
	}

	typed, _ := result.(T)

	return typed, nil
}
