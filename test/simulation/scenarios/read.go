// Package scenarios contains the fault and routing scenarios the
// simulation runs against a live client.
package scenarios

import (
	"context"
	"errors"

	"github.com/cloudbank/tandem"
	"github.com/cloudbank/tandem/test/simulation/types"
	tandemtypes "github.com/cloudbank/tandem/types"
)

var errNoWrites = errors.New("no writes tracked yet")

// readLatest reads the most recently written key through the client and
// reports which backend served the read and whether the row was found.
func readLatest(ctx context.Context, env *types.Environment, fallbackAllowed bool) (tandemtypes.Target, bool, error) {
	key, ok := env.Tracker.Latest()
	if !ok {
		return tandemtypes.TargetPrimary, false, errNoWrites
	}

	var served tandemtypes.Target
	found, err := env.Client.RunRead(ctx, fallbackAllowed,
		func(ctx context.Context, db tandem.DB) (any, error) {
			if target, ok := tandem.TargetFromContext(ctx); ok {
				served = target
			}

			rows, err := db.QueryContext(ctx, "SELECT id FROM sim_data WHERE id = ?", key.String())
			if err != nil {
				return false, err
			}
			defer func() { _ = rows.Close() }()

			return rows.Next(), rows.Err()
		})
	if err != nil {
		return served, false, err
	}

	return served, found.(bool), nil
}
