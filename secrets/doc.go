// Package secrets retrieves database credentials from secret stores.
//
// The Loader interface abstracts where credentials come from. Two
// implementations are provided:
//
//   - Static: an in-memory map, for tests and local development.
//   - Manager: AWS Secrets Manager, for production deployments where
//     database credentials are rotated outside the application.
//
// Secret payloads are JSON documents in the RDS-managed format:
//
//	{"username":"app","password":"s3cret","host":"db.internal","port":5432,"dbname":"bank"}
//
// # Usage
//
// Load primary and replica credentials, then build pools from them:
//
//	loader, err := secrets.NewManager(ctx, secrets.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	primaryCreds, err := loader.Load(ctx, cfg.PrimarySecretID)
//	if err != nil {
//	    return err
//	}
//
//	primary, err := pool.Open(ctx, pool.Config{
//	    Driver: pool.DriverPostgres,
//	    DSN:    pool.PostgresDSN(primaryCreds),
//	})
//
// A deployment without a replica simply omits the replica secret ID and
// passes a nil replica handle to tandem.NewClient, which selects
// primary-only routing.
package secrets
