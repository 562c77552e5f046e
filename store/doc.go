// Package store persists pain point records in a SQL database through bun.
//
// # Components
//
//   - Provider: hands out pooled connections and rations attempts while the
//     store is unreachable
//   - Schema: create-if-absent DDL plus a destructive reset for bootstrap
//   - Repository: the five statements the domain service needs
//   - mapper: rows to records and records to bound insert values
//
// # Drivers
//
// Open supports the embedded sqlite3 driver (mattn/go-sqlite3) and postgres
// (lib/pq), selecting the matching bun dialect:
//
//	db, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: "file:painpoint.db"})
//	provider := store.NewProvider(db, store.WithRetryBudget(10))
//	repo := store.NewRepository(provider, logger)
//
// # Unreachable Stores
//
// Connection errors are classified. Refused connections, failed dials,
// sqlite CANTOPEN and a missing driver mark the store unreachable; the
// provider then refuses RetryBudget calls with ErrUnavailable before it
// probes again. Every other error is returned as is and does not change
// the provider's state.
//
// Statement errors are wrapped with the operation name and keep their cause,
// so errors.Is(err, store.ErrUnavailable) and errors.Is(err, store.ErrNotFound)
// work on everything the Repository returns.
package store
