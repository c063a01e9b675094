// Package valuestore provides the persisted per-endpoint value store for
// Ironlatch Core.
//
// The store is the canonical record of everything learned from an
// entry-control device: user-code slots, capability facts, the cached
// user-code checksum, keypad mode and master code. Feature modules project
// decoded reports into it and read it back to decide what to query next.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Value Store                             │
//	│                                                                  │
//	│  ┌──────────────────┐    ┌──────────────────┐                    │
//	│  │      Store       │    │    Repository    │                    │
//	│  │    (store.go)    │───▶│ (repository.go)  │                    │
//	│  │                  │    │                  │                    │
//	│  │ • Get/Set/Remove │    │ • SQLite queries │                    │
//	│  │ • Metadata       │    │ • JSON marshal   │                    │
//	│  │ • In-memory cache│    │ • Upsert/Delete  │                    │
//	│  └──────────────────┘    └──────────────────┘                    │
//	│           │                       │                              │
//	└───────────│───────────────────────│──────────────────────────────┘
//	            │                       ▼
//	            │              ┌──────────────────────┐
//	            │              │   SQLite Database    │
//	            ▼              │  (endpoint_values,   │
//	┌──────────────────────┐   │   endpoint_value_    │
//	│  Feature modules     │   │   metadata tables)   │
//	│  (internal/usercode) │   └──────────────────────┘
//	└──────────────────────┘
//
// # Key Types
//
//   - Key: (endpoint, property, optional userID sub-index) address of a value
//   - Record: a persisted value with its update timestamp
//   - Metadata: value shape (enumerated states or string length bounds)
//
// # Semantics
//
// The store is last-write-wins. Removal of an absent key is a no-op, which
// feature modules rely on for idempotent deletion. Values survive restarts;
// the in-memory cache is rebuilt from SQLite on startup via RefreshCache.
//
// # Thread Safety
//
// The Store is safe for concurrent use. All cache access is protected by a
// read-write mutex; the Repository implementation must also be thread-safe.
package valuestore
