// Package usercode implements the user-code feature module of the
// entry-control command protocol: numeric access codes on door locks and
// keypads, the optional privileged master code, and the keypad operating
// mode.
//
// The module encodes outgoing requests into exact byte layouts, decodes
// incoming reports into typed values, projects decoded facts into the
// canonical value store, and runs a capability-aware synchronization
// sequence that keeps the store consistent with device state using as few
// exchanges as possible.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                        User Code Module                              │
//	│                                                                      │
//	│  ┌────────────┐   ┌────────────┐   ┌────────────┐   ┌────────────┐   │
//	│  │  Manager   │──▶│ Validation │──▶│   Codec    │   │ Projection │   │
//	│  │(manager.go)│   │(validate.go│   │ (codec.go, │   │(project.go)│   │
//	│  │  sync.go   │   │            │   │ bitmask.go)│   │            │   │
//	│  └────────────┘   └────────────┘   └────────────┘   └────────────┘   │
//	│        │                                 │                 │         │
//	└────────│─────────────────────────────────│─────────────────│─────────┘
//	         ▼                                 ▼                 ▼
//	┌──────────────────┐              ┌──────────────┐   ┌──────────────────┐
//	│    Transport     │              │ Wire frames  │   │   Value store    │
//	│ (internal/       │              │ (big-endian  │   │ (internal/       │
//	│  gateway)        │              │  layouts)    │   │  valuestore)     │
//	└──────────────────┘              └──────────────┘   └──────────────────┘
//
// # Protocol generations
//
// Two incompatible generations share the command class. Version 1 has
// 8-bit user ids, digit-only codes and no optional features; version 2
// adds capability bitmasks, 16-bit user ids, paginated extended reports,
// the master code, keypad modes and a checksum that lets synchronization
// skip a full walk when nothing changed.
//
// # Collaborators
//
// The module performs no concurrent work and owns no I/O. The Transport
// collaborator carries frames and matches reports to requests; the
// ValueStore collaborator persists projected facts (last-write-wins).
// Synchronization runs for one endpoint must be serialized by the caller.
//
// # Usage
//
//	mgr := usercode.NewManager(endpoint, version, transport, store)
//	mgr.SetLogger(log)
//
//	// Initial full synchronization (probe + walk)
//	stats, err := mgr.Synchronize(ctx, true)
//
//	// Write a code
//	err = mgr.Set(ctx, 3, usercode.StatusEnabled, "4921")
//
//	// Clear every slot
//	err = mgr.Clear(ctx, 0)
package usercode
