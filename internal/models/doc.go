// Package models defines the core domain models for Snaptab's live
// bill-splitting sessions.
//
// # Models
//
//   - SplitDocument: the canonical shared state for one split session
//   - Item: a receipt line item, assignable to multiple participants
//   - Participant: a person in the split, identified by a client-generated ID
//   - Status: the four-state session lifecycle (waiting/active/locked/ended)
//   - LocalSession: the device-persisted record used to resume a session
//
// # Design Principles
//
//  1. **Whole-document sharing**: the SplitDocument is replicated across
//     devices as a single value; there is no per-field merge logic, so the
//     models carry no version or sequence metadata of their own.
//  2. **IDs over pointers**: relationships (item assignment, host, split
//     groups) use ID strings rather than object references, keeping the
//     document trivially serializable.
//  3. **Client-generated identity**: participant and item IDs are minted on
//     the device that creates them; the remote store never assigns IDs.
package models
