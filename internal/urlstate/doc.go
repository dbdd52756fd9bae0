// Package urlstate keeps list-view state (pagination, sorting, search and
// filter fields) and the query string of the page URL in agreement.
//
// The package has four cooperating pieces:
//
//   - Schema: the declared fields and their defaults. It doubles as the URL
//     codec (Encode, Decode, DecodePartial, Canonical).
//   - Store: the in-memory state with a merge-style updater and change
//     listeners.
//   - Reconciler: decides whether a state change must be written to the URL
//     and whether an observed URL change must overwrite the state, without
//     feeding back its own writes.
//   - Binding: the public surface tying a Store and a Reconciler to a Router.
//
// Data flow:
//
//	SetState -> Store.Update -> Reconciler.Sync -> Router.Navigate
//	Router change event -> Reconciler.Observe -> Store.Replace
//
// Values equal to their default are never written to the URL, so a field
// explicitly set to its default and an absent field are indistinguishable
// ("default collapse"). Decoding never fails: malformed parameters fall back
// to the field default.
package urlstate
