// Package engine is clipbot's content distribution core: the shared
// provider token cache, the bounded sent-links ledger, per-chat subscriber
// state, the global follow registry, and the polling loop that fans fresh
// clips out to active subscribers at most once each.
package engine
