// Package reaperservice implements the Reaper (C8): periodic sweeps that
// expire stale offer reservations, close out numbers past their expiry
// (recovering a late-arriving SMS first), recover zombie reservations whose
// funds never reached a terminal state, and probabilistically purge old
// terminal rows. It owns no aggregate of its own — every sweep drives
// catalog-service, activation-service's Kernel, and wallet-service through
// their existing collaborator contracts.
package reaperservice
