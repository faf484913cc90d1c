// Package pollmanagerservice implements the Unified Poll Manager (C7): an
// adaptive, batched, provider-grouped polling engine driven by a
// time-ordered due-index. It owns no aggregate of its own — it drives
// activation-service's Kernel and the provider registry toward either the
// SMS-received sub-protocol or a rescheduled next-poll tick.
package pollmanagerservice
