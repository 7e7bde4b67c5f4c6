package models

// FileMeta carries caller-supplied metadata for one archive request.
type FileMeta struct {
	Filename     string   `json:"filename"`
	Tenant       *string  `json:"tenant,omitempty"`
	Workspace    *string  `json:"workspace,omitempty"`
	Visibility   string   `json:"visibility"`
	Tags         []string `json:"tags,omitempty"`
	DoNotArchive bool     `json:"do_not_archive,omitempty"`

	// SizeLimit is the policy maximum in bytes. Zero means "use the
	// configured policy maximum", which is independent of the provider's
	// per-attachment ceiling.
	SizeLimit int64 `json:"size_limit,omitempty"`
}

// PolicyDecision is the outcome of a policy check. A file is allowed iff
// Reasons is empty; every failed check contributes its own reason.
type PolicyDecision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}

// RouteDecision identifies the destination channel (and optional thread)
// for an upload. Derived from the route table; never persisted.
type RouteDecision struct {
	ChannelID string `json:"channel_id"`
	ThreadID  string `json:"thread_id,omitempty"`
}
