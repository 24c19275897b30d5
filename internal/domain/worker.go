package domain

// Worker is read-only, owned by the external directory.
type Worker struct {
	WorkerID       string    `json:"worker_id"`
	FullName       string    `json:"full_name"`
	HomeBranchID   string    `json:"home_branch_id"`
	DefaultShift   ShiftCode `json:"default_shift,omitempty"`
	Position       string    `json:"position,omitempty"`
	ExternalHandle string    `json:"external_handle"` // messaging chat id
}

// Branch with its registered office network addresses.
type Branch struct {
	BranchID  string   `json:"branch_id"`
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
}
