package library

// MaterialView is a read-only snapshot of a material for display.
// DaysCheckedOut is -1 while the material is available.
type MaterialView struct {
	ID             int    `json:"id"`
	Type           string `json:"type"`
	Available      bool   `json:"available"`
	DaysCheckedOut int    `json:"days_checked_out"`
	Overdue        bool   `json:"overdue"`
	OverdueCost    int    `json:"overdue_cost"`
}

// UserView is a read-only snapshot of an enrolled user.
type UserView struct {
	ID           int    `json:"id"`
	Organization string `json:"organization"`
	Held         []int  `json:"held"`
}

// OrganizationView is a read-only snapshot of an organization's account.
type OrganizationView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	FineBalance int    `json:"fine_balance"`
	Members     []int  `json:"members"`
}

// Snapshot is the complete circulation state, ordered by id, for export.
type Snapshot struct {
	Types         []MaterialType     `json:"types"`
	Materials     []MaterialView     `json:"materials"`
	Users         []UserView         `json:"users"`
	Organizations []OrganizationView `json:"organizations"`
}
