package dto

// DashboardStats aggregates record counts by lifecycle status.
type DashboardStats struct {
	Total    int `json:"total"`
	Draft    int `json:"draft"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
