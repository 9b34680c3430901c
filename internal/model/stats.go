package model

// Stats is the admin dashboard summary. It is computed, not stored.
type Stats struct {
	TotalUsers       int64            `json:"totalUsers"`
	VerifiedUsers    int64            `json:"verifiedUsers"`
	AdminUsers       int64            `json:"adminUsers"`
	ActiveSessions   int64            `json:"activeSessions"`
	TotalPredictions int64            `json:"totalPredictions"`
	PredictionsToday int64            `json:"predictionsToday"`
	NewUsersThisWeek int64            `json:"newUsersThisWeek"`
	RiskBreakdown    map[string]int64 `json:"riskBreakdown"`
}
