package model

import "time"

const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

// Prediction stores the submitted clinical inputs together with the score
// they produced, so the history stays valid if the model changes later.
type Prediction struct {
	ID     string `gorm:"primaryKey;size:16" json:"id"`
	UserID string `gorm:"index;not null;size:16" json:"-"`

	Age               int     `json:"age"`
	Sex               int     `json:"sex"`           // 1 male, 0 female
	ChestPainType     int     `json:"chestPainType"` // 0 typical angina .. 3 asymptomatic
	RestingBP         int     `json:"restingBP"`
	Cholesterol       int     `json:"cholesterol"`
	FastingBloodSugar bool    `json:"fastingBloodSugar"` // > 120 mg/dl
	RestingECG        int     `json:"restingECG"`
	MaxHeartRate      int     `json:"maxHeartRate"`
	ExerciseAngina    bool    `json:"exerciseAngina"`
	Oldpeak           float64 `json:"oldpeak"`
	STSlope           int     `json:"stSlope"`
	MajorVessels      int     `json:"majorVessels"`
	Thalassemia       int     `json:"thalassemia"`

	Probability  float64     `json:"probability"`
	RiskLevel    string      `gorm:"index;size:16" json:"riskLevel"`
	RiskFactors  StringSlice `json:"riskFactors"`
	ModelVersion string      `gorm:"size:32" json:"modelVersion"`
	Notes        string      `gorm:"size:1000" json:"notes,omitempty"`
	CreatedAt    time.Time   `gorm:"index" json:"createdAt"`
}
