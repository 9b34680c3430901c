// Package predict scores heart disease risk from the 13 clinical features of
// the Cleveland heart disease dataset
package predict

import (
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"fmt"
	"math"
)

const ModelVersion = "logreg-cleveland-1.0"

const (
	moderateThreshold = 0.30
	highThreshold     = 0.60
)

// Input mirrors the request body of POST /api/predictions. Categorical
// features are zero based.
type Input struct {
	Age               int     `json:"age"`
	Sex               int     `json:"sex"`           // 1 male, 0 female
	ChestPainType     int     `json:"chestPainType"` // 0 typical, 1 atypical, 2 non-anginal, 3 asymptomatic
	RestingBP         int     `json:"restingBP"`     // mm Hg
	Cholesterol       int     `json:"cholesterol"`   // mg/dl
	FastingBloodSugar bool    `json:"fastingBloodSugar"`
	RestingECG        int     `json:"restingECG"` // 0 normal, 1 ST-T abnormality, 2 LV hypertrophy
	MaxHeartRate      int     `json:"maxHeartRate"`
	ExerciseAngina    bool    `json:"exerciseAngina"`
	Oldpeak           float64 `json:"oldpeak"`
	STSlope           int     `json:"stSlope"`      // 0 upsloping, 1 flat, 2 downsloping
	MajorVessels      int     `json:"majorVessels"` // 0..3
	Thalassemia       int     `json:"thalassemia"`  // 0 unknown, 1 normal, 2 fixed defect, 3 reversible defect
	Notes             string  `json:"notes"`
}

type Result struct {
	Probability  float64  `json:"probability"`
	RiskLevel    string   `json:"riskLevel"`
	RiskFactors  []string `json:"riskFactors"`
	ModelVersion string   `json:"modelVersion"`
}

// Validate returns a *validators.RangeError for the first field out of its
// clinical range
func (in Input) Validate() error {
	checks := []error{
		validators.IntRange("age", in.Age, 1, 120),
		validators.IntRange("sex", in.Sex, 0, 1),
		validators.IntRange("chestPainType", in.ChestPainType, 0, 3),
		validators.IntRange("restingBP", in.RestingBP, 50, 250),
		validators.IntRange("cholesterol", in.Cholesterol, 100, 600),
		validators.IntRange("restingECG", in.RestingECG, 0, 2),
		validators.IntRange("maxHeartRate", in.MaxHeartRate, 60, 220),
		validators.FloatRange("oldpeak", in.Oldpeak, 0, 10),
		validators.IntRange("stSlope", in.STSlope, 0, 2),
		validators.IntRange("majorVessels", in.MajorVessels, 0, 3),
		validators.IntRange("thalassemia", in.Thalassemia, 0, 3),
	}

	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if len([]rune(in.Notes)) > 1000 {
		return errors.New("notes can't be longer than 1000 characters")
	}

	return nil
}

// Logistic regression weights fitted on the Cleveland data set with raw
// (unscaled) continuous features
var (
	intercept = -2.95

	wAge         = 0.020
	wMale        = 1.20
	wRestingBP   = 0.015
	wCholesterol = 0.004
	wFBS         = 0.20
	wMaxHR       = -0.025
	wAngina      = 0.90
	wOldpeak     = 0.50
	wVessel      = 1.00

	wChestPain = [4]float64{0, 0.30, 0.20, 1.60}
	wECG       = [3]float64{0, 0.40, 0.50}
	wSlope     = [3]float64{0, 0.80, 0.60}
	wThal      = [4]float64{0, 0, 0.80, 1.40}
)

// Predict scores in. It panics on unvalidated input, callers must run
// Validate first.
func Predict(in Input) Result {
	z := intercept +
		wAge*float64(in.Age) +
		wMale*float64(in.Sex) +
		wChestPain[in.ChestPainType] +
		wRestingBP*float64(in.RestingBP) +
		wCholesterol*float64(in.Cholesterol) +
		wECG[in.RestingECG] +
		wMaxHR*float64(in.MaxHeartRate) +
		wOldpeak*in.Oldpeak +
		wSlope[in.STSlope] +
		wVessel*float64(in.MajorVessels) +
		wThal[in.Thalassemia]

	if in.FastingBloodSugar {
		z += wFBS
	}

	if in.ExerciseAngina {
		z += wAngina
	}

	p := 1 / (1 + math.Exp(-z))
	// Four decimals is all the model is good for
	p = math.Round(p*10000) / 10000

	return Result{
		Probability:  p,
		RiskLevel:    RiskLevel(p),
		RiskFactors:  RiskFactors(in),
		ModelVersion: ModelVersion,
	}
}

func RiskLevel(p float64) string {
	switch {
	case p < moderateThreshold:
		return model.RiskLow
	case p < highThreshold:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}

// RiskFactors lists the inputs that are outside of healthy ranges in words a
// patient understands
func RiskFactors(in Input) []string {
	out := []string{}

	if in.Age >= 55 {
		out = append(out, "Age 55 or older")
	}

	if in.ChestPainType == 3 {
		out = append(out, "Asymptomatic chest pain")
	}

	if in.RestingBP >= 140 {
		out = append(out, fmt.Sprintf("High resting blood pressure (%d mm Hg)", in.RestingBP))
	}

	if in.Cholesterol >= 240 {
		out = append(out, fmt.Sprintf("High cholesterol (%d mg/dl)", in.Cholesterol))
	}

	if in.FastingBloodSugar {
		out = append(out, "Fasting blood sugar above 120 mg/dl")
	}

	switch in.RestingECG {
	case 1:
		out = append(out, "ST-T wave abnormality on resting ECG")
	case 2:
		out = append(out, "Left ventricular hypertrophy on resting ECG")
	}

	// 60% of the age predicted maximum
	if float64(in.MaxHeartRate) < 0.6*float64(220-in.Age) {
		out = append(out, fmt.Sprintf("Low maximum heart rate (%d bpm)", in.MaxHeartRate))
	}

	if in.ExerciseAngina {
		out = append(out, "Exercise induced angina")
	}

	if in.Oldpeak >= 2 {
		out = append(out, fmt.Sprintf("Significant ST depression (%.1f)", in.Oldpeak))
	}

	if in.STSlope == 1 {
		out = append(out, "Flat ST segment slope")
	} else if in.STSlope == 2 {
		out = append(out, "Downsloping ST segment")
	}

	if in.MajorVessels > 0 {
		out = append(out, fmt.Sprintf("%d major vessel(s) narrowed", in.MajorVessels))
	}

	switch in.Thalassemia {
	case 2:
		out = append(out, "Fixed thalassemia defect")
	case 3:
		out = append(out, "Reversible thalassemia defect")
	}

	return out
}

// Record turns a scored input into a row ready to be stored
func Record(id, userID string, in Input, r Result) *model.Prediction {
	return &model.Prediction{
		ID:                id,
		UserID:            userID,
		Age:               in.Age,
		Sex:               in.Sex,
		ChestPainType:     in.ChestPainType,
		RestingBP:         in.RestingBP,
		Cholesterol:       in.Cholesterol,
		FastingBloodSugar: in.FastingBloodSugar,
		RestingECG:        in.RestingECG,
		MaxHeartRate:      in.MaxHeartRate,
		ExerciseAngina:    in.ExerciseAngina,
		Oldpeak:           in.Oldpeak,
		STSlope:           in.STSlope,
		MajorVessels:      in.MajorVessels,
		Thalassemia:       in.Thalassemia,
		Probability:       r.Probability,
		RiskLevel:         r.RiskLevel,
		RiskFactors:       r.RiskFactors,
		ModelVersion:      r.ModelVersion,
		Notes:             in.Notes,
	}
}
