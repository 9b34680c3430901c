// Package report turns a user's prediction history into downloadable CSV
package report

import (
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/security"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var header = []string{
	"id", "created_at", "age", "sex", "chest_pain_type", "resting_bp",
	"cholesterol", "fasting_blood_sugar", "resting_ecg", "max_heart_rate",
	"exercise_angina", "oldpeak", "st_slope", "major_vessels", "thalassemia",
	"probability", "risk_level", "risk_factors", "model_version", "notes",
}

// CSV renders predictions, one row each, in the order given
func CSV(preds []model.Prediction) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, preds); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteCSV streams the CSV rendering of preds to out
func WriteCSV(out io.Writer, preds []model.Prediction) error {
	w := csv.NewWriter(out)

	if err := w.Write(header); err != nil {
		return err
	}

	for _, p := range preds {
		row := []string{
			p.ID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(p.Age),
			strconv.Itoa(p.Sex),
			strconv.Itoa(p.ChestPainType),
			strconv.Itoa(p.RestingBP),
			strconv.Itoa(p.Cholesterol),
			strconv.FormatBool(p.FastingBloodSugar),
			strconv.Itoa(p.RestingECG),
			strconv.Itoa(p.MaxHeartRate),
			strconv.FormatBool(p.ExerciseAngina),
			strconv.FormatFloat(p.Oldpeak, 'f', 1, 64),
			strconv.Itoa(p.STSlope),
			strconv.Itoa(p.MajorVessels),
			strconv.Itoa(p.Thalassemia),
			strconv.FormatFloat(p.Probability, 'f', 4, 64),
			p.RiskLevel,
			strings.Join(p.RiskFactors, "; "),
			p.ModelVersion,
			safeCell(p.Notes),
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// safeCell keeps spreadsheet apps from evaluating free text as a formula
func safeCell(s string) string {
	if s == "" {
		return s
	}

	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}

	return s
}

// Storage is the subset of the S3 client used for exports
type Storage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

// Export is either a download URL (storage enabled) or the CSV itself
type Export struct {
	Filename  string
	URL       string
	ExpiresAt time.Time
	Data      []byte
}

type Exporter struct {
	store Storage
	ttl   time.Duration
	now   func() time.Time
}

// NewExporter returns an exporter that uploads to store. A nil store makes
// every export inline.
func NewExporter(store Storage, ttl time.Duration) *Exporter {
	return &Exporter{store: store, ttl: ttl, now: time.Now}
}

func (e *Exporter) Export(ctx context.Context, userID string, preds []model.Prediction) (*Export, error) {
	now := e.now()
	out := &Export{
		Filename: fmt.Sprintf("predictions-%s.csv", now.UTC().Format("20060102")),
	}

	if e.store == nil {
		data, err := CSV(preds)
		if err != nil {
			return nil, fmt.Errorf("failed to render csv, %w", err)
		}

		out.Data = data
		return out, nil
	}

	id, err := security.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report id, %w", err)
	}

	key := fmt.Sprintf("reports/%s/%s.csv", userID, id)
	if err := e.upload(ctx, key, preds); err != nil {
		return nil, err
	}

	url, err := e.store.PresignGet(ctx, key, out.Filename, e.ttl)
	if err != nil {
		return nil, err
	}

	out.URL = url
	out.ExpiresAt = now.Add(e.ttl)
	return out, nil
}

// upload streams the CSV into the store without holding the whole file in
// memory
func (e *Exporter) upload(ctx context.Context, key string, preds []model.Prediction) error {
	pr, pw := io.Pipe()
	rendered := make(chan error, 1)

	go func() {
		err := WriteCSV(pw, preds)
		pw.CloseWithError(err)
		rendered <- err
	}()

	upErr := e.store.Upload(ctx, key, "text/csv", pr)
	// Unblocks the writer when the upload gave up before reading everything
	pr.CloseWithError(io.ErrClosedPipe)
	renderErr := <-rendered

	if renderErr != nil && !errors.Is(renderErr, io.ErrClosedPipe) {
		return fmt.Errorf("failed to render csv, %w", renderErr)
	}

	return upErr
}
