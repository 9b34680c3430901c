package report

import (
	"bitwise74/cardio-api/internal/model"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	key  string
	data []byte
	err  error
}

func (f *fakeStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	if f.err != nil {
		return f.err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.key, f.data = key, data
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, key, filename string, ttl time.Duration) (string, error) {
	return "https://bucket.example.com/" + key + "?expires=" + ttl.String(), nil
}

func samplePredictions() []model.Prediction {
	return []model.Prediction{{
		ID:           "pred000000000001",
		Age:          63,
		Sex:          1,
		RestingBP:    145,
		Cholesterol:  233,
		MaxHeartRate: 150,
		Oldpeak:      2.3,
		Probability:  0.81234,
		RiskLevel:    model.RiskHigh,
		RiskFactors:  model.StringSlice{"Age 55 or older", "High resting blood pressure (145 mm Hg)"},
		ModelVersion: "logreg-cleveland-1.0",
		Notes:        `said "fine", felt dizzy`,
		CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func TestCSV(t *testing.T) {
	data, err := CSV(samplePredictions())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, header, rows[0])

	row := rows[1]
	assert.Equal(t, "pred000000000001", row[0])
	assert.Equal(t, "2025-03-01T12:00:00Z", row[1])
	assert.Equal(t, "2.3", row[11])
	assert.Equal(t, "0.8123", row[15])
	assert.Equal(t, "Age 55 or older; High resting blood pressure (145 mm Hg)", row[17])
	assert.Equal(t, `said "fine", felt dizzy`, row[19])
}

func TestCSVEmpty(t *testing.T) {
	data, err := CSV(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(header, ",")+"\n", string(data))
}

func TestExportInline(t *testing.T) {
	e := NewExporter(nil, time.Minute)
	e.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	out, err := e.Export(context.Background(), "user000000000001", samplePredictions())
	require.NoError(t, err)
	assert.Equal(t, "predictions-20250301.csv", out.Filename)
	assert.Empty(t, out.URL)
	assert.NotEmpty(t, out.Data)
}

func TestExportUploads(t *testing.T) {
	store := &fakeStore{}
	e := NewExporter(store, 15*time.Minute)

	out, err := e.Export(context.Background(), "user000000000001", samplePredictions())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(store.key, "reports/user000000000001/"))
	assert.True(t, strings.HasSuffix(store.key, ".csv"))
	want, err := CSV(samplePredictions())
	require.NoError(t, err)
	assert.Equal(t, want, store.data)
	assert.Contains(t, out.URL, store.key)
	assert.Nil(t, out.Data)
	assert.False(t, out.ExpiresAt.IsZero())

	store.err = errors.New("bucket gone")
	_, err = e.Export(context.Background(), "user000000000001", nil)
	assert.ErrorContains(t, err, "bucket gone")
}

func TestCSVNeutralizesFormulas(t *testing.T) {
	preds := samplePredictions()

	for _, tt := range []struct{ notes, want string }{
		{"=HYPERLINK(\"http://evil\")", "'=HYPERLINK(\"http://evil\")"},
		{"+1 dizzy", "'+1 dizzy"},
		{"-2 kg", "'-2 kg"},
		{"@SUM(A1)", "'@SUM(A1)"},
		{"fine", "fine"},
		{"", ""},
	} {
		preds[0].Notes = tt.notes

		data, err := CSV(preds)
		require.NoError(t, err)

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, tt.want, rows[1][19], tt.notes)
	}
}
