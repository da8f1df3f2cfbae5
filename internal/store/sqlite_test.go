package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string { return &s }

func sampleRecord(school, program string) *model.ExtractionRecord {
	credits := 63.0
	return &model.ExtractionRecord{
		School:  school,
		Program: program,
		Facts: model.ExtractedFacts{
			TuitionAmount: strPtr("$160,083"),
			PerUnitCost:   strPtr("$2,541"),
			CreditCount:   &credits,
			Status:        model.StatusSuccess,
		},
		Citations: []model.Citation{
			{Title: "Tuition", URL: "https://example.edu/tuition", Excerpt: "Tuition is $2,541 per credit."},
		},
		Verdict: &model.VerificationVerdict{
			Status:            model.VerificationPass,
			Confidence:        model.ConfidenceHigh,
			CritiqueSupported: true,
			CompletenessScore: 90,
		},
		Attempts:   1,
		DurationMS: 4200,
		Usage:      model.TokenUsage{InputTokens: 1000, OutputTokens: 250},
	}
}

func TestSQLite_SaveRecord_AssignsVersionAndID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord("Example University", "Part-Time MBA")
	require.NoError(t, st.SaveRecord(ctx, rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, rec.Version)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSQLite_SaveRecord_AppendsVersions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := sampleRecord("Example University", "Part-Time MBA")
	require.NoError(t, st.SaveRecord(ctx, first))

	second := sampleRecord("Example University", "Part-Time MBA")
	second.Facts.TuitionAmount = strPtr("$165,000")
	require.NoError(t, st.SaveRecord(ctx, second))

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)

	// The first version is still retrievable, untouched.
	got, err := st.GetRecord(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Facts.TuitionAmount)
	assert.Equal(t, "$160,083", *got.Facts.TuitionAmount)

	latest, err := st.GetLatest(ctx, "", "Example University", "Part-Time MBA")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "$165,000", *latest.Facts.TuitionAmount)
}

func TestSQLite_SaveRecord_VersionsScopedByKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleRecord("Example University", "Part-Time MBA")
	require.NoError(t, st.SaveRecord(ctx, a))

	b := sampleRecord("Example University", "Executive MBA")
	require.NoError(t, st.SaveRecord(ctx, b))

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 1, b.Version)
}

func TestSQLite_GetRecord_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord("Example University", "Part-Time MBA")
	rec.NamesTried = []string{"Part-Time MBA", "Professional MBA"}
	rec.VariantUsed = "Professional MBA"
	rec.AuditNote = "found under variant Professional MBA"
	require.NoError(t, st.SaveRecord(ctx, rec))

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.School, got.School)
	assert.Equal(t, model.StatusSuccess, got.Facts.Status)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "https://example.edu/tuition", got.Citations[0].URL)
	require.NotNil(t, got.Verdict)
	assert.Equal(t, model.ConfidenceHigh, got.Verdict.Confidence)
	assert.Equal(t, []string{"Part-Time MBA", "Professional MBA"}, got.NamesTried)
	assert.Equal(t, "Professional MBA", got.VariantUsed)
	assert.Equal(t, 1000, got.Usage.InputTokens)
}

func TestSQLite_GetRecord_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRecord(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
}

func TestSQLite_GetLatest_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.GetLatest(context.Background(), "", "Unknown University", "MBA")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_FailedRecordPersisted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := &model.ExtractionRecord{
		School:  "Example University",
		Program: "Part-Time MBA",
		Facts: model.ExtractedFacts{
			Status:  model.StatusFailed,
			RawText: "the model replied with prose instead of JSON",
		},
		Attempts: 4,
	}
	require.NoError(t, st.SaveRecord(ctx, rec))

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Facts.Status)
	assert.Equal(t, "the model replied with prose instead of JSON", got.Facts.RawText)
	assert.Nil(t, got.Verdict)
}

func TestSQLite_ListRecords_StatusFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok := sampleRecord("Example University", "Part-Time MBA")
	require.NoError(t, st.SaveRecord(ctx, ok))

	nf := sampleRecord("Other College", "Executive MBA")
	nf.Facts = model.ExtractedFacts{Status: model.StatusNotFound}
	nf.Verdict = nil
	require.NoError(t, st.SaveRecord(ctx, nf))

	records, err := st.ListRecords(ctx, RecordFilter{Status: model.StatusNotFound})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Other College", records[0].School)

	all, err := st.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListVersions_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, st.SaveRecord(ctx, sampleRecord("Example University", "Part-Time MBA")))
	}

	versions, err := st.ListVersions(ctx, "", "Example University", "Part-Time MBA")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, 1, versions[2].Version)
}
