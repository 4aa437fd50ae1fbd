package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func txn(id, description string) domain.Transaction {
	return domain.Transaction{ID: id, Description: description, Amount: decimal.RequireFromString("-12.50"), OccurredOn: "2024-03-01"}
}

type recorder struct{ lines []string }

func (r *recorder) log(msg string) { r.lines = append(r.lines, msg) }

func (r *recorder) contains(sub string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// fakeStage is a Stage whose behaviour is supplied per test.
type fakeStage struct {
	ClassifyFunc func(ctx context.Context, req Request) (*Result, error)
	calls        int
}

func (f *fakeStage) Name() string { return "fake" }

func (f *fakeStage) Classify(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	return f.ClassifyFunc(ctx, req)
}

// mockGenerator implements ContentGenerator.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
	}
}

func TestMemory_EvictsOldestInsertion(t *testing.T) {
	m := NewMemory(2)
	m.Put("a", "A")
	m.Put("b", "B")
	m.Put("a", "A2")
	m.Put("c", "C")

	_, ok := m.Get("b")
	assert.False(t, ok, "b was the oldest insertion")
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A2", got)
	assert.Equal(t, 2, m.Len())

	m.Put("", "X")
	m.Put("d", "")
	assert.Equal(t, 2, m.Len())

	m.Reset()
	assert.Equal(t, 0, m.Len())
}

func TestNormalizeKey(t *testing.T) {
	a := domain.Transaction{Description: "  Netflix   Monthly ", Counterparty: "NETFLIX", AccountID: "NL01", Reference: "R1"}
	b := domain.Transaction{Description: "netflix monthly", Counterparty: "netflix", AccountID: "NL01", Reference: "r1"}
	assert.Equal(t, NormalizeKey(a), NormalizeKey(b))
	assert.Equal(t, "netflix monthly netflix nl01 r1", NormalizeKey(a))

	b.AccountName = "Joint"
	assert.NotEqual(t, NormalizeKey(a), NormalizeKey(b), "account name takes precedence over id")
}

func TestTokens(t *testing.T) {
	got := Tokens(domain.Transaction{Description: "Albert-Heijn #1403", Counterparty: "AH"})
	assert.Equal(t, map[string]bool{"albert": true, "heijn": true, "1403": true, "ah": true}, got)
	assert.Empty(t, Tokens(domain.Transaction{Description: "--"}))
}

func TestResolveCategoryName(t *testing.T) {
	existing := []string{"Food & Groceries", "rent", "Transport"}
	tests := []struct {
		label string
		want  string
	}{
		{label: "Rent", want: "rent"},
		{label: "Groceries", want: "Food & Groceries"},
		{label: "Transport & Travel", want: "Transport"},
		{label: "Dining", want: "Dining"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCategoryName(tt.label, existing))
		})
	}
}

func TestParseKeywords(t *testing.T) {
	rules, err := ParseKeywords([]byte("categories:\n  - name: Pets\n    keywords: [Vet, ' petshop ']\n"))
	require.NoError(t, err)
	assert.Equal(t, []KeywordRule{{Keyword: "vet", Category: "Pets"}, {Keyword: "petshop", Category: "Pets"}}, rules)

	_, err = ParseKeywords([]byte("categories:\n  - keywords: [x]\n"))
	assert.Error(t, err)

	defaults := DefaultKeywords()
	require.NotEmpty(t, defaults)
	assert.Equal(t, KeywordRule{Keyword: "grocery", Category: "Groceries"}, defaults[0])
}

func TestEngine_NoCategoriesNoExamples(t *testing.T) {
	rec := &recorder{}
	got := New().Suggest(context.Background(), txn("t1", "Tesco superstore"), nil, nil, rec.log)
	assert.Nil(t, got)
	assert.True(t, rec.contains("Skipping classification"))
}

func TestEngine_MemoBeatsKeyword(t *testing.T) {
	labelled := txn("old", "Starbucks Amsterdam")
	candidate := txn("new", "Starbucks Amsterdam")
	rec := &recorder{}

	got := New().Suggest(context.Background(), candidate, []string{"Coffee", "Dining"},
		[]Example{{Transaction: labelled, Category: "Coffee"}}, rec.log)

	require.NotNil(t, got)
	assert.Equal(t, "Coffee", got.Category)
	assert.Equal(t, MemoConfidence, got.Confidence)
	assert.True(t, rec.contains("memoised"))
}

func TestEngine_SimilarExamples(t *testing.T) {
	examples := []Example{
		{Transaction: domain.Transaction{ID: "1", Description: "Jumbo Utrecht", Reference: "A"}, Category: "Food"},
		{Transaction: domain.Transaction{ID: "2", Description: "Jumbo Amersfoort", Reference: "B"}, Category: "Household"},
	}

	t.Run("token overlap picks most recent", func(t *testing.T) {
		got := New().Suggest(context.Background(), domain.Transaction{Description: "Jumbo Zeist", Reference: "C"}, nil, examples, nil)
		require.NotNil(t, got)
		assert.Equal(t, Result{Category: "Household", Confidence: SimilarConfidence}, *got)
	})

	t.Run("same description", func(t *testing.T) {
		got := New().Suggest(context.Background(), domain.Transaction{Description: "Jumbo Utrecht", Reference: "Z"}, nil, examples[:1], nil)
		require.NotNil(t, got)
		assert.Equal(t, Result{Category: "Food", Confidence: ExactExampleConfidence}, *got)
	})
}

func TestEngine_KeywordResolvedAgainstExisting(t *testing.T) {
	rec := &recorder{}
	got := New().Suggest(context.Background(), txn("t", "UBER *TRIP"), []string{"transport costs"}, nil, rec.log)
	require.NotNil(t, got)
	assert.Equal(t, "transport costs", got.Category)
	assert.Equal(t, KeywordConfidence, got.Confidence)
	assert.True(t, rec.contains("keyword heuristics"))
}

func TestEngine_NothingMatches(t *testing.T) {
	rec := &recorder{}
	got := New().Suggest(context.Background(), txn("t", "Zzyzx"), []string{"Misc"}, nil, rec.log)
	assert.Nil(t, got)
	assert.True(t, rec.contains("could not determine"))
}

func TestEngine_ExampleWindowBounded(t *testing.T) {
	examples := []Example{
		{Transaction: domain.Transaction{Description: "Yoga retreat"}, Category: "Wellbeing"},
		{Transaction: domain.Transaction{Description: "Bakery"}, Category: "Food"},
	}
	got := New(WithMaxExamples(1)).Suggest(context.Background(), domain.Transaction{Description: "Yoga retreat"}, nil, examples, nil)
	assert.Nil(t, got, "the yoga example is outside the window")
}

func TestEngine_StageOverridesKeyword(t *testing.T) {
	stage := &fakeStage{ClassifyFunc: func(_ context.Context, req Request) (*Result, error) {
		require.NotNil(t, req.Fallback)
		assert.Equal(t, "Groceries", req.Fallback.Category)
		return &Result{Category: "Supermarket", Confidence: 1.7}, nil
	}}

	got := New(WithStage(stage)).Suggest(context.Background(), txn("t", "Lidl Zeist"), []string{"Groceries"}, nil, nil)
	require.NotNil(t, got)
	assert.Equal(t, "Supermarket", got.Category)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestEngine_StageFailureFallsBackToKeyword(t *testing.T) {
	stage := &fakeStage{ClassifyFunc: func(context.Context, Request) (*Result, error) {
		return nil, &TransportError{Stage: "fake", Err: errors.New("401 unauthorized")}
	}}

	got := New(WithStage(stage)).Suggest(context.Background(), txn("t", "Lidl Zeist"), []string{"Groceries"}, nil, nil)
	require.NotNil(t, got)
	assert.Equal(t, Result{Category: "Groceries", Confidence: KeywordConfidence}, *got)
	assert.Equal(t, 1, stage.calls)
}

func TestEngine_StageSkippedOnMemoHit(t *testing.T) {
	stage := &fakeStage{ClassifyFunc: func(context.Context, Request) (*Result, error) {
		t.Fatal("stage must not be called")
		return nil, nil
	}}
	ex := txn("a", "Spotify")
	got := New(WithStage(stage)).Suggest(context.Background(), ex, nil, []Example{{Transaction: ex, Category: "Subscriptions"}}, nil)
	require.NotNil(t, got)
	assert.Equal(t, 0, stage.calls)
}

func TestGeminiStage_Classify(t *testing.T) {
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	gen := &mockGenerator{GenerateContentFunc: func(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotConfig = config
		require.Len(t, contents, 1)
		assert.Contains(t, contents[0].Parts[0].Text, "Description: Lidl Zeist")
		return textResponse("```json\n{\"category\": \"Groceries\", \"confidence\": 0.91}\n```"), nil
	}}
	stage := NewGeminiStageWithGenerator(gen, WithModel("gemini-test"), WithTemperature(0.1))
	rec := &recorder{}

	got, err := stage.Classify(context.Background(), Request{Transaction: txn("t", "Lidl Zeist"), Categories: []string{"Groceries"}, Log: rec.log})
	require.NoError(t, err)
	assert.Equal(t, &Result{Category: "Groceries", Confidence: 0.91}, got)
	assert.Equal(t, "gemini-test", gotModel)
	require.NotNil(t, gotConfig.Temperature)
	assert.InDelta(t, 0.1, *gotConfig.Temperature, 1e-6)
	assert.Equal(t, SystemInstruction, gotConfig.SystemInstruction.Parts[0].Text)
	assert.True(t, rec.contains("Requesting classification from model 'gemini-test'."))
}

func TestGeminiStage_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "transport", err: errors.New("connection refused")},
		{name: "empty response", resp: &genai.GenerateContentResponse{}},
		{name: "not json", resp: textResponse("I think groceries")},
		{name: "missing category", resp: textResponse(`{"confidence": 0.4}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			}}
			_, err := NewGeminiStageWithGenerator(gen).Classify(context.Background(), Request{Transaction: txn("t", "x")})
			var terr *TransportError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, "gemini", terr.Stage)
		})
	}
}

func TestEngine_GeminiFailureUsesKeyword(t *testing.T) {
	gen := &mockGenerator{GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("quota exceeded")
	}}
	rec := &recorder{}
	engine := New(WithStage(NewGeminiStageWithGenerator(gen)))

	got := engine.Suggest(context.Background(), txn("t", "Monthly rent"), []string{"Housing"}, nil, rec.log)
	require.NotNil(t, got)
	assert.Equal(t, "Rent", got.Category)
	assert.True(t, rec.contains("Model request failed"))
	assert.Equal(t, "gemini", engine.StageName())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *Result
		wantErr bool
	}{
		{name: "plain", text: `{"category": "Rent", "confidence": 0.8}`, want: &Result{Category: "Rent", Confidence: 0.8}},
		{name: "prose around", text: "Sure! {\"category\": \"Rent\", \"confidence\": 0.8} hope it helps", want: &Result{Category: "Rent", Confidence: 0.8}},
		{name: "missing confidence", text: `{"category": "Rent"}`, want: &Result{Category: "Rent", Confidence: 0.5}},
		{name: "string confidence", text: `{"category": "Rent", "confidence": "0.3"}`, want: &Result{Category: "Rent", Confidence: 0.3}},
		{name: "clamped high", text: `{"category": "Rent", "confidence": 3}`, want: &Result{Category: "Rent", Confidence: 1}},
		{name: "clamped low", text: `{"category": "Rent", "confidence": -1}`, want: &Result{Category: "Rent", Confidence: 0}},
		{name: "blank category", text: `{"category": "  ", "confidence": 0.9}`, wantErr: true},
		{name: "no object", text: "Rent", wantErr: true},
		{name: "broken json", text: `{"category": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		p := BuildPrompt(Request{Transaction: txn("t", "")})
		assert.Contains(t, p, "(no existing categories)")
		assert.Contains(t, p, "(no prior examples)")
		assert.Contains(t, p, "Description: -")
		assert.Contains(t, p, "Occurred On: 2024-03-01")
	})

	t.Run("categories and examples", func(t *testing.T) {
		ex := domain.Transaction{Description: "Eneco", Amount: decimal.RequireFromString("-80"), Counterparty: "Eneco BV", AccountID: "NL01", Reference: "R9"}
		p := BuildPrompt(Request{
			Transaction: txn("t", "Vattenfall"),
			Categories:  []string{"Utilities", "Groceries", "Utilities"},
			Examples:    []Example{{Transaction: ex, Category: "Utilities"}},
		})
		assert.Contains(t, p, "following categories: Groceries, Utilities.")
		assert.Contains(t, p, "Description: Eneco; Amount: -80; Counterparty: Eneco BV; Account: NL01; Reference: R9; Category: Utilities")
		assert.True(t, strings.HasSuffix(p, `{"category": "<name>", "confidence": <number between 0 and 1>}`))
	})
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "Groceries (85%)", Result{Category: "Groceries", Confidence: 0.85}.String())
}

func TestLocalStage(t *testing.T) {
	fallback := &Result{Category: "Rent", Confidence: KeywordConfidence}
	got, err := LocalStage{}.Classify(context.Background(), Request{Fallback: fallback})
	require.NoError(t, err)
	assert.Same(t, fallback, got)

	stage, err := NewStage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "local", stage.Name())
}
