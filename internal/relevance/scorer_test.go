package relevance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaw/backend/internal/storage/models"
)

func laborLaw() models.Document {
	return models.Document{
		ID:       "doc_3",
		Title:    "Luật Lao động 2019",
		Content:  "Quy định về quan hệ lao động, quyền và nghĩa vụ của người lao động và người sử dụng lao động.",
		Keywords: []string{"lao động"},
	}
}

func TestScore_TitleAndKeyword(t *testing.T) {
	s := Score("lao động", laborLaw())
	assert.GreaterOrEqual(t, s, TitleWeight+KeywordWeight)

	ranked := Rank("lao động", []models.Document{laborLaw()}, 0)
	require.Len(t, ranked, 1)
	assert.Equal(t, "doc_3", ranked[0].ID)
	assert.Equal(t, s, ranked[0].RelevanceScore)
}

func TestScore_Signals(t *testing.T) {
	cases := []struct {
		name  string
		input string
		doc   models.Document
		want  float64
	}{
		{
			name:  "title only",
			input: "đất đai",
			doc:   models.Document{Title: "Luật Đất đai 2013", Content: "x"},
			want:  TitleWeight,
		},
		{
			name:  "keywords accumulate",
			input: "thuế thu nhập cá nhân",
			doc:   models.Document{Title: "x", Keywords: []string{"thuế", "thu nhập", "cá nhân"}, Content: "x"},
			want:  3 * KeywordWeight,
		},
		{
			name:  "keyword match is case-insensitive",
			input: "bảo hiểm xã hội",
			doc:   models.Document{Title: "x", Keywords: []string{"Bảo Hiểm"}, Content: "x"},
			want:  KeywordWeight,
		},
		{
			name:  "two of three tokens overlap",
			input: "quyền công dân",
			doc:   models.Document{Title: "x", Content: "Mọi công dân đều bình đẳng."},
			want:  OverlapWeight * 2.0 / 3.0,
		},
		{
			name:  "short tokens ignored",
			input: "về an",
			doc:   models.Document{Title: "x", Content: "về an"},
			want:  0,
		},
		{
			name:  "empty input",
			input: "   ",
			doc:   laborLaw(),
			want:  0,
		},
		{
			name:  "empty document",
			input: "lao động",
			doc:   models.Document{},
			want:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.input, tc.doc), 1e-9)
		})
	}
}

func TestRank_Floor(t *testing.T) {
	// weak overlaps one of two tokens and lands below the floor.
	corpus := []models.Document{
		{ID: "weak", Title: "x", Content: "hợp"},
		{ID: "strong", Title: "x", Content: "hợp đồng"},
	}

	ranked := Rank("hợp đồng", corpus, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, "strong", ranked[0].ID)
	for _, d := range ranked {
		assert.Greater(t, d.RelevanceScore, Floor)
	}
}

func TestRank_StableAndSorted(t *testing.T) {
	var corpus []models.Document
	for i := 0; i < 6; i++ {
		corpus = append(corpus, models.Document{
			ID:       fmt.Sprintf("tie_%d", i),
			Title:    "Văn bản",
			Keywords: []string{"thuế"},
		})
	}
	corpus = append(corpus, models.Document{ID: "best", Title: "Luật thuế", Keywords: []string{"thuế"}})

	ranked := Rank("thuế", corpus, 4)
	require.Len(t, ranked, 4)
	assert.Equal(t, "best", ranked[0].ID)
	assert.Equal(t, []string{"tie_0", "tie_1", "tie_2"}, []string{ranked[1].ID, ranked[2].ID, ranked[3].ID})

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].RelevanceScore, ranked[i].RelevanceScore)
	}
}

func TestRank_DefaultLimit(t *testing.T) {
	var corpus []models.Document
	for i := 0; i < 8; i++ {
		corpus = append(corpus, models.Document{ID: fmt.Sprint(i), Title: "Luật thuế"})
	}
	assert.Len(t, Rank("thuế", corpus, 0), DefaultLimit)
	assert.Len(t, Rank("thuế", corpus, -3), DefaultLimit)
	assert.Empty(t, Rank("thuế", nil, 3))
}

// Keyword hits are uncapped, so a keyword-dense document with an unrelated title
// outranks the document whose title is an exact match.
func TestRank_KeywordDensitySkew(t *testing.T) {
	exact := models.Document{ID: "exact", Title: "Luật đất đai", Content: "x"}
	dense := models.Document{ID: "dense", Title: "Ghi chú", Content: "x", Keywords: []string{"luật", "đất", "đai"}}

	ranked := Rank("luật đất đai", []models.Document{exact, dense}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "dense", ranked[0].ID)
	assert.InDelta(t, 3*KeywordWeight, ranked[0].RelevanceScore, 1e-9)
	assert.InDelta(t, TitleWeight, ranked[1].RelevanceScore, 1e-9)
}

func TestScore_NeverNegative(t *testing.T) {
	inputs := []string{"", "a", "luật", "LUẬT DÂN SỰ", "\xff\xfe", "?? !!"}
	for _, in := range inputs {
		assert.GreaterOrEqual(t, Score(in, laborLaw()), 0.0, in)
	}
}
